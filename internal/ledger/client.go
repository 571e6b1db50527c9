// Package ledger is the typed client for the EnergyTrading contract. It owns
// no state: every read returns validated records with base-unit amounts
// already converted to decimal units, and every write returns a handle that
// can be awaited to block confirmation. Raw base-unit integers never leave
// this package except inside a transaction's cost computation.
package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gridtrade/energy-portal/energy-portal-backend/internal/market"
	"gridtrade/energy-portal/energy-portal-backend/pkg/carbon"
	"gridtrade/energy-portal/energy-portal-backend/pkg/units"
)

// Config contains ledger connection settings.
type Config struct {
	RPCURL          string `json:"rpc_url"`
	ContractAddress string `json:"contract_address"`
	ChainID         int64  `json:"chain_id"`
	SignerKey       string `json:"signer_key"`
}

// Session is the active caller identity and its transact capability. A client
// without a session serves nothing; every call degrades to unavailable.
type Session struct {
	Address common.Address
	opts    *bind.TransactOpts
}

// ListingDraft contains the fields of a create-listing mutation, in decimal
// units. The owner is the session identity.
type ListingDraft struct {
	Name         string
	Description  string
	Image        string
	FuelType     carbon.FuelType
	CostPerUnit  decimal.Decimal
	EnergyAmount decimal.Decimal
}

// TxWaiter is a broadcast transaction that can be awaited to confirmation.
type TxWaiter interface {
	Hash() string
	Wait(ctx context.Context) error
}

// Client issues read calls and signed mutating calls against the contract.
type Client struct {
	backend  *ethclient.Client
	contract *bind.BoundContract
	session  *Session
	logger   *zap.Logger
}

// NewClient dials the RPC endpoint and binds the contract. A signer key in
// the config establishes the session; without one the client comes up in the
// unavailable state and reads fail with market.ErrLedgerUnavailable.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(energyTradingABI))
	if err != nil {
		return nil, fmt.Errorf("parsing contract ABI: %w", err)
	}

	backend, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dialing ledger RPC: %w", err)
	}

	client := &Client{
		backend:  backend,
		contract: bind.NewBoundContract(common.HexToAddress(cfg.ContractAddress), parsed, backend, backend, backend),
		logger:   logger,
	}

	if cfg.SignerKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.SignerKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("parsing signer key: %w", err)
		}
		opts, err := bind.NewKeyedTransactorWithChainID(key, new(big.Int).SetInt64(cfg.ChainID))
		if err != nil {
			return nil, fmt.Errorf("building transactor: %w", err)
		}
		client.session = &Session{
			Address: crypto.PubkeyToAddress(key.PublicKey),
			opts:    opts,
		}
	}

	return client, nil
}

// Session returns the active session, or nil when none is connected.
func (c *Client) Session() *Session {
	return c.session
}

// SessionAddress returns the hex address of the active session, or the empty
// string when no session is connected.
func (c *Client) SessionAddress() string {
	if c.session == nil {
		return ""
	}
	return c.session.Address.Hex()
}

func (c *Client) requireSession() error {
	if c.session == nil {
		return market.ErrLedgerUnavailable
	}
	return nil
}

// =====================================================
// Read surface
// =====================================================

// ListListings fetches every listing, in ledger-insertion order. The listing
// id is its index in that order.
func (c *Client) ListListings(ctx context.Context) ([]market.EnergyListing, error) {
	raws, err := c.rawListings(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]market.EnergyListing, 0, len(raws))
	for i, raw := range raws {
		listing, err := c.toListing(uint64(i), raw)
		if err != nil {
			c.logger.Warn("Skipping malformed listing record",
				zap.Uint64("listing_id", uint64(i)), zap.Error(err))
			continue
		}
		out = append(out, listing)
	}
	return out, nil
}

// GetListing fetches one listing by id. A missing id is market.ErrNotFound, a
// first-class outcome rather than a fault.
func (c *Client) GetListing(ctx context.Context, id uint64) (*market.EnergyListing, error) {
	raw, err := c.rawListing(ctx, id)
	if err != nil {
		return nil, err
	}
	listing, err := c.toListing(id, *raw)
	if err != nil {
		return nil, fmt.Errorf("listing %d: %w", id, err)
	}
	return &listing, nil
}

// ListListingsByOwner fetches the owner-scoped subset. The contract's own
// owner getter returns records without ids, so the subset is filtered from
// the full set to keep ids authoritative.
func (c *Client) ListListingsByOwner(ctx context.Context, owner string) ([]market.EnergyListing, error) {
	all, err := c.ListListings(ctx)
	if err != nil {
		return nil, err
	}
	addr := common.HexToAddress(owner)

	out := make([]market.EnergyListing, 0)
	for _, listing := range all {
		if common.HexToAddress(listing.Owner) == addr {
			out = append(out, listing)
		}
	}
	return out, nil
}

// ListPurchasesForListing fetches the purchase history of one listing, with
// cost and fuel type joined in from the listing record.
func (c *Client) ListPurchasesForListing(ctx context.Context, id uint64) ([]market.Purchase, error) {
	raw, err := c.rawListing(ctx, id)
	if err != nil {
		return nil, err
	}
	fuel, err := carbon.ParseFuelType(raw.FuelType)
	if err != nil {
		return nil, fmt.Errorf("listing %d: %w", id, err)
	}

	if err := c.requireSession(); err != nil {
		return nil, err
	}
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getPurchaseHistory", new(big.Int).SetUint64(id)); err != nil {
		return nil, fmt.Errorf("%w: getPurchaseHistory: %v", market.ErrLedgerCallFailed, err)
	}
	raws := *abi.ConvertType(out[0], new([]rawPurchase)).(*[]rawPurchase)

	records := make([]market.Purchase, 0, len(raws))
	for _, p := range raws {
		amount := units.ToDecimal(p.Amount)
		records = append(records, market.Purchase{
			Buyer:     p.Buyer.Hex(),
			Amount:    amount,
			Cost:      units.ToDecimal(units.ComputeTotalCost(raw.CostPerUnit, amount)),
			FuelType:  fuel,
			Timestamp: time.Unix(p.Timestamp.Int64(), 0).UTC(),
		})
	}
	return records, nil
}

// ListPurchasesForUser fetches one buyer's purchases across all listings,
// annotated with the listing each belongs to. Records referencing a listing
// the ledger no longer returns are skipped, not propagated half-formed.
func (c *Client) ListPurchasesForUser(ctx context.Context, buyer string) ([]market.UserPurchase, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}

	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getUserPurchases", common.HexToAddress(buyer)); err != nil {
		return nil, fmt.Errorf("%w: getUserPurchases: %v", market.ErrLedgerCallFailed, err)
	}
	raws := *abi.ConvertType(out[0], new([]rawUserPurchase)).(*[]rawUserPurchase)

	listingRaws, err := c.rawListings(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]market.UserPurchase, 0, len(raws))
	for _, p := range raws {
		id := p.ListingId.Uint64()
		if id >= uint64(len(listingRaws)) {
			c.logger.Warn("Skipping purchase referencing unknown listing",
				zap.Uint64("listing_id", id), zap.String("buyer", buyer))
			continue
		}
		listing := listingRaws[id]
		fuel, err := carbon.ParseFuelType(listing.FuelType)
		if err != nil {
			c.logger.Warn("Skipping purchase with malformed listing fuel type",
				zap.Uint64("listing_id", id), zap.Error(err))
			continue
		}
		amount := units.ToDecimal(p.Amount)
		records = append(records, market.UserPurchase{
			ListingID:    id,
			ListingTitle: listing.Name,
			Amount:       amount,
			Cost:         units.ToDecimal(units.ComputeTotalCost(listing.CostPerUnit, amount)),
			FuelType:     fuel,
			Timestamp:    time.Unix(p.Timestamp.Int64(), 0).UTC(),
		})
	}
	return records, nil
}

// NumberOfListings returns the total listing count recorded by the ledger.
func (c *Client) NumberOfListings(ctx context.Context) (uint64, error) {
	if err := c.requireSession(); err != nil {
		return 0, err
	}
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getNumberOfCampaigns"); err != nil {
		return 0, fmt.Errorf("%w: getNumberOfCampaigns: %v", market.ErrLedgerCallFailed, err)
	}
	count := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	return count.Uint64(), nil
}

// =====================================================
// Write surface
// =====================================================

// SubmitCreateListing signs and broadcasts a create-listing transaction.
func (c *Client) SubmitCreateListing(ctx context.Context, draft ListingDraft) (TxWaiter, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}

	tx, err := c.contract.Transact(c.transactOpts(ctx, nil), "createEnergyListing",
		c.session.Address,
		draft.Name,
		units.ToBaseUnits(draft.CostPerUnit),
		units.ToBaseUnits(draft.EnergyAmount),
		string(draft.FuelType),
		draft.Description,
		draft.Image,
	)
	if err != nil {
		return nil, classifyBroadcastError("createEnergyListing", err)
	}

	c.logger.Info("Create-listing transaction broadcast",
		zap.String("tx_hash", tx.Hash().Hex()), zap.String("name", draft.Name))
	return &TxHandle{tx: tx, backend: c.backend, revertErr: market.ErrLedgerCallFailed}, nil
}

// SubmitBuyEnergy signs and broadcasts a purchase of the given decimal energy
// amount. The payment value is computed from the listing's current cost per
// unit in base units; this is the one place raw base units flow through.
func (c *Client) SubmitBuyEnergy(ctx context.Context, id uint64, energyAmount decimal.Decimal) (TxWaiter, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}

	raw, err := c.rawListing(ctx, id)
	if err != nil {
		return nil, err
	}
	payment := units.ComputeTotalCost(raw.CostPerUnit, energyAmount)

	tx, err := c.contract.Transact(c.transactOpts(ctx, payment), "buyEnergy",
		new(big.Int).SetUint64(id),
		units.ToBaseUnits(energyAmount),
	)
	if err != nil {
		return nil, classifyBroadcastError("buyEnergy", err)
	}

	c.logger.Info("Buy-energy transaction broadcast",
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.Uint64("listing_id", id),
		zap.String("energy_kwh", energyAmount.String()),
		zap.String("payment_wei", payment.String()))

	// A reverted purchase that passed the optimistic local check means the
	// ledger's supply bound disagreed.
	return &TxHandle{tx: tx, backend: c.backend, revertErr: market.ErrInsufficientSupply}, nil
}

// =====================================================
// Internals
// =====================================================

func (c *Client) rawListings(ctx context.Context) ([]rawListing, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getEnergyListings"); err != nil {
		return nil, fmt.Errorf("%w: getEnergyListings: %v", market.ErrLedgerCallFailed, err)
	}
	return *abi.ConvertType(out[0], new([]rawListing)).(*[]rawListing), nil
}

func (c *Client) rawListing(ctx context.Context, id uint64) (*rawListing, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getEnergyListing", new(big.Int).SetUint64(id))
	if err != nil {
		if isRevert(err) {
			return nil, fmt.Errorf("%w: id %d", market.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: getEnergyListing: %v", market.ErrLedgerCallFailed, err)
	}
	raw := *abi.ConvertType(out[0], new(rawListing)).(*rawListing)
	return &raw, nil
}

func (c *Client) toListing(id uint64, raw rawListing) (market.EnergyListing, error) {
	fuel, err := carbon.ParseFuelType(raw.FuelType)
	if err != nil {
		return market.EnergyListing{}, err
	}
	return market.EnergyListing{
		ID:           id,
		Owner:        raw.Owner.Hex(),
		Name:         raw.Name,
		Description:  raw.Description,
		CostPerUnit:  units.ToDecimal(raw.CostPerUnit),
		EnergyAmount: units.ToDecimal(raw.EnergyAmount),
		FuelType:     fuel,
		Image:        raw.Image,
		AmountSold:   units.ToDecimal(raw.AmountSold),
		CreatedAt:    time.Unix(raw.CreatedAt.Int64(), 0).UTC(),
	}, nil
}

// transactOpts copies the session transactor so per-call context and value
// never leak between concurrent mutations.
func (c *Client) transactOpts(ctx context.Context, value *big.Int) *bind.TransactOpts {
	opts := *c.session.opts
	opts.Context = ctx
	opts.Value = value
	return &opts
}

func classifyBroadcastError(method string, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return fmt.Errorf("%w: %s", market.ErrInsufficientFunds, method)
	case strings.Contains(msg, "denied") || strings.Contains(msg, "rejected"):
		return fmt.Errorf("%w: %s", market.ErrSigningRejected, method)
	default:
		return fmt.Errorf("%w: %s: %v", market.ErrLedgerCallFailed, method, err)
	}
}

func isRevert(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "revert")
}

// TxHandle is a broadcast transaction awaiting block confirmation.
type TxHandle struct {
	tx        *types.Transaction
	backend   bind.DeployBackend
	revertErr error
}

// Hash returns the transaction hash.
func (h *TxHandle) Hash() string {
	return h.tx.Hash().Hex()
}

// Wait blocks until the transaction is mined. A reverted receipt surfaces as
// the submit path's revert error; confirmation cannot be cancelled once
// broadcast, only abandoned via ctx.
func (h *TxHandle) Wait(ctx context.Context) error {
	receipt, err := bind.WaitMined(ctx, h.backend, h.tx)
	if err != nil {
		return fmt.Errorf("%w: awaiting confirmation of %s: %v", market.ErrLedgerCallFailed, h.Hash(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: transaction %s reverted", h.revertErr, h.Hash())
	}
	return nil
}

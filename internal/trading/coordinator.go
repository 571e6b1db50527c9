// Package trading drives the two ledger mutations, create-listing and
// buy-energy, through an explicit lifecycle. One coordinator exists per
// logical mutation; once it reaches a terminal state it is consumed and the
// next attempt starts from a fresh coordinator.
package trading

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gridtrade/energy-portal/energy-portal-backend/internal/events"
	"gridtrade/energy-portal/energy-portal-backend/internal/ledger"
	"gridtrade/energy-portal/energy-portal-backend/internal/market"
	"gridtrade/energy-portal/energy-portal-backend/pkg/carbon"
)

// ErrInvalidInput indicates a mutation rejected during local validation,
// before anything reached the ledger.
var ErrInvalidInput = errors.New("invalid mutation input")

// Ledger is the slice of the ledger client the coordinator consumes.
type Ledger interface {
	SubmitCreateListing(ctx context.Context, draft ledger.ListingDraft) (ledger.TxWaiter, error)
	SubmitBuyEnergy(ctx context.Context, id uint64, energyAmount decimal.Decimal) (ledger.TxWaiter, error)
	SessionAddress() string
}

// ListingProvider is the slice of the listing projection the coordinator
// consumes: cached snapshots for the optimistic supply check, invalidation
// after a confirmed mutation, and the read-your-writes point read.
type ListingProvider interface {
	Cached(id uint64) (market.EnergyListing, bool)
	Listing(ctx context.Context, id uint64) (market.EnergyListing, error)
	RefreshAll(ctx context.Context) ([]market.EnergyListing, error)
	Invalidate(owner string, listingID *uint64)
}

// PurchaseMode selects which side of a purchase the caller fixed.
type PurchaseMode string

const (
	// BuyByEnergy fixes the energy amount; the payment follows from the
	// listing's cost per unit.
	BuyByEnergy PurchaseMode = "energy"
	// BuyByPayment fixes the payment; the energy amount follows.
	BuyByPayment PurchaseMode = "payment"
)

// PurchaseOrder is the input of one buy-energy mutation.
type PurchaseOrder struct {
	ListingID uint64
	Mode      PurchaseMode
	Energy    decimal.Decimal
	Payment   decimal.Decimal
}

// Result is the outcome of a finished mutation. Listing carries the
// re-fetched entity when the post-mutation refresh succeeded; a nil Listing
// on success means the projection will catch up on the next read.
type Result struct {
	MutationID uuid.UUID             `json:"mutation_id"`
	State      State                 `json:"state"`
	TxHash     string                `json:"tx_hash,omitempty"`
	Energy     decimal.Decimal       `json:"energy_amount,omitempty"`
	Payment    decimal.Decimal       `json:"payment,omitempty"`
	Listing    *market.EnergyListing `json:"listing,omitempty"`
}

// Coordinator walks a single mutation through validation, submission and
// confirmation, invalidating projections and publishing change events on
// success.
type Coordinator struct {
	id       uuid.UUID
	mu       sync.Mutex
	state    State
	machine  *StateMachine
	ledger   Ledger
	listings ListingProvider
	bus      *events.Bus
	logger   *zap.Logger
}

// NewCoordinator creates a coordinator in the idle state.
func NewCoordinator(lc Ledger, listings ListingProvider, bus *events.Bus, logger *zap.Logger) *Coordinator {
	id := uuid.New()
	return &Coordinator{
		id:       id,
		state:    StateIdle,
		machine:  NewStateMachine(),
		ledger:   lc,
		listings: listings,
		bus:      bus,
		logger:   logger.With(zap.String("mutation_id", id.String())),
	}
}

// State returns the coordinator's current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// advance moves to the next state. Updates arriving after the caller's
// context died are dropped: a mutation whose session is gone must not keep
// mutating shared state on its behalf.
func (c *Coordinator) advance(ctx context.Context, to State) bool {
	if ctx.Err() != nil {
		c.logger.Debug("Dropping state update for abandoned mutation", zap.String("to", string(to)))
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.machine.CanTransition(c.state, to) {
		c.logger.Warn("Rejected mutation state transition",
			zap.String("from", string(c.state)), zap.String("to", string(to)))
		return false
	}
	c.state = to
	c.logger.Debug("Mutation state advanced", zap.String("state", string(to)))
	return true
}

func (c *Coordinator) fail(ctx context.Context, err error) error {
	c.advance(ctx, StateFailed)
	return err
}

func (c *Coordinator) abortErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mutation abandoned: %w", err)
	}
	return fmt.Errorf("%w: coordinator already consumed", ErrInvalidInput)
}

// CreateListing validates and submits a create-listing mutation, then blocks
// until the transaction confirms.
func (c *Coordinator) CreateListing(ctx context.Context, draft ledger.ListingDraft) (*Result, error) {
	if !c.advance(ctx, StateValidating) {
		return nil, c.abortErr(ctx)
	}
	if err := validateDraft(draft); err != nil {
		return nil, c.fail(ctx, err)
	}

	if !c.advance(ctx, StateSubmitting) {
		return nil, c.abortErr(ctx)
	}
	handle, err := c.ledger.SubmitCreateListing(ctx, draft)
	if err != nil {
		return nil, c.fail(ctx, err)
	}

	if !c.advance(ctx, StateAwaitingConfirmation) {
		return nil, c.abortErr(ctx)
	}
	if err := handle.Wait(ctx); err != nil {
		return nil, c.fail(ctx, err)
	}

	// The transaction is on the ledger regardless of what the caller's
	// context does now, so projections are always invalidated.
	c.advance(ctx, StateSucceeded)
	owner := c.ledger.SessionAddress()
	c.listings.Invalidate(owner, nil)
	c.bus.Publish(events.ProjectionChange{Scope: events.ScopeListings, TxHash: handle.Hash()})
	c.logger.Info("Listing created", zap.String("tx_hash", handle.Hash()), zap.String("name", draft.Name))

	res := &Result{
		MutationID: c.id,
		State:      StateSucceeded,
		TxHash:     handle.Hash(),
		Energy:     draft.EnergyAmount,
	}
	if ls, err := c.listings.RefreshAll(ctx); err == nil {
		// The new listing has the highest id among the session's listings.
		for i := range ls {
			if strings.EqualFold(ls[i].Owner, owner) {
				created := ls[i]
				res.Listing = &created
			}
		}
	} else {
		c.logger.Warn("Post-mutation refresh failed; projection stays stale until next read", zap.Error(err))
	}
	return res, nil
}

// BuyEnergy validates and submits a buy-energy mutation, then blocks until
// the transaction confirms. An order exceeding the available supply in the
// most recent snapshot is rejected before any ledger call; the ledger's own
// supply bound remains the final arbiter for amounts that pass.
func (c *Coordinator) BuyEnergy(ctx context.Context, order PurchaseOrder) (*Result, error) {
	if !c.advance(ctx, StateValidating) {
		return nil, c.abortErr(ctx)
	}

	listing, err := c.snapshotListing(ctx, order.ListingID)
	if err != nil {
		return nil, c.fail(ctx, err)
	}

	energy, payment, err := resolveOrder(order, listing)
	if err != nil {
		return nil, c.fail(ctx, err)
	}

	if available := listing.AvailableSupply(); energy.GreaterThan(available) {
		return nil, c.fail(ctx, fmt.Errorf("%w: requested %s kWh, %s kWh available",
			market.ErrInsufficientSupply, energy, available))
	}

	if !c.advance(ctx, StateSubmitting) {
		return nil, c.abortErr(ctx)
	}
	handle, err := c.ledger.SubmitBuyEnergy(ctx, order.ListingID, energy)
	if err != nil {
		return nil, c.fail(ctx, err)
	}

	if !c.advance(ctx, StateAwaitingConfirmation) {
		return nil, c.abortErr(ctx)
	}
	if err := handle.Wait(ctx); err != nil {
		return nil, c.fail(ctx, err)
	}

	c.advance(ctx, StateSucceeded)
	id := order.ListingID
	c.listings.Invalidate(listing.Owner, &id)
	c.bus.Publish(events.ProjectionChange{Scope: events.ScopeListing, ListingID: id, TxHash: handle.Hash()})
	c.bus.Publish(events.ProjectionChange{Scope: events.ScopePurchases, ListingID: id, TxHash: handle.Hash()})
	c.logger.Info("Energy purchased",
		zap.String("tx_hash", handle.Hash()),
		zap.Uint64("listing_id", id),
		zap.String("energy_kwh", energy.String()))

	res := &Result{
		MutationID: c.id,
		State:      StateSucceeded,
		TxHash:     handle.Hash(),
		Energy:     energy,
		Payment:    payment,
	}
	if refreshed, err := c.listings.Listing(ctx, id); err == nil {
		res.Listing = &refreshed
	} else {
		c.logger.Warn("Post-mutation refresh failed; projection stays stale until next read", zap.Error(err))
	}
	return res, nil
}

// snapshotListing serves the supply check from the cached snapshot when one
// exists, falling back to a ledger read for never-loaded ids.
func (c *Coordinator) snapshotListing(ctx context.Context, id uint64) (market.EnergyListing, error) {
	if l, ok := c.listings.Cached(id); ok {
		return l, nil
	}
	return c.listings.Listing(ctx, id)
}

func validateDraft(draft ledger.ListingDraft) error {
	if strings.TrimSpace(draft.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(draft.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	if _, err := carbon.ParseFuelType(string(draft.FuelType)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if draft.CostPerUnit.IsNegative() {
		return fmt.Errorf("%w: cost per unit must not be negative", ErrInvalidInput)
	}
	if !draft.EnergyAmount.IsPositive() {
		return fmt.Errorf("%w: energy amount must be positive", ErrInvalidInput)
	}
	return nil
}

// resolveOrder turns a one-sided order into its energy and payment amounts
// using the listing's cost per unit.
func resolveOrder(order PurchaseOrder, listing market.EnergyListing) (energy, payment decimal.Decimal, err error) {
	switch order.Mode {
	case BuyByEnergy:
		if !order.Energy.IsPositive() {
			return decimal.Zero, decimal.Zero, fmt.Errorf("%w: energy amount must be positive", ErrInvalidInput)
		}
		return order.Energy, order.Energy.Mul(listing.CostPerUnit), nil
	case BuyByPayment:
		if !order.Payment.IsPositive() {
			return decimal.Zero, decimal.Zero, fmt.Errorf("%w: payment must be positive", ErrInvalidInput)
		}
		if !listing.CostPerUnit.IsPositive() {
			return decimal.Zero, decimal.Zero, fmt.Errorf("%w: listing %d has no per-unit cost to convert a payment",
				ErrInvalidInput, listing.ID)
		}
		energy = order.Payment.Div(listing.CostPerUnit)
		return energy, energy.Mul(listing.CostPerUnit), nil
	default:
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: unknown purchase mode %q", ErrInvalidInput, order.Mode)
	}
}

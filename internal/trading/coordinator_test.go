package trading

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gridtrade/energy-portal/energy-portal-backend/internal/events"
	"gridtrade/energy-portal/energy-portal-backend/internal/ledger"
	"gridtrade/energy-portal/energy-portal-backend/internal/listings"
	"gridtrade/energy-portal/energy-portal-backend/internal/market"
	"gridtrade/energy-portal/energy-portal-backend/pkg/carbon"
)

// =====================================================
// Mocks
// =====================================================

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) SubmitCreateListing(ctx context.Context, draft ledger.ListingDraft) (ledger.TxWaiter, error) {
	args := m.Called(ctx, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ledger.TxWaiter), args.Error(1)
}

func (m *MockLedger) SubmitBuyEnergy(ctx context.Context, id uint64, energyAmount decimal.Decimal) (ledger.TxWaiter, error) {
	args := m.Called(ctx, id, energyAmount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ledger.TxWaiter), args.Error(1)
}

func (m *MockLedger) SessionAddress() string {
	return m.Called().String(0)
}

type MockListings struct {
	mock.Mock
}

func (m *MockListings) Cached(id uint64) (market.EnergyListing, bool) {
	args := m.Called(id)
	return args.Get(0).(market.EnergyListing), args.Bool(1)
}

func (m *MockListings) Listing(ctx context.Context, id uint64) (market.EnergyListing, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(market.EnergyListing), args.Error(1)
}

func (m *MockListings) RefreshAll(ctx context.Context) ([]market.EnergyListing, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]market.EnergyListing), args.Error(1)
}

func (m *MockListings) Invalidate(owner string, listingID *uint64) {
	m.Called(owner, listingID)
}

type fakeTx struct {
	hash string
	err  error
}

func (f *fakeTx) Hash() string                   { return f.hash }
func (f *fakeTx) Wait(ctx context.Context) error { return f.err }

func solarListing(id uint64, energy, sold string) market.EnergyListing {
	return market.EnergyListing{
		ID:           id,
		Owner:        "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B",
		Name:         "Sunny Farm",
		Description:  "Rooftop array",
		CostPerUnit:  decimal.RequireFromString("0.01"),
		EnergyAmount: decimal.RequireFromString(energy),
		FuelType:     carbon.Solar,
		AmountSold:   decimal.RequireFromString(sold),
	}
}

// =====================================================
// State machine
// =====================================================

func TestStateMachineForwardOnly(t *testing.T) {
	sm := NewStateMachine()

	assert.True(t, sm.CanTransition(StateIdle, StateValidating))
	assert.True(t, sm.CanTransition(StateValidating, StateSubmitting))
	assert.True(t, sm.CanTransition(StateSubmitting, StateAwaitingConfirmation))
	assert.True(t, sm.CanTransition(StateAwaitingConfirmation, StateSucceeded))

	// Terminal states never transition; a new attempt needs a new coordinator.
	assert.False(t, sm.CanTransition(StateFailed, StateValidating))
	assert.False(t, sm.CanTransition(StateSucceeded, StateValidating))
	// No skipping ahead.
	assert.False(t, sm.CanTransition(StateIdle, StateSubmitting))
	assert.False(t, sm.CanTransition(StateValidating, StateSucceeded))
}

// =====================================================
// Buy energy
// =====================================================

func TestBuyEnergyRejectsOversizedOrderBeforeLedgerCall(t *testing.T) {
	lc := new(MockLedger)
	ls := new(MockListings)
	bus := events.NewBus(zap.NewNop())

	// 1000 kWh listed, 940 sold: 60 available.
	ls.On("Cached", uint64(3)).Return(solarListing(3, "1000", "940"), true)

	coord := NewCoordinator(lc, ls, bus, zap.NewNop())
	_, err := coord.BuyEnergy(context.Background(), PurchaseOrder{
		ListingID: 3,
		Mode:      BuyByEnergy,
		Energy:    decimal.RequireFromString("75"),
	})

	require.ErrorIs(t, err, market.ErrInsufficientSupply)
	assert.Equal(t, StateFailed, coord.State())
	lc.AssertNotCalled(t, "SubmitBuyEnergy", mock.Anything, mock.Anything, mock.Anything)
}

func TestBuyEnergyPaymentModeConvertsToEnergy(t *testing.T) {
	lc := new(MockLedger)
	ls := new(MockListings)
	bus := events.NewBus(zap.NewNop())

	listing := solarListing(0, "1000", "0")
	ls.On("Cached", uint64(0)).Return(listing, true)
	ls.On("Invalidate", listing.Owner, mock.Anything).Return()
	ls.On("Listing", mock.Anything, uint64(0)).Return(solarListing(0, "1000", "200"), nil)

	// 2 ETH at 0.01 ETH/kWh buys exactly 200 kWh.
	lc.On("SubmitBuyEnergy", mock.Anything, uint64(0), mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.RequireFromString("200"))
	})).Return(&fakeTx{hash: "0xbeef"}, nil)

	coord := NewCoordinator(lc, ls, bus, zap.NewNop())
	res, err := coord.BuyEnergy(context.Background(), PurchaseOrder{
		ListingID: 0,
		Mode:      BuyByPayment,
		Payment:   decimal.RequireFromString("2"),
	})

	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, res.State)
	assert.True(t, res.Energy.Equal(decimal.RequireFromString("200")), "got %s", res.Energy)
	assert.True(t, res.Payment.Equal(decimal.RequireFromString("2")), "got %s", res.Payment)
	lc.AssertExpectations(t)
}

func TestBuyEnergySuccessInvalidatesAndPublishes(t *testing.T) {
	lc := new(MockLedger)
	ls := new(MockListings)
	bus := events.NewBus(zap.NewNop())
	_, ch := bus.Subscribe()

	listing := solarListing(7, "500", "0")
	ls.On("Cached", uint64(7)).Return(listing, true)
	ls.On("Invalidate", listing.Owner, mock.MatchedBy(func(id *uint64) bool {
		return id != nil && *id == 7
	})).Return()
	ls.On("Listing", mock.Anything, uint64(7)).Return(solarListing(7, "500", "100"), nil)

	lc.On("SubmitBuyEnergy", mock.Anything, uint64(7), mock.Anything).Return(&fakeTx{hash: "0xcafe"}, nil)

	coord := NewCoordinator(lc, ls, bus, zap.NewNop())
	res, err := coord.BuyEnergy(context.Background(), PurchaseOrder{
		ListingID: 7,
		Mode:      BuyByEnergy,
		Energy:    decimal.RequireFromString("100"),
	})

	require.NoError(t, err)
	assert.Equal(t, "0xcafe", res.TxHash)
	require.NotNil(t, res.Listing)
	assert.True(t, res.Listing.AmountSold.Equal(decimal.RequireFromString("100")))

	first := <-ch
	second := <-ch
	assert.Equal(t, events.ScopeListing, first.Scope)
	assert.Equal(t, events.ScopePurchases, second.Scope)
	assert.Equal(t, uint64(7), first.ListingID)
	ls.AssertExpectations(t)
}

func TestBuyEnergyConfirmationRevertFailsMutation(t *testing.T) {
	lc := new(MockLedger)
	ls := new(MockListings)
	bus := events.NewBus(zap.NewNop())

	ls.On("Cached", uint64(0)).Return(solarListing(0, "1000", "0"), true)
	lc.On("SubmitBuyEnergy", mock.Anything, uint64(0), mock.Anything).
		Return(&fakeTx{hash: "0xdead", err: market.ErrInsufficientSupply}, nil)

	coord := NewCoordinator(lc, ls, bus, zap.NewNop())
	_, err := coord.BuyEnergy(context.Background(), PurchaseOrder{
		ListingID: 0,
		Mode:      BuyByEnergy,
		Energy:    decimal.RequireFromString("10"),
	})

	require.ErrorIs(t, err, market.ErrInsufficientSupply)
	assert.Equal(t, StateFailed, coord.State())
	ls.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
}

func TestCoordinatorConsumedAfterFailure(t *testing.T) {
	lc := new(MockLedger)
	ls := new(MockListings)
	bus := events.NewBus(zap.NewNop())

	ls.On("Cached", uint64(3)).Return(solarListing(3, "1000", "999"), true)

	coord := NewCoordinator(lc, ls, bus, zap.NewNop())
	_, err := coord.BuyEnergy(context.Background(), PurchaseOrder{
		ListingID: 3, Mode: BuyByEnergy, Energy: decimal.RequireFromString("50"),
	})
	require.ErrorIs(t, err, market.ErrInsufficientSupply)

	// The consumed coordinator rejects a retry even with valid input.
	_, err = coord.BuyEnergy(context.Background(), PurchaseOrder{
		ListingID: 3, Mode: BuyByEnergy, Energy: decimal.RequireFromString("1"),
	})
	require.ErrorIs(t, err, ErrInvalidInput)
}

// =====================================================
// Create listing
// =====================================================

func TestCreateListingValidation(t *testing.T) {
	lc := new(MockLedger)
	ls := new(MockListings)
	bus := events.NewBus(zap.NewNop())

	valid := ledger.ListingDraft{
		Name:         "Sunny Farm",
		Description:  "Rooftop array",
		FuelType:     carbon.Solar,
		CostPerUnit:  decimal.RequireFromString("0.01"),
		EnergyAmount: decimal.RequireFromString("1000"),
	}

	cases := []struct {
		name   string
		mutate func(d *ledger.ListingDraft)
	}{
		{"empty name", func(d *ledger.ListingDraft) { d.Name = "  " }},
		{"empty description", func(d *ledger.ListingDraft) { d.Description = "" }},
		{"unknown fuel type", func(d *ledger.ListingDraft) { d.FuelType = "Plutonium" }},
		{"negative cost", func(d *ledger.ListingDraft) { d.CostPerUnit = decimal.RequireFromString("-0.01") }},
		{"zero energy", func(d *ledger.ListingDraft) { d.EnergyAmount = decimal.Zero }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			draft := valid
			tc.mutate(&draft)

			coord := NewCoordinator(lc, ls, bus, zap.NewNop())
			_, err := coord.CreateListing(context.Background(), draft)

			require.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, StateFailed, coord.State())
		})
	}
	lc.AssertNotCalled(t, "SubmitCreateListing", mock.Anything, mock.Anything)
}

func TestCreateListingSuccessReturnsNewestOwnedListing(t *testing.T) {
	lc := new(MockLedger)
	ls := new(MockListings)
	bus := events.NewBus(zap.NewNop())

	owner := "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"
	lc.On("SessionAddress").Return(owner)
	lc.On("SubmitCreateListing", mock.Anything, mock.Anything).Return(&fakeTx{hash: "0xfeed"}, nil)
	ls.On("Invalidate", owner, (*uint64)(nil)).Return()
	ls.On("RefreshAll", mock.Anything).Return([]market.EnergyListing{
		solarListing(0, "1000", "100"),
		{ID: 1, Owner: "0x0000000000000000000000000000000000000001", Name: "Other", FuelType: carbon.Wind},
		solarListing(2, "500", "0"),
	}, nil)

	coord := NewCoordinator(lc, ls, bus, zap.NewNop())
	res, err := coord.CreateListing(context.Background(), ledger.ListingDraft{
		Name:         "Sunny Farm",
		Description:  "Rooftop array",
		FuelType:     carbon.Solar,
		CostPerUnit:  decimal.RequireFromString("0.01"),
		EnergyAmount: decimal.RequireFromString("500"),
	})

	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, res.State)
	require.NotNil(t, res.Listing)
	assert.Equal(t, uint64(2), res.Listing.ID)
	ls.AssertExpectations(t)
}

// =====================================================
// Quotes
// =====================================================

func TestQuotePurchaseByEnergy(t *testing.T) {
	lc := new(MockLedger)
	ls := new(MockListings)
	svc := NewService(lc, ls, events.NewBus(zap.NewNop()), zap.NewNop())

	ls.On("Listing", mock.Anything, uint64(0)).Return(solarListing(0, "1000", "0"), nil)

	energy := decimal.RequireFromString("100")
	quote, err := svc.QuotePurchase(context.Background(), 0, &energy, nil)

	require.NoError(t, err)
	assert.True(t, quote.Payment.Equal(decimal.RequireFromString("1")), "got %s", quote.Payment)
	assert.True(t, quote.FootprintKg.Equal(decimal.RequireFromString("4.1")), "got %s", quote.FootprintKg)
	assert.True(t, quote.SavedKg.Equal(decimal.RequireFromString("77.9")), "got %s", quote.SavedKg)
	assert.True(t, quote.AvailableSupply.Equal(decimal.RequireFromString("1000")))
}

func TestQuotePurchaseRequiresExactlyOneSide(t *testing.T) {
	lc := new(MockLedger)
	ls := new(MockListings)
	svc := NewService(lc, ls, events.NewBus(zap.NewNop()), zap.NewNop())

	energy := decimal.RequireFromString("100")
	payment := decimal.RequireFromString("1")

	_, err := svc.QuotePurchase(context.Background(), 0, nil, nil)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.QuotePurchase(context.Background(), 0, &energy, &payment)
	require.ErrorIs(t, err, ErrInvalidInput)
}

// =====================================================
// End to end against an in-memory ledger
// =====================================================

// fakeMarket backs both the listing projection and the trading service with
// one in-memory ledger so the full create, buy, re-read cycle can run.
type fakeMarket struct {
	mu      sync.Mutex
	records []market.EnergyListing
	session string
}

func (f *fakeMarket) SessionAddress() string { return f.session }

func (f *fakeMarket) ListListings(ctx context.Context) ([]market.EnergyListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]market.EnergyListing, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeMarket) ListListingsByOwner(ctx context.Context, owner string) ([]market.EnergyListing, error) {
	all, _ := f.ListListings(ctx)
	out := make([]market.EnergyListing, 0)
	for _, l := range all {
		if l.Owner == owner {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeMarket) NumberOfListings(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.records)), nil
}

func (f *fakeMarket) SubmitCreateListing(ctx context.Context, draft ledger.ListingDraft) (ledger.TxWaiter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, market.EnergyListing{
		ID:           uint64(len(f.records)),
		Owner:        f.session,
		Name:         draft.Name,
		Description:  draft.Description,
		CostPerUnit:  draft.CostPerUnit,
		EnergyAmount: draft.EnergyAmount,
		FuelType:     draft.FuelType,
		Image:        draft.Image,
	})
	return &fakeTx{hash: "0x01"}, nil
}

func (f *fakeMarket) SubmitBuyEnergy(ctx context.Context, id uint64, energyAmount decimal.Decimal) (ledger.TxWaiter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[id].AmountSold = f.records[id].AmountSold.Add(energyAmount)
	return &fakeTx{hash: "0x02"}, nil
}

func TestTradingFlowEndToEnd(t *testing.T) {
	fm := &fakeMarket{session: "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"}
	projection := listings.NewService(fm, zap.NewNop())
	bus := events.NewBus(zap.NewNop())
	svc := NewService(fm, projection, bus, zap.NewNop())
	ctx := context.Background()

	created, err := svc.CreateListing(ctx, ledger.ListingDraft{
		Name:         "Sunny Farm",
		Description:  "Rooftop array",
		FuelType:     carbon.Solar,
		CostPerUnit:  decimal.RequireFromString("0.01"),
		EnergyAmount: decimal.RequireFromString("1000"),
	})
	require.NoError(t, err)
	require.NotNil(t, created.Listing)
	assert.Equal(t, uint64(0), created.Listing.ID)

	bought, err := svc.BuyEnergy(ctx, PurchaseOrder{
		ListingID: 0,
		Mode:      BuyByEnergy,
		Energy:    decimal.RequireFromString("200"),
	})
	require.NoError(t, err)
	assert.True(t, bought.Payment.Equal(decimal.RequireFromString("2")), "got %s", bought.Payment)

	// The next read through the projection reflects the purchase.
	refreshed, err := projection.Listing(ctx, 0)
	require.NoError(t, err)
	assert.True(t, refreshed.AmountSold.Equal(decimal.RequireFromString("200")), "got %s", refreshed.AmountSold)
	assert.True(t, refreshed.AvailableSupply().Equal(decimal.RequireFromString("800")))

	// A second oversized purchase bounces off the refreshed snapshot.
	_, err = svc.BuyEnergy(ctx, PurchaseOrder{
		ListingID: 0,
		Mode:      BuyByEnergy,
		Energy:    decimal.RequireFromString("900"),
	})
	require.ErrorIs(t, err, market.ErrInsufficientSupply)
}

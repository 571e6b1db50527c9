package trading

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gridtrade/energy-portal/energy-portal-backend/internal/events"
	"gridtrade/energy-portal/energy-portal-backend/internal/ledger"
	"gridtrade/energy-portal/energy-portal-backend/internal/market"
	"gridtrade/energy-portal/energy-portal-backend/pkg/carbon"
)

// Quote prices a prospective purchase without touching the mutation path.
type Quote struct {
	ListingID       uint64          `json:"listing_id"`
	FuelType        carbon.FuelType `json:"fuel_type"`
	EnergyAmount    decimal.Decimal `json:"energy_amount"`
	Payment         decimal.Decimal `json:"payment"`
	AvailableSupply decimal.Decimal `json:"available_supply"`
	FootprintKg     decimal.Decimal `json:"footprint_kg"`
	SavedKg         decimal.Decimal `json:"saved_kg"`
}

// Service fronts the mutation coordinators. Each mutation gets a fresh
// coordinator; a failed attempt is retried by calling again, never by
// re-driving the consumed coordinator.
type Service struct {
	ledger   Ledger
	listings ListingProvider
	bus      *events.Bus
	logger   *zap.Logger
}

// NewService creates the trading service.
func NewService(lc Ledger, listings ListingProvider, bus *events.Bus, logger *zap.Logger) *Service {
	return &Service{
		ledger:   lc,
		listings: listings,
		bus:      bus,
		logger:   logger,
	}
}

// CreateListing runs one create-listing mutation to completion.
func (s *Service) CreateListing(ctx context.Context, draft ledger.ListingDraft) (*Result, error) {
	return NewCoordinator(s.ledger, s.listings, s.bus, s.logger).CreateListing(ctx, draft)
}

// BuyEnergy runs one buy-energy mutation to completion.
func (s *Service) BuyEnergy(ctx context.Context, order PurchaseOrder) (*Result, error) {
	return NewCoordinator(s.ledger, s.listings, s.bus, s.logger).BuyEnergy(ctx, order)
}

// QuotePurchase prices an order against the listing's current cost per unit
// and annotates it with carbon accounting. Exactly one of energy or payment
// must be set.
func (s *Service) QuotePurchase(ctx context.Context, id uint64, energy, payment *decimal.Decimal) (*Quote, error) {
	if (energy == nil) == (payment == nil) {
		return nil, fmt.Errorf("%w: exactly one of energy or payment must be given", ErrInvalidInput)
	}

	listing, err := s.listings.Listing(ctx, id)
	if err != nil {
		return nil, err
	}

	order := PurchaseOrder{ListingID: id}
	if energy != nil {
		order.Mode = BuyByEnergy
		order.Energy = *energy
	} else {
		order.Mode = BuyByPayment
		order.Payment = *payment
	}

	energyAmount, cost, err := resolveOrder(order, listing)
	if err != nil {
		return nil, err
	}

	footprint, err := carbon.Footprint(energyAmount, listing.FuelType)
	if err != nil {
		return nil, fmt.Errorf("quoting listing %d: %w", id, err)
	}
	saved, err := carbon.Savings(energyAmount, listing.FuelType)
	if err != nil {
		return nil, fmt.Errorf("quoting listing %d: %w", id, err)
	}

	return &Quote{
		ListingID:       id,
		FuelType:        listing.FuelType,
		EnergyAmount:    energyAmount,
		Payment:         cost,
		AvailableSupply: listing.AvailableSupply(),
		FootprintKg:     footprint,
		SavedKg:         saved,
	}, nil
}

// Listing exposes the read-your-writes point read for callers that only hold
// the trading service.
func (s *Service) Listing(ctx context.Context, id uint64) (market.EnergyListing, error) {
	return s.listings.Listing(ctx, id)
}

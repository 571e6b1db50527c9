package purchases

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"gridtrade/energy-portal/energy-portal-backend/internal/market"
)

// LedgerReader is the slice of the ledger client this projection consumes.
type LedgerReader interface {
	ListPurchasesForListing(ctx context.Context, id uint64) ([]market.Purchase, error)
	ListPurchasesForUser(ctx context.Context, buyer string) ([]market.UserPurchase, error)
}

// ListingProvider resolves listing metadata for joining into purchase
// groups; served by the listing projection so a mutation's invalidation is
// visible to the next purchase-history read.
type ListingProvider interface {
	Listing(ctx context.Context, id uint64) (market.EnergyListing, error)
}

// Service produces the purchase-history projections. It owns no snapshot of
// its own: purchase records are immutable and cheap to re-fetch, so every
// read recomputes the aggregates from ledger truth.
type Service struct {
	ledger     LedgerReader
	listings   ListingProvider
	aggregator *Aggregator
	logger     *zap.Logger
}

// NewService creates the purchase projection service.
func NewService(ledger LedgerReader, listings ListingProvider, logger *zap.Logger) *Service {
	return &Service{
		ledger:     ledger,
		listings:   listings,
		aggregator: NewAggregator(logger),
		logger:     logger,
	}
}

// HistoryForListing returns one listing's purchase history rolled up into a
// single group. A listing with no purchases yields a zeroed group, never an
// absent one.
func (s *Service) HistoryForListing(ctx context.Context, id uint64) (AggregatedPurchaseGroup, error) {
	listing, err := s.listings.Listing(ctx, id)
	if err != nil {
		return AggregatedPurchaseGroup{}, err
	}

	records, err := s.ledger.ListPurchasesForListing(ctx, id)
	if err != nil {
		return AggregatedPurchaseGroup{}, fmt.Errorf("fetching purchase history for listing %d: %w", id, err)
	}

	return s.aggregator.GroupListingHistory(listing, records), nil
}

// GroupsForUser returns one buyer's purchases grouped by listing.
func (s *Service) GroupsForUser(ctx context.Context, buyer string) ([]AggregatedPurchaseGroup, error) {
	records, err := s.ledger.ListPurchasesForUser(ctx, buyer)
	if err != nil {
		return nil, fmt.Errorf("fetching purchases for %s: %w", buyer, err)
	}

	groups := s.aggregator.GroupUserPurchases(records)
	s.logger.Debug("User purchase projection recomputed",
		zap.String("buyer", buyer),
		zap.Int("records", len(records)),
		zap.Int("groups", len(groups)))
	return groups, nil
}

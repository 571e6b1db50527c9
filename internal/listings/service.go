package listings

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gridtrade/energy-portal/energy-portal-backend/internal/market"
)

// LedgerReader is the slice of the ledger client this projection consumes.
type LedgerReader interface {
	ListListings(ctx context.Context) ([]market.EnergyListing, error)
	ListListingsByOwner(ctx context.Context, owner string) ([]market.EnergyListing, error)
	NumberOfListings(ctx context.Context) (uint64, error)
}

// Service owns the listing projection for the lifetime of the session. Every
// refresh is a full re-fetch: the ledger offers no change notifications and
// listing counts are small, so full refresh is the only method that cannot
// drift.
type Service struct {
	ledger LedgerReader
	cache  *Cache
	logger *zap.Logger
}

// NewService creates the listing projection service.
func NewService(ledger LedgerReader, logger *zap.Logger) *Service {
	return &Service{
		ledger: ledger,
		cache:  NewCache(),
		logger: logger,
	}
}

// RefreshAll re-fetches the global listing set. On failure the previous
// snapshot stays in place and the error surfaces to the caller.
func (s *Service) RefreshAll(ctx context.Context) ([]market.EnergyListing, error) {
	ls, err := s.ledger.ListListings(ctx)
	if err != nil {
		s.logger.Warn("Listing refresh failed, keeping prior snapshot", zap.Error(err))
		return nil, fmt.Errorf("refreshing listings: %w", err)
	}

	s.cache.ReplaceAll(ls)
	s.logger.Debug("Listing projection refreshed", zap.Int("count", len(ls)))
	return ls, nil
}

// RefreshForOwner re-fetches one owner's listing subset.
func (s *Service) RefreshForOwner(ctx context.Context, owner string) ([]market.EnergyListing, error) {
	ls, err := s.ledger.ListListingsByOwner(ctx, owner)
	if err != nil {
		s.logger.Warn("Owner listing refresh failed, keeping prior snapshot",
			zap.String("owner", owner), zap.Error(err))
		return nil, fmt.Errorf("refreshing listings for %s: %w", owner, err)
	}

	s.cache.ReplaceOwner(owner, ls)
	return ls, nil
}

// Cached serves a point lookup from the last successful refresh without any
// network call. ok is false when the id is unknown to the snapshot.
func (s *Service) Cached(id uint64) (market.EnergyListing, bool) {
	return s.cache.Get(id)
}

// CachedAll serves the last successful global snapshot.
func (s *Service) CachedAll() (ls []market.EnergyListing, refreshedAt time.Time, ok bool) {
	return s.cache.All()
}

// CachedForOwner serves the last successful owner snapshot.
func (s *Service) CachedForOwner(owner string) (ls []market.EnergyListing, refreshedAt time.Time, ok bool) {
	return s.cache.ForOwner(owner)
}

// Stale reports whether a mutation has invalidated the global snapshot.
func (s *Service) Stale() bool {
	return s.cache.Stale()
}

// Listing returns one listing, re-fetching first when the entry was
// invalidated by a mutation or has never been loaded. This is the
// read-your-writes path for the session that issued the mutation.
func (s *Service) Listing(ctx context.Context, id uint64) (market.EnergyListing, error) {
	if l, ok := s.cache.Get(id); ok && !s.cache.ListingStale(id) {
		return l, nil
	}

	if _, err := s.RefreshAll(ctx); err != nil {
		// Serve the stale entry if one exists; the caller sees fresh
		// data or stale data, never a partial merge.
		if l, ok := s.cache.Get(id); ok {
			return l, nil
		}
		return market.EnergyListing{}, err
	}

	l, ok := s.cache.Get(id)
	if !ok {
		return market.EnergyListing{}, fmt.Errorf("%w: id %d", market.ErrNotFound, id)
	}
	return l, nil
}

// Listings returns the global set, refreshing when the snapshot is stale or
// missing; otherwise it serves the cached snapshot.
func (s *Service) Listings(ctx context.Context, forceRefresh bool) ([]market.EnergyListing, bool, error) {
	if !forceRefresh && !s.cache.Stale() {
		if ls, _, ok := s.cache.All(); ok {
			return ls, false, nil
		}
	}

	ls, err := s.RefreshAll(ctx)
	if err != nil {
		if cached, _, ok := s.cache.All(); ok {
			return cached, true, nil
		}
		return nil, false, err
	}
	return ls, false, nil
}

// ListingsForOwner is the owner-scoped equivalent of Listings.
func (s *Service) ListingsForOwner(ctx context.Context, owner string, forceRefresh bool) ([]market.EnergyListing, bool, error) {
	if !forceRefresh && !s.cache.OwnerStale(owner) {
		if ls, _, ok := s.cache.ForOwner(owner); ok {
			return ls, false, nil
		}
	}

	ls, err := s.RefreshForOwner(ctx, owner)
	if err != nil {
		if cached, _, ok := s.cache.ForOwner(owner); ok {
			return cached, true, nil
		}
		return nil, false, err
	}
	return ls, false, nil
}

// Invalidate marks the projections touched by a successful mutation: the
// global snapshot, the owner's slot, and optionally one listing entry. The
// next read through this service re-fetches before serving.
func (s *Service) Invalidate(owner string, listingID *uint64) {
	s.cache.MarkStale()
	if owner != "" {
		s.cache.MarkOwnerStale(owner)
	}
	if listingID != nil {
		s.cache.MarkListingStale(*listingID)
	}
}

// Count returns the ledger's total listing count.
func (s *Service) Count(ctx context.Context) (uint64, error) {
	return s.ledger.NumberOfListings(ctx)
}

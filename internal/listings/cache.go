// Package listings materializes the listing projection: the global or
// owner-scoped listing set, refreshed whole from the ledger and served from
// memory. Snapshots are soft state, rebuildable at any time; they are
// replaced atomically and never patched incrementally.
package listings

import (
	"strings"
	"sync"
	"time"

	"gridtrade/energy-portal/energy-portal-backend/internal/market"
)

// snapshot is one fully-materialized refresh result. Readers only ever see a
// complete snapshot or none at all.
type snapshot struct {
	listings    []market.EnergyListing
	byID        map[uint64]market.EnergyListing
	refreshedAt time.Time
}

func newSnapshot(ls []market.EnergyListing) *snapshot {
	byID := make(map[uint64]market.EnergyListing, len(ls))
	for _, l := range ls {
		byID[l.ID] = l
	}
	return &snapshot{
		listings:    ls,
		byID:        byID,
		refreshedAt: time.Now(),
	}
}

// Cache holds the last successful snapshots of the listing projection. The
// global set and each owner subset occupy disjoint slots, so concurrent
// refreshes of different projections never contend on data. A failed refresh
// never touches a slot: stale-but-available beats blank.
type Cache struct {
	mu          sync.RWMutex
	global      *snapshot
	owners      map[string]*snapshot
	stale       bool
	staleOwners map[string]bool
	staleIDs    map[uint64]bool
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		owners:      make(map[string]*snapshot),
		staleOwners: make(map[string]bool),
		staleIDs:    make(map[uint64]bool),
	}
}

func ownerKey(owner string) string {
	return strings.ToLower(owner)
}

// ReplaceAll atomically installs a new global snapshot and clears all
// staleness marks, including per-listing ones: a full refresh supersedes
// every earlier invalidation.
func (c *Cache) ReplaceAll(ls []market.EnergyListing) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.global = newSnapshot(ls)
	c.stale = false
	c.staleIDs = make(map[uint64]bool)
}

// ReplaceOwner atomically installs a new snapshot for one owner's slot.
func (c *Cache) ReplaceOwner(owner string, ls []market.EnergyListing) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.owners[ownerKey(owner)] = newSnapshot(ls)
	delete(c.staleOwners, ownerKey(owner))
}

// All returns the last successful global snapshot. ok is false before the
// first successful refresh.
func (c *Cache) All() (ls []market.EnergyListing, refreshedAt time.Time, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.global == nil {
		return nil, time.Time{}, false
	}
	out := make([]market.EnergyListing, len(c.global.listings))
	copy(out, c.global.listings)
	return out, c.global.refreshedAt, true
}

// ForOwner returns the last successful snapshot of one owner's slot.
func (c *Cache) ForOwner(owner string) (ls []market.EnergyListing, refreshedAt time.Time, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := c.owners[ownerKey(owner)]
	if snap == nil {
		return nil, time.Time{}, false
	}
	out := make([]market.EnergyListing, len(snap.listings))
	copy(out, snap.listings)
	return out, snap.refreshedAt, true
}

// Get serves a point lookup from the last successful global snapshot. It
// never triggers a network call. A miss is a normal outcome.
func (c *Cache) Get(id uint64) (market.EnergyListing, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.global == nil {
		return market.EnergyListing{}, false
	}
	l, ok := c.global.byID[id]
	return l, ok
}

// MarkStale flags the global snapshot as superseded by a mutation. The data
// stays readable; the next read through the service re-fetches first.
func (c *Cache) MarkStale() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stale = true
}

// MarkOwnerStale flags one owner slot as superseded.
func (c *Cache) MarkOwnerStale(owner string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.staleOwners[ownerKey(owner)] = true
}

// MarkListingStale flags one listing entry as superseded.
func (c *Cache) MarkListingStale(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.staleIDs[id] = true
}

// Stale reports whether the global snapshot has been invalidated.
func (c *Cache) Stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stale
}

// OwnerStale reports whether an owner slot has been invalidated or never
// filled.
func (c *Cache) OwnerStale(owner string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.staleOwners[ownerKey(owner)] || c.owners[ownerKey(owner)] == nil
}

// ListingStale reports whether a listing entry has been invalidated.
func (c *Cache) ListingStale(id uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stale || c.staleIDs[id]
}

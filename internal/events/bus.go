// Package events carries projection-change signals from the mutation
// coordinator to subscribers, replacing implicit UI-lifecycle re-fetching
// with explicit invalidation notifications.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Scope identifies which projection a change touches.
type Scope string

const (
	// ScopeListings means the global listing projection was invalidated.
	ScopeListings Scope = "listings"
	// ScopeListing means one listing's entry was invalidated.
	ScopeListing Scope = "listing"
	// ScopePurchases means purchase-history projections referencing the
	// listing were invalidated.
	ScopePurchases Scope = "purchases"
)

// ProjectionChange is one invalidation signal.
type ProjectionChange struct {
	Scope     Scope     `json:"scope"`
	ListingID uint64    `json:"listing_id,omitempty"`
	TxHash    string    `json:"tx_hash,omitempty"`
	At        time.Time `json:"at"`
}

// Bus fans projection changes out to subscribers. Publishing never blocks: a
// subscriber that cannot keep up loses events rather than stalling the
// mutation path, and re-syncs with a full refresh.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]chan ProjectionChange
	logger *zap.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		subs:   make(map[uuid.UUID]chan ProjectionChange),
		logger: logger,
	}
}

// Subscribe registers a new subscriber and returns its id and channel.
func (b *Bus) Subscribe() (uuid.UUID, <-chan ProjectionChange) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New()
	ch := make(chan ProjectionChange, 16)
	b.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish delivers a change to every subscriber without blocking.
func (b *Bus) Publish(change ProjectionChange) {
	if change.At.IsZero() {
		change.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- change:
		default:
			b.logger.Warn("Dropping projection change for slow subscriber",
				zap.String("subscriber", id.String()),
				zap.String("scope", string(change.Scope)))
		}
	}
}

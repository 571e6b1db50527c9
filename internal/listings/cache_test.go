package listings

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridtrade/energy-portal/energy-portal-backend/internal/market"
	"gridtrade/energy-portal/energy-portal-backend/pkg/carbon"
)

func testListing(id uint64, owner string, sold int64) market.EnergyListing {
	return market.EnergyListing{
		ID:           id,
		Owner:        owner,
		Name:         "Listing",
		CostPerUnit:  decimal.RequireFromString("0.01"),
		EnergyAmount: decimal.NewFromInt(1000),
		FuelType:     carbon.Solar,
		AmountSold:   decimal.NewFromInt(sold),
	}
}

func TestCacheEmptyUntilFirstRefresh(t *testing.T) {
	cache := NewCache()

	_, _, ok := cache.All()
	assert.False(t, ok)

	_, ok = cache.Get(0)
	assert.False(t, ok)
}

func TestCacheReplaceAndGet(t *testing.T) {
	cache := NewCache()
	cache.ReplaceAll([]market.EnergyListing{testListing(0, "0xaa", 0), testListing(1, "0xbb", 50)})

	ls, _, ok := cache.All()
	require.True(t, ok)
	assert.Len(t, ls, 2)

	l, ok := cache.Get(1)
	require.True(t, ok)
	assert.True(t, l.AmountSold.Equal(decimal.NewFromInt(50)))

	_, ok = cache.Get(7)
	assert.False(t, ok)
}

func TestCacheOwnerSlotsAreDisjoint(t *testing.T) {
	cache := NewCache()
	cache.ReplaceOwner("0xAA", []market.EnergyListing{testListing(0, "0xAA", 0)})

	ls, _, ok := cache.ForOwner("0xaa") // case-insensitive key
	require.True(t, ok)
	assert.Len(t, ls, 1)

	_, _, ok = cache.ForOwner("0xbb")
	assert.False(t, ok)

	// Filling an owner slot never touches the global slot.
	_, _, ok = cache.All()
	assert.False(t, ok)
}

func TestCacheStaleMarks(t *testing.T) {
	cache := NewCache()
	cache.ReplaceAll([]market.EnergyListing{testListing(0, "0xaa", 0)})
	require.False(t, cache.Stale())

	cache.MarkListingStale(0)
	assert.True(t, cache.ListingStale(0))
	assert.False(t, cache.Stale())

	cache.MarkStale()
	assert.True(t, cache.Stale())
	assert.True(t, cache.ListingStale(5), "global staleness covers every entry")

	// Stale data remains readable until replaced.
	_, ok := cache.Get(0)
	assert.True(t, ok)

	cache.ReplaceAll([]market.EnergyListing{testListing(0, "0xaa", 200)})
	assert.False(t, cache.Stale())
	assert.False(t, cache.ListingStale(0))
}

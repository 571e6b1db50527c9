package purchases

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gridtrade/energy-portal/energy-portal-backend/internal/market"
	"gridtrade/energy-portal/energy-portal-backend/pkg/carbon"
)

func userPurchase(listingID uint64, title string, fuel carbon.FuelType, amount, cost string) market.UserPurchase {
	return market.UserPurchase{
		ListingID:    listingID,
		ListingTitle: title,
		Amount:       decimal.RequireFromString(amount),
		Cost:         decimal.RequireFromString(cost),
		FuelType:     fuel,
		Timestamp:    time.Unix(1700000000, 0).UTC(),
	}
}

func TestGroupUserPurchasesByListingID(t *testing.T) {
	agg := NewAggregator(zap.NewNop())

	// Two listings share a display name; they must not merge.
	records := []market.UserPurchase{
		userPurchase(0, "Sunny Farm", carbon.Solar, "100", "1"),
		userPurchase(1, "Sunny Farm", carbon.Solar, "50", "0.5"),
		userPurchase(0, "Sunny Farm", carbon.Solar, "25", "0.25"),
	}

	groups := agg.GroupUserPurchases(records)
	require.Len(t, groups, 2)

	assert.Equal(t, uint64(0), groups[0].ListingID)
	assert.Equal(t, "125", groups[0].TotalPurchased.String())
	assert.Equal(t, "1.25", groups[0].TotalCost.String())
	assert.Len(t, groups[0].Purchases, 2)

	assert.Equal(t, uint64(1), groups[1].ListingID)
	assert.Equal(t, "50", groups[1].TotalPurchased.String())
}

func TestGroupTotalsConserveAmounts(t *testing.T) {
	agg := NewAggregator(zap.NewNop())

	records := []market.UserPurchase{
		userPurchase(0, "A", carbon.Solar, "10.5", "0.105"),
		userPurchase(1, "B", carbon.Wind, "3.25", "0.065"),
		userPurchase(0, "A", carbon.Solar, "6.75", "0.0675"),
		userPurchase(2, "C", carbon.Hydro, "100", "2"),
	}

	var want decimal.Decimal
	for _, r := range records {
		want = want.Add(r.Amount)
	}

	var got decimal.Decimal
	for _, g := range agg.GroupUserPurchases(records) {
		got = got.Add(g.TotalPurchased)
	}
	assert.True(t, got.Equal(want), "got %s want %s", got, want)
}

func TestGroupCarbonAccounting(t *testing.T) {
	agg := NewAggregator(zap.NewNop())

	groups := agg.GroupUserPurchases([]market.UserPurchase{
		userPurchase(0, "Sunny Farm", carbon.Solar, "100", "1"),
	})
	require.Len(t, groups, 1)

	assert.True(t, groups[0].CurrentEmissions.Equal(decimal.RequireFromString("4.1")),
		"got %s", groups[0].CurrentEmissions)
	assert.True(t, groups[0].SavedCO2.Equal(decimal.RequireFromString("77.9")),
		"got %s", groups[0].SavedCO2)
}

func TestUnknownFuelTypeExcludedNotFatal(t *testing.T) {
	agg := NewAggregator(zap.NewNop())

	records := []market.UserPurchase{
		userPurchase(0, "A", carbon.Solar, "100", "1"),
		userPurchase(0, "A", carbon.FuelType("Plutonium"), "999", "9"),
	}

	groups := agg.GroupUserPurchases(records)
	require.Len(t, groups, 1)
	assert.Equal(t, "100", groups[0].TotalPurchased.String())
	assert.Equal(t, "1", groups[0].TotalCost.String())
	assert.Len(t, groups[0].Purchases, 1)
}

func TestGroupListingHistoryZeroPurchases(t *testing.T) {
	agg := NewAggregator(zap.NewNop())

	listing := market.EnergyListing{
		ID:       3,
		Name:     "Windy Ridge",
		FuelType: carbon.Wind,
	}

	group := agg.GroupListingHistory(listing, nil)
	assert.Equal(t, uint64(3), group.ListingID)
	assert.Equal(t, "Windy Ridge", group.Title)
	assert.True(t, group.TotalPurchased.IsZero())
	assert.True(t, group.TotalCost.IsZero())
	assert.True(t, group.CurrentEmissions.IsZero())
	assert.True(t, group.SavedCO2.IsZero())
	assert.NotNil(t, group.Purchases)
	assert.Empty(t, group.Purchases)
}

func TestGroupListingHistoryPreservesLedgerOrder(t *testing.T) {
	agg := NewAggregator(zap.NewNop())

	listing := market.EnergyListing{ID: 1, Name: "Sunny Farm", FuelType: carbon.Solar}
	records := []market.Purchase{
		{Buyer: "0xaa", Amount: decimal.NewFromInt(10), Cost: decimal.RequireFromString("0.1"), FuelType: carbon.Solar, Timestamp: time.Unix(100, 0)},
		{Buyer: "0xbb", Amount: decimal.NewFromInt(20), Cost: decimal.RequireFromString("0.2"), FuelType: carbon.Solar, Timestamp: time.Unix(200, 0)},
	}

	group := agg.GroupListingHistory(listing, records)
	require.Len(t, group.Purchases, 2)
	assert.True(t, group.Purchases[0].Timestamp.Before(group.Purchases[1].Timestamp))
	assert.Equal(t, "30", group.TotalPurchased.String())
}

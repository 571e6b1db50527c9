// Package purchases produces the aggregated purchase view models: raw
// per-listing and per-buyer purchase records rolled up into groups with
// running energy, cost, and carbon-accounting totals. Groups are derived
// state, recomputed on every refresh and never persisted.
package purchases

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gridtrade/energy-portal/energy-portal-backend/internal/market"
	"gridtrade/energy-portal/energy-portal-backend/pkg/carbon"
)

// AggregatedPurchaseGroup is all purchases against one listing, with running
// totals. Groups key on listing id; the title is display metadata only,
// since distinct listings may share a name.
type AggregatedPurchaseGroup struct {
	ListingID        uint64               `json:"listing_id"`
	Title            string               `json:"title"`
	FuelType         carbon.FuelType      `json:"fuel_type"`
	TotalPurchased   decimal.Decimal      `json:"total_purchased"`
	TotalCost        decimal.Decimal      `json:"total_cost"`
	CurrentEmissions decimal.Decimal      `json:"current_emissions_kg"`
	SavedCO2         decimal.Decimal      `json:"saved_co2_kg"`
	Purchases        []market.UserPurchase `json:"purchases"`
}

// Aggregator rolls purchase records up into groups in a single pass. It does
// not sort: the ledger yields records in insertion order, which is already
// chronological ascending, and display order belongs to the caller.
type Aggregator struct {
	logger *zap.Logger
}

// NewAggregator creates a new purchase aggregator.
func NewAggregator(logger *zap.Logger) *Aggregator {
	return &Aggregator{logger: logger}
}

// GroupUserPurchases groups one buyer's purchases by listing. A record whose
// fuel type has no carbon factor is logged and excluded from the aggregates
// entirely rather than aborting the projection.
func (a *Aggregator) GroupUserPurchases(records []market.UserPurchase) []AggregatedPurchaseGroup {
	byID := make(map[uint64]*AggregatedPurchaseGroup)
	order := make([]uint64, 0)

	for _, rec := range records {
		footprint, err := carbon.Footprint(rec.Amount, rec.FuelType)
		if err != nil {
			a.logger.Error("Excluding purchase with unknown fuel type from aggregates",
				zap.Uint64("listing_id", rec.ListingID),
				zap.String("fuel_type", string(rec.FuelType)),
				zap.Error(err))
			continue
		}
		saved, err := carbon.Savings(rec.Amount, rec.FuelType)
		if err != nil {
			a.logger.Error("Excluding purchase with unknown fuel type from aggregates",
				zap.Uint64("listing_id", rec.ListingID),
				zap.String("fuel_type", string(rec.FuelType)),
				zap.Error(err))
			continue
		}

		group, ok := byID[rec.ListingID]
		if !ok {
			group = &AggregatedPurchaseGroup{
				ListingID: rec.ListingID,
				Title:     rec.ListingTitle,
				FuelType:  rec.FuelType,
				Purchases: make([]market.UserPurchase, 0, 1),
			}
			byID[rec.ListingID] = group
			order = append(order, rec.ListingID)
		}

		group.TotalPurchased = group.TotalPurchased.Add(rec.Amount)
		group.TotalCost = group.TotalCost.Add(rec.Cost)
		group.CurrentEmissions = group.CurrentEmissions.Add(footprint)
		group.SavedCO2 = group.SavedCO2.Add(saved)
		group.Purchases = append(group.Purchases, rec)
	}

	groups := make([]AggregatedPurchaseGroup, 0, len(order))
	for _, id := range order {
		groups = append(groups, *byID[id])
	}
	return groups
}

// GroupListingHistory rolls up one listing's purchase history. A listing
// with zero purchases still yields a group with all aggregates at zero, so
// grouped keys stay stable across refreshes.
func (a *Aggregator) GroupListingHistory(listing market.EnergyListing, records []market.Purchase) AggregatedPurchaseGroup {
	annotated := make([]market.UserPurchase, 0, len(records))
	for _, rec := range records {
		annotated = append(annotated, market.UserPurchase{
			ListingID:    listing.ID,
			ListingTitle: listing.Name,
			Amount:       rec.Amount,
			Cost:         rec.Cost,
			FuelType:     rec.FuelType,
			Timestamp:    rec.Timestamp,
		})
	}

	groups := a.GroupUserPurchases(annotated)
	if len(groups) == 0 {
		return AggregatedPurchaseGroup{
			ListingID: listing.ID,
			Title:     listing.Name,
			FuelType:  listing.FuelType,
			Purchases: []market.UserPurchase{},
		}
	}
	return groups[0]
}

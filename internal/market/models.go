// Package market defines the record types shared by the ledger client and
// the projection layers, validated once at the ledger boundary. Amounts are
// decimal units (ETH, kWh); base-unit integers never appear here.
package market

import (
	"time"

	"github.com/shopspring/decimal"

	"gridtrade/energy-portal/energy-portal-backend/pkg/carbon"
)

// EnergyListing is one on-chain listing. Created by a create-listing
// mutation, mutated only by purchases increasing AmountSold, never deleted.
type EnergyListing struct {
	ID           uint64          `json:"id"`
	Owner        string          `json:"owner"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	CostPerUnit  decimal.Decimal `json:"cost_per_unit"`
	EnergyAmount decimal.Decimal `json:"energy_amount"`
	FuelType     carbon.FuelType `json:"fuel_type"`
	Image        string          `json:"image"`
	AmountSold   decimal.Decimal `json:"amount_sold"`
	CreatedAt    time.Time       `json:"created_at"`
}

// AvailableSupply returns the unsold energy according to this snapshot. The
// snapshot may lag a just-submitted purchase, so the value is advisory; the
// ledger enforces the real bound.
func (l EnergyListing) AvailableSupply() decimal.Decimal {
	return l.EnergyAmount.Sub(l.AmountSold)
}

// Purchase is one immutable purchase record for a listing. Cost and fuel
// type are joined in from the listing at read time.
type Purchase struct {
	Buyer     string          `json:"buyer"`
	Amount    decimal.Decimal `json:"amount"`
	Cost      decimal.Decimal `json:"cost"`
	FuelType  carbon.FuelType `json:"fuel_type"`
	Timestamp time.Time       `json:"timestamp"`
}

// UserPurchase is a purchase made by one buyer, annotated with the listing
// it belongs to so purchases across listings can be grouped.
type UserPurchase struct {
	ListingID    uint64          `json:"listing_id"`
	ListingTitle string          `json:"listing_title"`
	Amount       decimal.Decimal `json:"amount"`
	Cost         decimal.Decimal `json:"cost"`
	FuelType     carbon.FuelType `json:"fuel_type"`
	Timestamp    time.Time       `json:"timestamp"`
}

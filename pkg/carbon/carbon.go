// Package carbon holds the static fuel-type enumeration and the
// kg-CO2e-per-kWh factor table used for carbon accounting. The table ships
// with the system and is never fetched from the ledger.
package carbon

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// FuelType is the energy source of a listing, as recorded on the ledger.
type FuelType string

const (
	Solar      FuelType = "Solar"
	Wind       FuelType = "Wind"
	Hydro      FuelType = "Hydro"
	Biomass    FuelType = "Biomass"
	Geothermal FuelType = "Geothermal"
	FossilFuel FuelType = "Fossil Fuel"
)

// ErrUnknownFuelType indicates a fuel type with no factor table entry. Every
// enum value has an entry, so hitting this means a malformed ledger record.
var ErrUnknownFuelType = errors.New("unknown fuel type")

// FuelTypes lists every supported fuel type.
var FuelTypes = []FuelType{Solar, Wind, Hydro, Biomass, Geothermal, FossilFuel}

// factorPerKWh maps fuel type to lifecycle emissions in kg CO2e per kWh.
var factorPerKWh = map[FuelType]decimal.Decimal{
	Solar:      decimal.RequireFromString("0.041"),
	Wind:       decimal.RequireFromString("0.011"),
	Hydro:      decimal.RequireFromString("0.024"),
	Biomass:    decimal.RequireFromString("0.23"),
	Geothermal: decimal.RequireFromString("0.038"),
	FossilFuel: decimal.RequireFromString("0.82"),
}

// ParseFuelType validates a raw fuel type string from the ledger.
func ParseFuelType(s string) (FuelType, error) {
	ft := FuelType(s)
	if _, ok := factorPerKWh[ft]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFuelType, s)
	}
	return ft, nil
}

// FactorPerKWh returns the emission factor for the given fuel type.
func FactorPerKWh(ft FuelType) (decimal.Decimal, error) {
	factor, ok := factorPerKWh[ft]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownFuelType, ft)
	}
	return factor, nil
}

// Footprint returns the emissions, in kg CO2e, of generating amountKWh with
// the given fuel type.
func Footprint(amountKWh decimal.Decimal, ft FuelType) (decimal.Decimal, error) {
	factor, err := FactorPerKWh(ft)
	if err != nil {
		return decimal.Zero, err
	}
	return amountKWh.Mul(factor), nil
}

// Savings returns the emissions avoided, in kg CO2e, by generating amountKWh
// with the given fuel type instead of the fossil-fuel baseline.
func Savings(amountKWh decimal.Decimal, ft FuelType) (decimal.Decimal, error) {
	factor, err := FactorPerKWh(ft)
	if err != nil {
		return decimal.Zero, err
	}
	baseline := factorPerKWh[FossilFuel]
	return amountKWh.Mul(baseline.Sub(factor)), nil
}

// Package units converts between the ledger's fixed-point integer
// representation (18 implied decimal places, matching wei) and human decimal
// units for cost and energy quantities. All rounding is truncation toward
// zero, matching the ledger's integer arithmetic, so a cost computed here is
// never higher than what the ledger itself would compute.
package units

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Decimals is the number of implied decimal places in ledger base units.
const Decimals = 18

// scaleFactor is 10^Decimals.
var scaleFactor = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// ToBaseUnits converts a decimal quantity to ledger base units, truncating
// any precision beyond Decimals places.
func ToBaseUnits(d decimal.Decimal) *big.Int {
	return d.Shift(Decimals).Truncate(0).BigInt()
}

// ToDecimal converts a base-unit quantity back to decimal units.
func ToDecimal(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -Decimals)
}

// ComputeTotalCost computes the payment, in base units, for buying the given
// decimal energy amount at costPerUnit base units per kWh. The energy amount
// is scaled up first and the product scaled back down once; multiplying two
// base-unit quantities without descaling would inflate the result by the
// scale factor squared.
func ComputeTotalCost(costPerUnit *big.Int, energyAmount decimal.Decimal) *big.Int {
	amount := ToBaseUnits(energyAmount)
	total := new(big.Int).Mul(costPerUnit, amount)
	return total.Quo(total, scaleFactor)
}

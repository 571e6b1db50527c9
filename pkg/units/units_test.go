package units

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBaseUnits(t *testing.T) {
	v := ToBaseUnits(decimal.RequireFromString("1.5"))
	assert.Equal(t, "1500000000000000000", v.String())

	v = ToBaseUnits(decimal.Zero)
	assert.Equal(t, "0", v.String())

	// Precision beyond 18 places truncates toward zero.
	v = ToBaseUnits(decimal.RequireFromString("0.0000000000000000019"))
	assert.Equal(t, "1", v.String())
}

func TestToDecimalRoundTrip(t *testing.T) {
	inputs := []string{"1.5", "0.001", "250", "0.000000000000000001", "12345.6789"}
	for _, in := range inputs {
		d := decimal.RequireFromString(in)
		assert.True(t, ToDecimal(ToBaseUnits(d)).Equal(d), "round trip of %s", in)
	}
}

func TestToDecimalNil(t *testing.T) {
	assert.True(t, ToDecimal(nil).IsZero())
}

func TestComputeTotalCost(t *testing.T) {
	// 0.001 ETH per kWh, 250 kWh => 0.25 ETH.
	costPerUnit, ok := new(big.Int).SetString("1000000000000000", 10)
	require.True(t, ok)

	total := ComputeTotalCost(costPerUnit, decimal.NewFromInt(250))
	assert.Equal(t, "250000000000000000", total.String())
}

func TestComputeTotalCostTruncates(t *testing.T) {
	// 3 wei per kWh, one third of a kWh: exact product is 0.999... base
	// units which must floor to 0 rather than round up to 1.
	total := ComputeTotalCost(big.NewInt(3), decimal.RequireFromString("0.333333333333333333"))
	assert.Equal(t, "0", total.String())
}

func TestComputeTotalCostNoSquaredScale(t *testing.T) {
	// 1 ETH per kWh, 1 kWh must cost exactly 1 ETH, not 1e18 ETH.
	oneEth, ok := new(big.Int).SetString("1000000000000000000", 10)
	require.True(t, ok)

	total := ComputeTotalCost(oneEth, decimal.NewFromInt(1))
	assert.Equal(t, oneEth.String(), total.String())
}

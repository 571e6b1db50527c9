package carbon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryFuelTypeHasFactor(t *testing.T) {
	for _, ft := range FuelTypes {
		_, err := FactorPerKWh(ft)
		assert.NoError(t, err, "fuel type %s", ft)
	}
}

func TestParseFuelType(t *testing.T) {
	ft, err := ParseFuelType("Fossil Fuel")
	require.NoError(t, err)
	assert.Equal(t, FossilFuel, ft)

	_, err = ParseFuelType("Nuclear")
	assert.ErrorIs(t, err, ErrUnknownFuelType)
}

func TestFootprintAndSavings(t *testing.T) {
	amount := decimal.NewFromInt(100)

	footprint, err := Footprint(amount, Solar)
	require.NoError(t, err)
	assert.True(t, footprint.Equal(decimal.RequireFromString("4.1")), "got %s", footprint)

	saved, err := Savings(amount, Solar)
	require.NoError(t, err)
	assert.True(t, saved.Equal(decimal.RequireFromString("77.9")), "got %s", saved)
}

func TestFossilBaselineSavesNothing(t *testing.T) {
	saved, err := Savings(decimal.NewFromInt(500), FossilFuel)
	require.NoError(t, err)
	assert.True(t, saved.IsZero())
}

func TestUnknownFuelType(t *testing.T) {
	_, err := Footprint(decimal.NewFromInt(1), FuelType("Plutonium"))
	assert.ErrorIs(t, err, ErrUnknownFuelType)

	_, err = Savings(decimal.NewFromInt(1), FuelType("Plutonium"))
	assert.ErrorIs(t, err, ErrUnknownFuelType)
}

package units

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactor_Identity(t *testing.T) {
	f, err := Factor("kg", "kilos")
	require.NoError(t, err)
	assert.True(t, f.Equal(decimal.NewFromInt(1)))
}

func TestFactor_MassToBase(t *testing.T) {
	f, err := Factor("kg", "g")
	require.NoError(t, err)
	assert.Equal(t, "1000", f.String())

	f, err = Factor("g", "kg")
	require.NoError(t, err)
	assert.Equal(t, "0.001", f.String())
}

func TestConvert_VolumeLitresToMillilitres(t *testing.T) {
	q, f, err := Convert(decimal.RequireFromString("2.5"), "L", "ml")
	require.NoError(t, err)
	assert.Equal(t, "2500", q.String())
	assert.Equal(t, "1000", f.String())
}

func TestConvert_CountDozens(t *testing.T) {
	q, _, err := Convert(decimal.NewFromInt(3), "docena", "unidad")
	require.NoError(t, err)
	assert.Equal(t, "36", q.String())
}

func TestFactor_UnknownUnitFails(t *testing.T) {
	_, err := Factor("bushel", "g")
	assert.ErrorIs(t, err, ErrUnknownUnit)

	_, err = Factor("g", "")
	assert.ErrorIs(t, err, ErrUnknownUnit)
}

func TestFactor_CrossDimensionFails(t *testing.T) {
	_, err := Factor("kg", "l")
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestBaseUnit(t *testing.T) {
	cases := map[string]string{
		"kg":      Gram,
		"galones": Milliliter,
		"docena":  Unit,
	}
	for in, want := range cases {
		got, err := BaseUnit(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

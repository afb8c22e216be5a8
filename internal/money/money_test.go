package money

import (
	"encoding/json"
	"testing"

	"github.com/fincore/ledger-engine/internal/errs"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMajorUnitsRoundTrip(t *testing.T) {
	m, err := FromMajorUnits("10.00")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), m.MinorUnits())
	assert.Equal(t, "10.00", m.String())

	m, err = FromMajorUnits("-3.5")
	require.NoError(t, err)
	assert.Equal(t, int64(-350), m.MinorUnits())
	assert.Equal(t, "-3.50", m.String())
}

func TestFromMajorUnitsRejectsExcessPrecision(t *testing.T) {
	_, err := FromMajorUnits("10.005")
	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	_, err = FromMajorUnits("not-a-number")
	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	// trailing zeros beyond scale are still exact
	m, err := FromMajorUnits("1.250")
	require.NoError(t, err)
	assert.Equal(t, int64(125), m.MinorUnits())
}

func TestAddNoDrift(t *testing.T) {
	dime, err := FromMajorUnits("0.10")
	require.NoError(t, err)

	sum := Zero
	for i := 0; i < 10; i++ {
		var err error
		sum, err = sum.Add(dime)
		require.NoError(t, err)
	}
	assert.Equal(t, "1.00", sum.String())
}

func TestSubMayGoNegative(t *testing.T) {
	a := FromMinorUnits(100)
	b := FromMinorUnits(250)

	got, err := a.Sub(b)
	require.NoError(t, err)
	assert.True(t, got.IsNegative())
	assert.Equal(t, "-1.50", got.String())
}

func TestAddOverflow(t *testing.T) {
	a := FromMinorUnits(1<<63 - 1)
	_, err := a.Add(FromMinorUnits(1))
	require.Error(t, err)
	assert.Equal(t, errs.KindOverflow, errs.KindOf(err))
}

func TestMulRateBankersRounding(t *testing.T) {
	half := decimal.RequireFromString("0.5")

	// 1.25 * 0.5 = 0.625 -> 62.5 minor units -> rounds to even 62
	got, err := FromMinorUnits(125).MulRate(half)
	require.NoError(t, err)
	assert.Equal(t, int64(62), got.MinorUnits())

	// 1.35 * 0.5 = 0.675 -> 67.5 minor units -> rounds to even 68
	got, err = FromMinorUnits(135).MulRate(half)
	require.NoError(t, err)
	assert.Equal(t, int64(68), got.MinorUnits())

	// rounding is applied once, not accumulated
	rate := decimal.RequireFromString("0.025")
	got, err = FromMinorUnits(10000).MulRate(rate) // 100.00 * 2.5% = 2.50 exactly
	require.NoError(t, err)
	assert.Equal(t, "2.50", got.String())
}

func TestCmpAndPredicates(t *testing.T) {
	a := FromMinorUnits(100)
	b := FromMinorUnits(200)

	assert.Equal(t, -1, a.Cmp(b))
	assert.Equal(t, 1, b.Cmp(a))
	assert.Equal(t, 0, a.Cmp(FromMinorUnits(100)))
	assert.True(t, Zero.IsZero())
	assert.True(t, a.IsPositive())
	assert.True(t, a.Neg().IsNegative())
}

func TestJSONEncoding(t *testing.T) {
	m := FromMinorUnits(1050)
	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `"10.50"`, string(b))

	var back Money
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, 0, m.Cmp(back))
}

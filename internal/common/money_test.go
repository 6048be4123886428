package common

import (
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatIndianRupee(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{5, "5.00"},
		{999.999, "1,000.00"},
		{1234.5, "1,234.50"},
		{-1234.5, "-1,234.50"},
		{100000, "1,00,000.00"},
		{1234567.891, "12,34,567.89"},
		{-98765432.1, "-9,87,65,432.10"},
		{-0.001, "0.00"},
	}
	for _, tt := range tests {
		t.Run(strconv.FormatFloat(tt.in, 'f', -1, 64), func(t *testing.T) {
			assert.Equal(t, tt.want, FormatIndianRupee(tt.in))
		})
	}
}

func TestFormatIndianRupee_SignRoundTrip(t *testing.T) {
	for _, v := range []float64{-1234.5, 1234.5, -7, -100000.25} {
		s := FormatIndianRupee(v)
		parsed, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
		require.NoError(t, err)
		assert.InDelta(t, math.Round(v*100)/100, parsed, 1e-9, "formatted %q", s)
	}
}

func TestFormatRupee(t *testing.T) {
	assert.Equal(t, "₹1,234.50", FormatRupee(1234.5))
	assert.Equal(t, "-₹1,234.50", FormatRupee(-1234.5))
	assert.Equal(t, "N/A", FormatOptionalRupee(nil))
	assert.Equal(t, "₹10.00", FormatOptionalRupee(Ptr(10)))
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "N/A", FormatPercent(nil))
	assert.Equal(t, "20.00%", FormatPercent(Ptr(20)))
	assert.Equal(t, "-33.33%", FormatPercent(Ptr(-33.333)))
}

func TestProfitArithmetic(t *testing.T) {
	assert.Equal(t, 200.0, Profit(4, 100, 150))
	assert.Equal(t, -30.0, Profit(3, 20, 10))
	assert.Equal(t, 0.3, Amount(3, 0.1))

	pct := ProfitPercentage(200, 4, 100)
	require.NotNil(t, pct)
	assert.Equal(t, 50.0, *pct)

	assert.Nil(t, ProfitPercentage(10, 5, 0), "zero cost yields unavailable")

	change := ChangePercentage(100, 120)
	require.NotNil(t, change)
	assert.Equal(t, 20.0, *change)
	assert.Nil(t, ChangePercentage(0, 120))
}

func TestIsPositiveFinite(t *testing.T) {
	assert.True(t, IsPositiveFinite(0.01))
	assert.False(t, IsPositiveFinite(0))
	assert.False(t, IsPositiveFinite(-1))
	assert.False(t, IsPositiveFinite(math.NaN()))
	assert.False(t, IsPositiveFinite(math.Inf(1)))
}

func TestFormatQuantity(t *testing.T) {
	assert.Equal(t, "0.3", FormatQuantity(0.1+0.2))
	assert.Equal(t, "10", FormatQuantity(10))
	assert.Equal(t, "2.5", FormatQuantity(2.5))
	assert.Equal(t, "-", FormatQuantity(math.NaN()))
}

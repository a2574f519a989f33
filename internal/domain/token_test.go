package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHumanToRaw_RoundTrip(t *testing.T) {
	cases := []struct {
		amount   string
		decimals uint8
	}{
		{"0.1", 9},
		{"1", 9},
		{"150", 6},
		{"0.000001", 6},
		{"123456.789", 5},
		{"0", 0},
		{"18446744073.709551615", 9},
	}

	for _, tc := range cases {
		a := decimal.RequireFromString(tc.amount)
		raw, err := HumanToRaw(a, tc.decimals)
		require.NoError(t, err, tc.amount)
		got := RawToHuman(raw, tc.decimals)
		assert.True(t, got.Equal(a), "%s (d=%d): got %s", tc.amount, tc.decimals, got)
	}
}

func TestHumanToRaw_Floors(t *testing.T) {
	raw, err := HumanToRaw(decimal.RequireFromString("1.0000009"), 6)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000000), raw)

	raw, err = HumanToRaw(decimal.RequireFromString("0.0000009"), 6)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), raw)

	// Excess precision is dropped, never rounded up.
	raw, err = HumanToRaw(decimal.RequireFromString("2.999999999"), 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(299), raw)
}

func TestHumanToRaw_Invalid(t *testing.T) {
	_, err := HumanToRaw(decimal.RequireFromString("-1"), 9)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = HumanToRaw(decimal.RequireFromString("18446744073.709551616"), 9)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestNormalizeSymbol(t *testing.T) {
	assert.Equal(t, "SOL", NormalizeSymbol(" sol "))
	assert.Equal(t, "WIF", NormalizeSymbol("$wif"))
}

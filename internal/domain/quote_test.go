package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var (
	testSOL  = Token{Symbol: "SOL", Mint: "So11111111111111111111111111111111111111112", Decimals: 9}
	testUSDC = Token{Symbol: "USDC", Mint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6}
)

func TestQuote_ExchangeRate_IndependentOfFixingMode(t *testing.T) {
	for _, mode := range []FixingMode{ExactInput, ExactOutput} {
		q := &Quote{
			InputToken:      testSOL,
			OutputToken:     testUSDC,
			InputAmountRaw:  1_000_000_000,
			OutputAmountRaw: 150_000_000,
			FixingMode:      mode,
		}
		assert.True(t, q.OutputAmount().Equal(decimal.NewFromInt(150)), mode)
		assert.True(t, q.ExchangeRate().Equal(decimal.NewFromInt(150)), "%s: %s", mode, q.ExchangeRate())
	}
}

func TestQuote_ExchangeRate_MatchesRatio(t *testing.T) {
	q := &Quote{
		InputToken:      testUSDC,
		OutputToken:     testSOL,
		InputAmountRaw:  15_123_456,
		OutputAmountRaw: 100_000_000,
		FixingMode:      ExactOutput,
	}
	want := q.OutputAmount().DivRound(q.InputAmount(), 18)
	assert.True(t, q.ExchangeRate().Equal(want))
}

func TestQuote_ExchangeRate_ZeroInput(t *testing.T) {
	q := &Quote{InputToken: testSOL, OutputToken: testUSDC}
	assert.True(t, q.ExchangeRate().IsZero())
}

func TestQuote_FixedAmountRaw(t *testing.T) {
	q := &Quote{InputAmountRaw: 10, OutputAmountRaw: 20, FixingMode: ExactInput}
	assert.Equal(t, uint64(10), q.FixedAmountRaw())
	q.FixingMode = ExactOutput
	assert.Equal(t, uint64(20), q.FixedAmountRaw())
}

func TestFixingMode_SwapMode(t *testing.T) {
	assert.Equal(t, "ExactIn", ExactInput.SwapMode())
	assert.Equal(t, "ExactOut", ExactOutput.SwapMode())

	m, ok := FixingModeFromSwapMode("ExactOut")
	assert.True(t, ok)
	assert.Equal(t, ExactOutput, m)

	_, ok = FixingModeFromSwapMode("Both")
	assert.False(t, ok)
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// FixingMode selects which side of a swap carries the user's literal amount.
type FixingMode string

const (
	ExactInput  FixingMode = "EXACT_INPUT"
	ExactOutput FixingMode = "EXACT_OUTPUT"
)

// String returns the string representation of FixingMode.
func (m FixingMode) String() string {
	return string(m)
}

// IsValid checks if the fixing mode is a valid value.
func (m FixingMode) IsValid() bool {
	return m == ExactInput || m == ExactOutput
}

// SwapMode returns the aggregator wire value ("ExactIn" / "ExactOut").
func (m FixingMode) SwapMode() string {
	if m == ExactOutput {
		return "ExactOut"
	}
	return "ExactIn"
}

// FixingModeFromSwapMode parses an aggregator swapMode value.
func FixingModeFromSwapMode(s string) (FixingMode, bool) {
	switch s {
	case "ExactIn":
		return ExactInput, true
	case "ExactOut":
		return ExactOutput, true
	}
	return "", false
}

// Quote source identifiers.
const (
	QuoteSourceJupiter      = "jupiter"
	QuoteSourceJupiterOrder = "jupiter-order"
	QuoteSourceRaydium      = "raydium"
)

// PoolRef is the opaque route/pool reference carried by a quote.
type PoolRef struct {
	ID          string // unique per quote; staleness is tracked by this ID
	Source      string // quote source that produced the reference
	Route       string // human-readable route (AMM labels or pool address)
	PoolAddress string // pool account for single-pool routes
	Payload     []byte // raw upstream quote, replayed to the build endpoint
	RequestID   string // aggregator order request ID (execute mode)
	Transaction string // base64 transaction returned with an order
}

// Quote is a single-use price quote for a swap.
// Created fresh per quote request and never mutated.
type Quote struct {
	ID                   string
	InputToken           Token
	OutputToken          Token
	InputAmountRaw       uint64
	OutputAmountRaw      uint64
	OtherAmountThreshold uint64 // min output (ExactInput) or max input (ExactOutput)
	SlippageBps          uint16
	PriceImpactPercent   float64
	FixingMode           FixingMode
	PoolRef              PoolRef
	FetchedAt            time.Time
}

// InputAmount returns the input side in human units.
func (q *Quote) InputAmount() decimal.Decimal {
	return RawToHuman(q.InputAmountRaw, q.InputToken.Decimals)
}

// OutputAmount returns the output side in human units.
func (q *Quote) OutputAmount() decimal.Decimal {
	return RawToHuman(q.OutputAmountRaw, q.OutputToken.Decimals)
}

// ExchangeRate returns output per unit of input in human units.
// The ratio is the same whichever side was fixed.
func (q *Quote) ExchangeRate() decimal.Decimal {
	in := q.InputAmount()
	if in.IsZero() {
		return decimal.Zero
	}
	return q.OutputAmount().DivRound(in, 18)
}

// FixedAmountRaw returns the raw amount of the side fixed by the user.
func (q *Quote) FixedAmountRaw() uint64 {
	if q.FixingMode == ExactOutput {
		return q.OutputAmountRaw
	}
	return q.InputAmountRaw
}

// ThresholdAmount returns the slippage bound in human units of its side.
func (q *Quote) ThresholdAmount() decimal.Decimal {
	if q.FixingMode == ExactOutput {
		return RawToHuman(q.OtherAmountThreshold, q.InputToken.Decimals)
	}
	return RawToHuman(q.OtherAmountThreshold, q.OutputToken.Decimals)
}

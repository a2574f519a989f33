package jupiter

import (
	"encoding/json"
	"strconv"
)

// Swap modes accepted by the quote endpoint.
const (
	SwapModeExactIn  = "ExactIn"
	SwapModeExactOut = "ExactOut"
)

// QuoteParams contains the parameters for requesting a quote.
type QuoteParams struct {
	InputMint   string
	OutputMint  string
	Amount      uint64 // raw units of the fixed side
	SlippageBps uint16
	SwapMode    string // "ExactIn" or "ExactOut"
}

// QuoteResponse is the response of /swap/v1/quote.
type QuoteResponse struct {
	InputMint            string      `json:"inputMint"`
	InAmount             string      `json:"inAmount"`
	OutputMint           string      `json:"outputMint"`
	OutAmount            string      `json:"outAmount"`
	OtherAmountThreshold string      `json:"otherAmountThreshold"`
	SwapMode             string      `json:"swapMode"`
	SlippageBps          uint16      `json:"slippageBps"`
	PriceImpactPct       string      `json:"priceImpactPct"`
	RoutePlan            []RoutePlan `json:"routePlan"`
	ContextSlot          int64       `json:"contextSlot,omitempty"`
	TimeTaken            float64     `json:"timeTaken,omitempty"`

	// Raw is the response body, replayed verbatim to /swap.
	Raw json.RawMessage `json:"-"`
}

// RoutePlan describes a single step in the swap route.
type RoutePlan struct {
	SwapInfo SwapInfo `json:"swapInfo"`
	Percent  int      `json:"percent"`
}

// SwapInfo contains details about a swap step.
type SwapInfo struct {
	AmmKey     string `json:"ammKey"`
	Label      string `json:"label"`
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
	FeeAmount  string `json:"feeAmount"`
	FeeMint    string `json:"feeMint"`
}

// SwapParams contains the parameters for building a swap transaction.
type SwapParams struct {
	QuoteResponse           json.RawMessage `json:"quoteResponse"`
	UserPublicKey           string          `json:"userPublicKey"`
	WrapAndUnwrapSol        bool            `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit bool            `json:"dynamicComputeUnitLimit"`
	AsLegacyTransaction     bool            `json:"asLegacyTransaction,omitempty"`
}

// SwapResponse is the response of /swap/v1/swap.
type SwapResponse struct {
	SwapTransaction           string `json:"swapTransaction"` // base64-encoded versioned transaction
	LastValidBlockHeight      uint64 `json:"lastValidBlockHeight"`
	PrioritizationFeeLamports uint64 `json:"prioritizationFeeLamports,omitempty"`
	ComputeUnitLimit          uint32 `json:"computeUnitLimit,omitempty"`
}

// OrderParams contains the parameters for /ultra/v1/order.
type OrderParams struct {
	InputMint  string
	OutputMint string
	Amount     uint64 // raw input amount
	Taker      string // wallet public key; without it no transaction is returned
}

// OrderResponse is the response of /ultra/v1/order.
type OrderResponse struct {
	RequestID            string      `json:"requestId"`
	Transaction          string      `json:"transaction"` // base64, empty when the order cannot be built
	InputMint            string      `json:"inputMint"`
	OutputMint           string      `json:"outputMint"`
	InAmount             string      `json:"inAmount"`
	OutAmount            string      `json:"outAmount"`
	OtherAmountThreshold string      `json:"otherAmountThreshold"`
	SwapMode             string      `json:"swapMode"`
	SlippageBps          uint16      `json:"slippageBps"`
	PriceImpactPct       string      `json:"priceImpactPct"`
	RoutePlan            []RoutePlan `json:"routePlan"`
	ErrorMessage         string      `json:"errorMessage,omitempty"`
}

// ExecuteParams contains the body of /ultra/v1/execute.
type ExecuteParams struct {
	SignedTransaction string `json:"signedTransaction"` // base64
	RequestID         string `json:"requestId"`
}

// Execute statuses.
const (
	ExecuteStatusSuccess = "Success"
	ExecuteStatusFailed  = "Failed"
)

// ExecuteResponse is the response of /ultra/v1/execute.
type ExecuteResponse struct {
	Status             string `json:"status"`
	Signature          string `json:"signature"`
	Slot               string `json:"slot,omitempty"`
	Error              string `json:"error,omitempty"`
	Code               int    `json:"code"`
	InputAmountResult  string `json:"inputAmountResult,omitempty"`
	OutputAmountResult string `json:"outputAmountResult,omitempty"`
}

// Route returns the AMM labels joined by " > ".
func Route(plan []RoutePlan) string {
	route := ""
	for i, step := range plan {
		if i > 0 {
			route += " > "
		}
		label := step.SwapInfo.Label
		if label == "" {
			label = step.SwapInfo.AmmKey
		}
		route += label
	}
	return route
}

// ParseAmount parses a decimal string amount from the API.
func ParseAmount(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

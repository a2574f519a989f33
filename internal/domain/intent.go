package domain

import "github.com/shopspring/decimal"

// IntentKind is the classified purpose of a user message.
type IntentKind string

const (
	IntentBuySOL        IntentKind = "buy_sol"
	IntentBuyToken      IntentKind = "buy_token"
	IntentSellToken     IntentKind = "sell_token"
	IntentExploreYield  IntentKind = "explore_yield"
	IntentViewPortfolio IntentKind = "view_portfolio"
	IntentOutOfScope    IntentKind = "out_of_scope"
)

// IsValid checks if the intent kind is a known value.
func (k IntentKind) IsValid() bool {
	switch k {
	case IntentBuySOL, IntentBuyToken, IntentSellToken, IntentExploreYield, IntentViewPortfolio, IntentOutOfScope:
		return true
	}
	return false
}

// IsTrade reports whether the intent leads to a swap.
func (k IntentKind) IsTrade() bool {
	return k == IntentBuySOL || k == IntentBuyToken || k == IntentSellToken
}

// Intent is the structured output of intent classification.
type Intent struct {
	Kind       IntentKind
	Amount     *decimal.Decimal // nil when the text carries no amount
	Token      string           // token the user referenced, as typed
	PayWith    string           // counter token, as typed; empty for default
	FixingMode FixingMode       // empty for the intent's default
	Message    string           // assistant text from the classifier
	Source     string           // classifier that produced the intent
}

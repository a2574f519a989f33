package intent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"solana-swap-assistant/internal/chat"
	"solana-swap-assistant/internal/domain"
)

const (
	// Grouped thousands ("1,000") win over a decimal comma ("1,5").
	amountPattern = `(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:[.,]\d+)?|\.\d+)`
	tokenPattern  = `\$?([a-z][a-z0-9]{1,15})`
)

var (
	swapRe  = regexp.MustCompile(`(?i)\b(?:swap|trade|convert|exchange)\s+` + amountPattern + `\s*` + tokenPattern + `\s+(?:for|to|into)\s+` + tokenPattern + `\b`)
	spendRe = regexp.MustCompile(`(?i)\b(?:spend|use)\s+` + amountPattern + `\s*` + tokenPattern + `\s+(?:on|for|to buy)\s+` + tokenPattern + `\b`)
	buyRe   = regexp.MustCompile(`(?i)\b(?:buy|get|purchase)\s+` + amountPattern + `\s*` + tokenPattern + `(?:\s+(?:with|using)\s+` + tokenPattern + `)?\b`)
	sellRe  = regexp.MustCompile(`(?i)\bsell\s+` + amountPattern + `\s*` + tokenPattern + `(?:\s+(?:for|to|into)\s+` + tokenPattern + `)?\b`)

	yieldRe     = regexp.MustCompile(`(?i)\b(?:yield|yields|apy|apr|stake|staking|lend|lending|earn|interest)\b`)
	portfolioRe = regexp.MustCompile(`(?i)\b(?:portfolio|balance|balances|holdings|my wallet|my tokens)\b`)
	groupedRe   = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+(?:\.\d+)?$`)
	mentionRe   = regexp.MustCompile(`(?i)\b(?:for|on|with)\s+` + tokenPattern + `\b`)
)

// OutOfScopeMessage is the reply for messages the assistant cannot act on.
const OutOfScopeMessage = `I can buy or sell tokens on Solana and show yield options. Try "buy 0.1 SOL" or "sell 100 BONK".`

// PatternClassifier extracts intents with regular expressions.
type PatternClassifier struct{}

// NewPatternClassifier creates a regex classifier.
func NewPatternClassifier() *PatternClassifier {
	return &PatternClassifier{}
}

// Compile-time interface check.
var _ Classifier = (*PatternClassifier)(nil)

// Classify implements Classifier. It never fails; unmatched text is out of scope.
func (c *PatternClassifier) Classify(_ context.Context, text string, _ []chat.Message) (domain.Intent, error) {
	in := classifyText(text)
	in.Source = SourcePattern
	return in, nil
}

func classifyText(text string) domain.Intent {
	if m := swapRe.FindStringSubmatch(text); m != nil {
		if amt, ok := parseAmount(m[1]); ok {
			return trade(domain.IntentSellToken, amt, m[2], m[3], domain.ExactInput)
		}
	}
	if m := spendRe.FindStringSubmatch(text); m != nil {
		if amt, ok := parseAmount(m[1]); ok {
			kind := domain.IntentBuyToken
			if isSOL(m[3]) {
				kind = domain.IntentBuySOL
			}
			return trade(kind, amt, m[3], m[2], domain.ExactInput)
		}
	}
	if m := buyRe.FindStringSubmatch(text); m != nil {
		if amt, ok := parseAmount(m[1]); ok {
			kind := domain.IntentBuyToken
			if isSOL(m[2]) {
				kind = domain.IntentBuySOL
			}
			return trade(kind, amt, m[2], m[3], domain.ExactOutput)
		}
	}
	if m := sellRe.FindStringSubmatch(text); m != nil {
		if amt, ok := parseAmount(m[1]); ok {
			return trade(domain.IntentSellToken, amt, m[2], m[3], domain.ExactInput)
		}
	}
	if yieldRe.MatchString(text) {
		in := domain.Intent{Kind: domain.IntentExploreYield, Message: "Here are yield options."}
		if m := mentionRe.FindStringSubmatch(text); m != nil {
			in.Token = strings.ToUpper(m[1])
			in.Message = fmt.Sprintf("Here are yield options for %s.", in.Token)
		}
		return in
	}
	if portfolioRe.MatchString(text) {
		return domain.Intent{Kind: domain.IntentViewPortfolio, Message: "Here is your wallet."}
	}
	return domain.Intent{Kind: domain.IntentOutOfScope, Message: OutOfScopeMessage}
}

func trade(kind domain.IntentKind, amount decimal.Decimal, token, counter string, mode domain.FixingMode) domain.Intent {
	in := domain.Intent{
		Kind:       kind,
		Amount:     &amount,
		Token:      token,
		PayWith:    counter,
		FixingMode: mode,
	}
	switch kind {
	case domain.IntentSellToken:
		in.Message = fmt.Sprintf("Getting a quote to sell %s %s.", amount, strings.ToUpper(token))
	default:
		in.Message = fmt.Sprintf("Getting a quote to buy %s.", strings.ToUpper(token))
	}
	return in
}

func parseAmount(s string) (decimal.Decimal, bool) {
	if groupedRe.MatchString(s) {
		s = strings.ReplaceAll(s, ",", "")
	} else {
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Decimal{}, false
	}
	return d, true
}

func isSOL(token string) bool {
	return strings.EqualFold(strings.TrimPrefix(token, "$"), "SOL")
}

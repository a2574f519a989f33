// Package intent turns chat messages into structured trading intents.
package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"solana-swap-assistant/internal/chat"
	"solana-swap-assistant/internal/domain"
)

// Classifier sources.
const (
	SourceOpenAI  = "openai"
	SourcePattern = "pattern"
)

// ErrNonConforming is returned when classifier output breaks the output contract.
var ErrNonConforming = errors.New("non-conforming classifier output")

// Classifier classifies a message given recent conversation context.
type Classifier interface {
	Classify(ctx context.Context, text string, history []chat.Message) (domain.Intent, error)
}

// output is the JSON contract of a classifier response.
type output struct {
	Intent     string           `json:"intent"`
	Amount     *decimal.Decimal `json:"amount"`
	Token      *string          `json:"token"`
	PayWith    *string          `json:"payWith,omitempty"`
	FixingMode *string          `json:"fixingMode,omitempty"`
	Message    string           `json:"message"`
}

// parseOutput decodes and validates classifier JSON.
func parseOutput(content string) (domain.Intent, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var out output
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return domain.Intent{}, fmt.Errorf("%w: %v", ErrNonConforming, err)
	}

	in := domain.Intent{
		Kind:    domain.IntentKind(strings.ToLower(strings.TrimSpace(out.Intent))),
		Amount:  out.Amount,
		Message: out.Message,
	}
	if out.Token != nil {
		in.Token = strings.TrimSpace(*out.Token)
	}
	if out.PayWith != nil {
		in.PayWith = strings.TrimSpace(*out.PayWith)
	}
	if out.FixingMode != nil && *out.FixingMode != "" {
		mode := domain.FixingMode(strings.ToUpper(*out.FixingMode))
		if !mode.IsValid() {
			return domain.Intent{}, fmt.Errorf("%w: fixing mode %q", ErrNonConforming, *out.FixingMode)
		}
		in.FixingMode = mode
	}
	if err := validate(&in); err != nil {
		return domain.Intent{}, err
	}
	return in, nil
}

// validate checks the intent contract and fills implied fields.
func validate(in *domain.Intent) error {
	if !in.Kind.IsValid() {
		return fmt.Errorf("%w: unknown intent %q", ErrNonConforming, in.Kind)
	}
	if !in.Kind.IsTrade() {
		return nil
	}
	if in.Amount == nil || !in.Amount.IsPositive() {
		return fmt.Errorf("%w: %s without a positive amount", ErrNonConforming, in.Kind)
	}
	if in.Kind == domain.IntentBuySOL && in.Token == "" {
		in.Token = "SOL"
	}
	if in.Token == "" {
		return fmt.Errorf("%w: %s without a token", ErrNonConforming, in.Kind)
	}
	return nil
}

package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/quote"
)

// unresolvedToken carries the user's token text with a resolution failure.
type unresolvedToken struct {
	Query string
	Err   error
}

func (e *unresolvedToken) Error() string {
	return fmt.Sprintf("resolve %q: %v", e.Query, e.Err)
}

func (e *unresolvedToken) Unwrap() error {
	return e.Err
}

// describeError turns a stage failure into a conversation message.
func describeError(err error) string {
	switch domain.KindOf(err) {
	case domain.KindTokenNotFound:
		var u *unresolvedToken
		if errors.As(err, &u) && u.Query != "" {
			return fmt.Sprintf("I couldn't find a token called %q. Check the symbol or paste its mint address.", u.Query)
		}
		return "I couldn't find that token. Check the symbol or paste its mint address."
	case domain.KindNoRoute:
		return "No route was found for this swap. Try a different amount or token pair."
	case domain.KindInvalidAmount:
		return fmt.Sprintf("That amount can't be traded: %v.", err)
	case domain.KindInFlight:
		return "A swap is already being signed or submitted. Wait for it to finish before starting another."
	case domain.KindUpstream:
		return fmt.Sprintf("The pricing service failed: %v. Send your request again to retry.", err)
	case domain.KindBuild:
		return fmt.Sprintf("I couldn't build the transaction: %v. Please request a new quote.", err)
	case domain.KindSigningRejected:
		return "You declined the transaction in your wallet. Nothing was sent. Ask again whenever you're ready."
	case domain.KindBlockhash:
		return fmt.Sprintf("Transaction blockhash error: the transaction expired before it could land (%v). Please request a new quote.", err)
	case domain.KindSigning:
		return fmt.Sprintf("Your wallet couldn't sign the transaction: %v.", err)
	case domain.KindSubmission:
		return fmt.Sprintf("The transaction failed: %v.", err)
	}
	return fmt.Sprintf("Something went wrong: %v.", err)
}

// staleReason maps a failure to the reason its quote must not be reused.
func staleReason(err error) string {
	switch domain.KindOf(err) {
	case domain.KindBlockhash:
		return quote.StaleBlockhashExpired
	case domain.KindSubmission:
		return quote.StaleSubmissionFailed
	}
	return quote.StaleAttemptEnded
}

func quoteText(q *domain.Quote) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Quote: %s %s → %s %s.",
		q.InputAmount().String(), q.InputToken.Symbol,
		q.OutputAmount().String(), q.OutputToken.Symbol)
	fmt.Fprintf(&b, " Rate: 1 %s = %s %s.",
		q.InputToken.Symbol, q.ExchangeRate().Round(int32(q.OutputToken.Decimals)).String(), q.OutputToken.Symbol)
	fmt.Fprintf(&b, " Price impact: %s%%.", decimal.NewFromFloat(q.PriceImpactPercent).Round(2).String())

	slippage := decimal.New(int64(q.SlippageBps), -2)
	if q.FixingMode == domain.ExactOutput {
		fmt.Fprintf(&b, " You pay at most %s %s (%s%% slippage).",
			q.ThresholdAmount().String(), q.InputToken.Symbol, slippage.String())
	} else {
		fmt.Fprintf(&b, " You receive at least %s %s (%s%% slippage).",
			q.ThresholdAmount().String(), q.OutputToken.Symbol, slippage.String())
	}
	if q.PoolRef.Route != "" {
		fmt.Fprintf(&b, " Route: %s.", q.PoolRef.Route)
	}
	b.WriteString(" Confirm to swap or cancel.")
	return b.String()
}

func confirmedText(a domain.SwapAttempt) string {
	q := a.Quote
	in, out := q.InputAmount(), q.OutputAmount()
	if st := a.Settlement; st != nil {
		in = domain.RawToHuman(st.InputRaw, q.InputToken.Decimals)
		out = domain.RawToHuman(st.OutputRaw, q.OutputToken.Decimals)
	}
	return fmt.Sprintf("Swap confirmed: %s %s → %s %s. Signature: %s",
		in.String(), q.InputToken.Symbol, out.String(), q.OutputToken.Symbol, a.Signature)
}

func indeterminateText(a domain.SwapAttempt) string {
	return fmt.Sprintf("Your transaction was sent but I couldn't confirm it in time. Check signature %s in an explorer before trying again.", a.Signature)
}

func followUpText(t domain.Token) string {
	return fmt.Sprintf("Would you like to explore yield options for your %s? Say \"show yield for %s\".", t.Symbol, t.Symbol)
}

func yieldText(token string) string {
	if token == "" {
		return "Yield options depend on the token. Tell me which one, for example \"yield for USDC\"."
	}
	return fmt.Sprintf("You can put your %s to work in lending or staking pools. Open the yield tab to compare options for %s.",
		strings.ToUpper(token), strings.ToUpper(token))
}

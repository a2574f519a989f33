package httpapi

import (
	"time"

	"solana-swap-assistant/internal/chat"
	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/orchestrator"
)

type createSessionRequest struct {
	Wallet    string `json:"wallet"`    // "extension" or "embedded"
	PublicKey string `json:"publicKey"` // wallet address
	WalletID  string `json:"walletId"`  // custodial wallet ID, embedded only
}

type messageRequest struct {
	Text string `json:"text"`
}

type attemptRequest struct {
	AttemptID string `json:"attemptId"`
}

// signResponse answers a bridged sign request. Exactly one of
// SignedTransaction, Rejected or Error is expected.
type signResponse struct {
	SignedTransaction string `json:"signedTransaction,omitempty"` // base64
	Rejected          bool   `json:"rejected,omitempty"`
	Reason            string `json:"reason,omitempty"`
	Error             string `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type walletView struct {
	Kind         string   `json:"kind"`
	PublicKey    string   `json:"publicKey"`
	Capabilities []string `json:"capabilities"`
}

type tokenView struct {
	Symbol   string `json:"symbol"`
	Mint     string `json:"mint"`
	Decimals uint8  `json:"decimals"`
}

type quoteView struct {
	ID             string    `json:"id"`
	Input          tokenView `json:"input"`
	Output         tokenView `json:"output"`
	InputAmount    string    `json:"inputAmount"`
	OutputAmount   string    `json:"outputAmount"`
	Threshold      string    `json:"threshold"`
	FixingMode     string    `json:"fixingMode"`
	SlippageBps    uint16    `json:"slippageBps"`
	PriceImpactPct float64   `json:"priceImpactPct"`
	Rate           string    `json:"rate"`
	Source         string    `json:"source"`
	Route          string    `json:"route,omitempty"`
	FetchedAt      time.Time `json:"fetchedAt"`
}

type settlementView struct {
	InputAmount  string `json:"inputAmount"`
	OutputAmount string `json:"outputAmount"`
	Source       string `json:"source"`
}

type attemptView struct {
	ID         string          `json:"id"`
	Status     string          `json:"status"`
	Quote      *quoteView      `json:"quote,omitempty"`
	Strategy   string          `json:"strategy,omitempty"`
	Signature  string          `json:"signature,omitempty"`
	Error      string          `json:"error,omitempty"`
	Settlement *settlementView `json:"settlement,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

type sessionView struct {
	ID       string         `json:"id"`
	Wallet   walletView     `json:"wallet"`
	Attempt  *attemptView   `json:"attempt,omitempty"`
	Messages []chat.Message `json:"messages"`
}

type intentView struct {
	Kind   string `json:"kind"`
	Amount string `json:"amount,omitempty"`
	Token  string `json:"token,omitempty"`
	Source string `json:"source,omitempty"`
}

type replyView struct {
	Intent   intentView     `json:"intent"`
	Messages []chat.Message `json:"messages"`
	Attempt  *attemptView   `json:"attempt,omitempty"`
}

func newWalletView(s domain.SigningSession) walletView {
	caps := make([]string, len(s.Capabilities))
	for i, c := range s.Capabilities {
		caps[i] = string(c)
	}
	return walletView{Kind: string(s.WalletKind), PublicKey: s.PublicKey, Capabilities: caps}
}

func newTokenView(t domain.Token) tokenView {
	return tokenView{Symbol: t.Symbol, Mint: t.Mint, Decimals: t.Decimals}
}

func newQuoteView(q *domain.Quote) *quoteView {
	if q == nil {
		return nil
	}
	return &quoteView{
		ID:             q.ID,
		Input:          newTokenView(q.InputToken),
		Output:         newTokenView(q.OutputToken),
		InputAmount:    q.InputAmount().String(),
		OutputAmount:   q.OutputAmount().String(),
		Threshold:      q.ThresholdAmount().String(),
		FixingMode:     string(q.FixingMode),
		SlippageBps:    q.SlippageBps,
		PriceImpactPct: q.PriceImpactPercent,
		Rate:           q.ExchangeRate().Round(int32(q.OutputToken.Decimals)).String(),
		Source:         q.PoolRef.Source,
		Route:          q.PoolRef.Route,
		FetchedAt:      q.FetchedAt,
	}
}

func newAttemptView(a domain.SwapAttempt) *attemptView {
	v := &attemptView{
		ID:        a.ID,
		Status:    string(a.Status),
		Quote:     newQuoteView(a.Quote),
		Signature: a.Signature,
		Error:     a.ErrorDetail,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	if a.UnsignedTx != nil {
		v.Strategy = string(a.UnsignedTx.Strategy)
	}
	if st := a.Settlement; st != nil && a.Quote != nil {
		v.Settlement = &settlementView{
			InputAmount:  domain.RawToHuman(st.InputRaw, a.Quote.InputToken.Decimals).String(),
			OutputAmount: domain.RawToHuman(st.OutputRaw, a.Quote.OutputToken.Decimals).String(),
			Source:       st.Source,
		}
	}
	return v
}

func newSessionView(s *orchestrator.Session) sessionView {
	v := sessionView{
		ID:       s.ID(),
		Wallet:   newWalletView(s.Wallet()),
		Messages: nonNil(s.Conversation()),
	}
	if a, ok := s.Attempt(); ok {
		v.Attempt = newAttemptView(a)
	}
	return v
}

func newReplyView(r *orchestrator.Reply) replyView {
	v := replyView{
		Intent: intentView{
			Kind:   string(r.Intent.Kind),
			Token:  r.Intent.Token,
			Source: r.Intent.Source,
		},
		Messages: nonNil(r.Messages),
	}
	if r.Intent.Amount != nil {
		v.Intent.Amount = r.Intent.Amount.String()
	}
	if r.Attempt != nil {
		v.Attempt = newAttemptView(*r.Attempt)
	}
	return v
}

func nonNil(msgs []chat.Message) []chat.Message {
	if msgs == nil {
		return []chat.Message{}
	}
	return msgs
}

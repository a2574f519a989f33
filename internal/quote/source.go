package quote

import (
	"context"

	"solana-swap-assistant/internal/domain"
)

// SourceRequest is a quote request with the fixed side in raw units.
type SourceRequest struct {
	Input       domain.Token
	Output      domain.Token
	AmountRaw   uint64
	Mode        domain.FixingMode
	SlippageBps uint16
	Taker       string
}

// Source produces quotes from one upstream.
// Sources leave Quote.ID, PoolRef.ID and FetchedAt to the engine.
type Source interface {
	Name() string
	Quote(ctx context.Context, req SourceRequest) (*domain.Quote, error)
}

package quote

import (
	"context"
	"fmt"
	"strconv"

	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/jupiter"
)

// JupiterSource quotes through the aggregator quote endpoint.
type JupiterSource struct {
	client *jupiter.Client
}

// NewJupiterSource creates the default aggregator source.
func NewJupiterSource(client *jupiter.Client) *JupiterSource {
	return &JupiterSource{client: client}
}

// Name returns the source identifier.
func (s *JupiterSource) Name() string { return domain.QuoteSourceJupiter }

// Quote requests a quote in the request's fixing mode.
func (s *JupiterSource) Quote(ctx context.Context, req SourceRequest) (*domain.Quote, error) {
	resp, err := s.client.Quote(ctx, jupiter.QuoteParams{
		InputMint:   req.Input.Mint,
		OutputMint:  req.Output.Mint,
		Amount:      req.AmountRaw,
		SlippageBps: req.SlippageBps,
		SwapMode:    req.Mode.SwapMode(),
	})
	if err != nil {
		return nil, err
	}

	amounts, err := parseAmounts(resp.InAmount, resp.OutAmount, resp.OtherAmountThreshold)
	if err != nil {
		return nil, err
	}

	q := &domain.Quote{
		InputToken:           req.Input,
		OutputToken:          req.Output,
		InputAmountRaw:       amounts[0],
		OutputAmountRaw:      amounts[1],
		OtherAmountThreshold: amounts[2],
		SlippageBps:          resp.SlippageBps,
		PriceImpactPercent:   parseImpact(resp.PriceImpactPct),
		FixingMode:           req.Mode,
		PoolRef: domain.PoolRef{
			Source:  s.Name(),
			Route:   jupiter.Route(resp.RoutePlan),
			Payload: resp.Raw,
		},
	}
	if len(resp.RoutePlan) == 1 {
		q.PoolRef.PoolAddress = resp.RoutePlan[0].SwapInfo.AmmKey
	}
	if mode, ok := domain.FixingModeFromSwapMode(resp.SwapMode); ok && mode != req.Mode {
		return nil, fmt.Errorf("%w: requested %s quote, got %s", domain.ErrUpstream, req.Mode.SwapMode(), resp.SwapMode)
	}
	return q, nil
}

// OrderSource quotes through the aggregator order endpoint. Orders carry
// a prebuilt transaction for the taker and are submitted through the
// execute endpoint.
type OrderSource struct {
	client *jupiter.Client
}

// NewOrderSource creates the execute-mode aggregator source.
func NewOrderSource(client *jupiter.Client) *OrderSource {
	return &OrderSource{client: client}
}

// Name returns the source identifier.
func (s *OrderSource) Name() string { return domain.QuoteSourceJupiterOrder }

// Quote requests an exact-input order for the taker.
func (s *OrderSource) Quote(ctx context.Context, req SourceRequest) (*domain.Quote, error) {
	if req.Mode != domain.ExactInput {
		return nil, fmt.Errorf("%w: orders are exact-input only", domain.ErrNoRouteFound)
	}
	resp, err := s.client.Order(ctx, jupiter.OrderParams{
		InputMint:  req.Input.Mint,
		OutputMint: req.Output.Mint,
		Amount:     req.AmountRaw,
		Taker:      req.Taker,
	})
	if err != nil {
		return nil, err
	}

	amounts, err := parseAmounts(resp.InAmount, resp.OutAmount, resp.OtherAmountThreshold)
	if err != nil {
		return nil, err
	}

	return &domain.Quote{
		InputToken:           req.Input,
		OutputToken:          req.Output,
		InputAmountRaw:       amounts[0],
		OutputAmountRaw:      amounts[1],
		OtherAmountThreshold: amounts[2],
		SlippageBps:          resp.SlippageBps,
		PriceImpactPercent:   parseImpact(resp.PriceImpactPct),
		FixingMode:           domain.ExactInput,
		PoolRef: domain.PoolRef{
			Source:      s.Name(),
			Route:       jupiter.Route(resp.RoutePlan),
			RequestID:   resp.RequestID,
			Transaction: resp.Transaction,
		},
	}, nil
}

// parseAmounts parses in, out and threshold amounts.
func parseAmounts(values ...string) ([]uint64, error) {
	out := make([]uint64, len(values))
	for i, v := range values {
		if v == "" {
			continue
		}
		n, err := jupiter.ParseAmount(v)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed amount %q", domain.ErrUpstream, v)
		}
		out[i] = n
	}
	if out[0] == 0 || out[1] == 0 {
		return nil, fmt.Errorf("%w: zero amount in response", domain.ErrNoRouteFound)
	}
	return out, nil
}

// parseImpact converts the aggregator's price impact to percent.
// The aggregator reports a fraction ("0.0012" = 0.12%).
func parseImpact(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v * 100
}

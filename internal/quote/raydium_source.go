package quote

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/raydium"
)

// RaydiumSource quotes directly from CPMM pool state.
type RaydiumSource struct {
	locator raydium.PoolLocator
	loader  *raydium.Loader
}

// NewRaydiumSource creates a pool-state source.
func NewRaydiumSource(locator raydium.PoolLocator, loader *raydium.Loader) *RaydiumSource {
	return &RaydiumSource{locator: locator, loader: loader}
}

// Name returns the source identifier.
func (s *RaydiumSource) Name() string { return domain.QuoteSourceRaydium }

// Quote locates the deepest CPMM pool for the pair and prices the swap on its curve.
func (s *RaydiumSource) Quote(ctx context.Context, req SourceRequest) (*domain.Quote, error) {
	inputMint, err := solana.PublicKeyFromBase58(req.Input.Mint)
	if err != nil {
		return nil, fmt.Errorf("%w: input mint %q", domain.ErrNoRouteFound, req.Input.Mint)
	}
	outputMint, err := solana.PublicKeyFromBase58(req.Output.Mint)
	if err != nil {
		return nil, fmt.Errorf("%w: output mint %q", domain.ErrNoRouteFound, req.Output.Mint)
	}

	address, err := s.locator.FindPool(ctx, req.Input.Mint, req.Output.Mint)
	if err != nil {
		return nil, err
	}
	pool, err := s.loader.Load(ctx, address)
	if err != nil {
		return nil, err
	}
	leg, err := pool.Orient(inputMint, outputMint)
	if err != nil {
		return nil, err
	}

	q := &domain.Quote{
		InputToken:  req.Input,
		OutputToken: req.Output,
		SlippageBps: req.SlippageBps,
		FixingMode:  req.Mode,
		PoolRef: domain.PoolRef{
			Source:      s.Name(),
			Route:       "Raydium CPMM",
			PoolAddress: address.String(),
		},
	}

	switch req.Mode {
	case domain.ExactOutput:
		in, err := pool.QuoteExactOut(leg, req.AmountRaw)
		if err != nil {
			return nil, curveError(err)
		}
		maxIn, err := raydium.MaxAmountIn(in, req.SlippageBps)
		if err != nil {
			return nil, curveError(err)
		}
		q.InputAmountRaw, q.OutputAmountRaw, q.OtherAmountThreshold = in, req.AmountRaw, maxIn
	default:
		out, err := pool.QuoteExactIn(leg, req.AmountRaw)
		if err != nil {
			return nil, curveError(err)
		}
		q.InputAmountRaw, q.OutputAmountRaw = req.AmountRaw, out
		q.OtherAmountThreshold = raydium.MinAmountOut(out, req.SlippageBps)
	}
	q.PriceImpactPercent = raydium.PriceImpactPercent(q.InputAmountRaw, q.OutputAmountRaw, leg.ReserveIn, leg.ReserveOut)
	return q, nil
}

func curveError(err error) error {
	switch {
	case errors.Is(err, raydium.ErrZeroAmount):
		return fmt.Errorf("%w: amount too small for the pool", domain.ErrNoRouteFound)
	case errors.Is(err, raydium.ErrInsufficientLiquidity):
		return fmt.Errorf("%w: pool liquidity too low", domain.ErrNoRouteFound)
	}
	return fmt.Errorf("%w: %v", domain.ErrNoRouteFound, err)
}

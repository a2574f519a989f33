package txbuilder

import (
	"context"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"

	"solana-swap-assistant/internal/domain"
)

// Strategy selects which builder handles a quote.
type Strategy string

const (
	StrategyAggregator Strategy = "aggregator"
	StrategyPool       Strategy = "pool"
	StrategyAuto       Strategy = "auto"
)

// ParseStrategy parses a configured strategy name. Empty means aggregator.
// Auto routes by quote source, so it only differs from aggregator when
// pool-sourced quotes reach the selector.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StrategyAggregator, nil
	case StrategyAggregator, StrategyPool, StrategyAuto:
		return st, nil
	}
	return "", fmt.Errorf("unknown build strategy %q", s)
}

// Selector routes each quote to exactly one builder. A build failure is
// returned as-is, never retried with the other strategy.
type Selector struct {
	strategy   Strategy
	aggregator Builder
	pool       Builder
}

// NewSelector creates a selector. Either builder may be nil if the
// strategy never selects it.
func NewSelector(strategy Strategy, aggregator, pool Builder) (*Selector, error) {
	switch strategy {
	case StrategyAggregator:
		if aggregator == nil {
			return nil, fmt.Errorf("aggregator strategy requires an aggregator builder")
		}
	case StrategyPool:
		if pool == nil {
			return nil, fmt.Errorf("pool strategy requires a pool builder")
		}
	case StrategyAuto:
		if aggregator == nil || pool == nil {
			return nil, fmt.Errorf("auto strategy requires both builders")
		}
	default:
		return nil, fmt.Errorf("unknown build strategy %q", strategy)
	}
	return &Selector{strategy: strategy, aggregator: aggregator, pool: pool}, nil
}

// Compile-time interface check.
var _ Builder = (*Selector)(nil)

// Build implements Builder.
func (s *Selector) Build(ctx context.Context, q *domain.Quote, signer solana.PublicKey) (*domain.UnsignedTransaction, error) {
	return s.For(q).Build(ctx, q, signer)
}

// For returns the builder that handles q.
func (s *Selector) For(q *domain.Quote) Builder {
	switch s.strategy {
	case StrategyAggregator:
		return s.aggregator
	case StrategyPool:
		return s.pool
	}
	if q != nil && q.PoolRef.Source == domain.QuoteSourceRaydium {
		return s.pool
	}
	return s.aggregator
}

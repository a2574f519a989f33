// Package quote produces fixing-mode aware swap quotes from interchangeable sources.
package quote

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-swap-assistant/internal/analytics"
	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/observability"
)

// DefaultSlippageBps is used when neither the request nor the engine sets slippage.
const DefaultSlippageBps uint16 = 100

// Request is a quote request in human units.
type Request struct {
	Input       domain.Token
	Output      domain.Token
	Amount      decimal.Decimal // amount of the fixed side
	Mode        domain.FixingMode
	SlippageBps uint16 // 0 uses the engine default
	Taker       string // wallet public key, required by the order source

	// Analytics correlation.
	SessionID string
	AttemptID string
}

// Quoter is the quoting contract used by the orchestrator.
type Quoter interface {
	GetQuote(ctx context.Context, req Request) (*domain.Quote, error)
}

// Options configures an Engine.
type Options struct {
	// Sources by name. The engine needs at least the Primary source.
	Sources []Source

	// Primary names the source used for every request.
	Primary string

	// Fallback serves requests the primary cannot (exact-output requests
	// when the primary is the order source). Defaults to jupiter.
	Fallback string

	SlippageBps uint16
	Recorder    *analytics.Recorder
	Logger      *zap.Logger
}

// Engine converts requests to raw units, picks a source and stamps quote identity.
// Every call is a fresh upstream read.
type Engine struct {
	sources  map[string]Source
	primary  string
	fallback string
	slippage uint16
	recorder *analytics.Recorder
	logger   *zap.Logger
	now      func() time.Time
}

// Compile-time interface check.
var _ Quoter = (*Engine)(nil)

// NewEngine creates a quote engine.
func NewEngine(opts Options) (*Engine, error) {
	if len(opts.Sources) == 0 {
		return nil, fmt.Errorf("at least one quote source is required")
	}
	sources := make(map[string]Source, len(opts.Sources))
	for _, s := range opts.Sources {
		sources[s.Name()] = s
	}

	primary := opts.Primary
	if primary == "" {
		primary = opts.Sources[0].Name()
	}
	if _, ok := sources[primary]; !ok {
		return nil, fmt.Errorf("unknown quote source %q", primary)
	}
	fallback := opts.Fallback
	if fallback == "" {
		fallback = domain.QuoteSourceJupiter
	}

	slippage := opts.SlippageBps
	if slippage == 0 {
		slippage = DefaultSlippageBps
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		sources:  sources,
		primary:  primary,
		fallback: fallback,
		slippage: slippage,
		recorder: opts.Recorder,
		logger:   logger.Named("quote"),
		now:      time.Now,
	}, nil
}

// GetQuote returns a fresh quote. Fails with domain.ErrInvalidAmount
// before any network call when the fixed amount floors to zero raw units,
// and with domain.ErrNoRouteFound or domain.ErrUpstream from the source.
func (e *Engine) GetQuote(ctx context.Context, req Request) (*domain.Quote, error) {
	if !req.Mode.IsValid() {
		req.Mode = domain.ExactInput
	}
	if req.Input.Mint == req.Output.Mint {
		return nil, fmt.Errorf("%w: cannot swap %s for itself", domain.ErrNoRouteFound, req.Input.Symbol)
	}

	fixed := req.Input
	if req.Mode == domain.ExactOutput {
		fixed = req.Output
	}
	raw, err := domain.HumanToRaw(req.Amount, fixed.Decimals)
	if err != nil {
		return nil, err
	}
	if raw == 0 {
		return nil, fmt.Errorf("%w: %s %s is below the smallest unit", domain.ErrInvalidAmount, req.Amount, fixed.Symbol)
	}

	slippage := req.SlippageBps
	if slippage == 0 {
		slippage = e.slippage
	}

	source := e.pick(req)
	start := e.now()
	q, err := source.Quote(ctx, SourceRequest{
		Input:       req.Input,
		Output:      req.Output,
		AmountRaw:   raw,
		Mode:        req.Mode,
		SlippageBps: slippage,
		Taker:       req.Taker,
	})
	elapsed := e.now().Sub(start)
	e.report(ctx, req, source.Name(), q, elapsed, err)
	if err != nil {
		return nil, err
	}

	q.ID = uuid.NewString()
	q.PoolRef.ID = q.ID
	q.FetchedAt = e.now()
	if q.SlippageBps == 0 {
		q.SlippageBps = slippage
	}

	e.logger.Info("quote ready",
		zap.String("quote_id", q.ID),
		zap.String("source", q.PoolRef.Source),
		zap.String("pair", req.Input.Symbol+"/"+req.Output.Symbol),
		zap.String("mode", req.Mode.String()),
		zap.Uint64("in", q.InputAmountRaw),
		zap.Uint64("out", q.OutputAmountRaw),
		zap.Float64("impact_pct", q.PriceImpactPercent))
	return q, nil
}

// pick returns the primary source unless it cannot serve the request.
func (e *Engine) pick(req Request) Source {
	if e.primary == domain.QuoteSourceJupiterOrder && (req.Mode == domain.ExactOutput || req.Taker == "") {
		if s, ok := e.sources[e.fallback]; ok {
			return s
		}
	}
	return e.sources[e.primary]
}

func (e *Engine) report(ctx context.Context, req Request, source string, q *domain.Quote, elapsed time.Duration, err error) {
	outcome, kind := analytics.Outcome(err)
	observability.RecordQuote(source, outcome, elapsed.Seconds())
	if err != nil {
		e.logger.Warn("quote failed",
			zap.String("source", source),
			zap.String("pair", req.Input.Symbol+"/"+req.Output.Symbol),
			zap.String("kind", kind),
			zap.Error(err))
	}

	event := &domain.ExecutionEvent{
		AttemptID:  req.AttemptID,
		SessionID:  req.SessionID,
		Stage:      domain.StageQuote,
		Outcome:    outcome,
		ErrorKind:  kind,
		Source:     source,
		InputMint:  req.Input.Mint,
		OutputMint: req.Output.Mint,
		LatencyMs:  uint64(elapsed.Milliseconds()),
	}
	if q != nil {
		event.InputAmountRaw = q.InputAmountRaw
		event.OutputAmountRaw = q.OutputAmountRaw
	}
	e.recorder.Record(ctx, event)
}

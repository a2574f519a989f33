// Package app wires the swap assistant from a loaded configuration.
// Both binaries build their orchestrator here.
package app

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"solana-swap-assistant/internal/analytics"
	"solana-swap-assistant/internal/config"
	"solana-swap-assistant/internal/confirm"
	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/httpapi"
	"solana-swap-assistant/internal/intent"
	"solana-swap-assistant/internal/jupiter"
	"solana-swap-assistant/internal/orchestrator"
	"solana-swap-assistant/internal/quote"
	"solana-swap-assistant/internal/raydium"
	sol "solana-swap-assistant/internal/solana"
	"solana-swap-assistant/internal/storage"
	chstore "solana-swap-assistant/internal/storage/clickhouse"
	"solana-swap-assistant/internal/storage/memory"
	"solana-swap-assistant/internal/storage/migrations"
	pgstore "solana-swap-assistant/internal/storage/postgres"
	"solana-swap-assistant/internal/tokens"
	"solana-swap-assistant/internal/txbuilder"
	"solana-swap-assistant/internal/wallet"
)

// App holds the wired components.
type App struct {
	Config       *config.Config
	Orchestrator *orchestrator.Orchestrator
	Jupiter      *jupiter.Client
	RPC          *sol.FailoverClient
	Registry     *tokens.Registry

	logger  *zap.Logger
	closers []func()
}

// Stores bundles the persistence backends.
type Stores struct {
	Catalog storage.TokenCatalogStore
	Events  storage.ExecutionEventStore
}

// New builds every component. useMemory skips the databases even when
// DSNs are configured. Call Close when done.
func New(ctx context.Context, cfg *config.Config, useMemory bool, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, logger: logger}

	stores, err := a.createStores(ctx, useMemory)
	if err != nil {
		a.Close()
		return nil, err
	}

	strategy, err := txbuilder.ParseStrategy(cfg.BuildStrategy)
	if err != nil {
		a.Close()
		return nil, err
	}
	if cfg.SubmitMode == config.SubmitExecute && strategy == txbuilder.StrategyPool {
		a.Close()
		return nil, fmt.Errorf("SUBMIT_MODE=execute needs aggregator-built transactions, not BUILD_STRATEGY=pool")
	}

	recorder := analytics.NewRecorder(stores.Events, logger)

	a.Registry = tokens.NewRegistry(tokens.Options{
		Catalog: stores.Catalog,
		Remote:  tokens.NewRemoteList(cfg.TokenListURL, nil, logger),
		Logger:  logger,
	})

	a.Jupiter = jupiter.NewClient(&jupiter.ClientConfig{
		BaseURL: cfg.JupiterURL,
		APIKey:  cfg.JupiterAPIKey,
		RPS:     cfg.JupiterRPS,
		Logger:  logger,
	})

	a.RPC, err = sol.NewFailoverClient(cfg.RPCEndpoints, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("rpc: %w", err)
	}

	pools := raydium.NewAPIClient(&raydium.APIConfig{BaseURL: cfg.RaydiumURL, Logger: logger})

	engine, err := quote.NewEngine(quote.Options{
		Sources: []quote.Source{
			quote.NewJupiterSource(a.Jupiter),
			quote.NewOrderSource(a.Jupiter),
			quote.NewRaydiumSource(pools, raydium.NewLoader(a.RPC)),
		},
		Primary:     primarySource(cfg, strategy),
		Fallback:    domain.QuoteSourceJupiter,
		SlippageBps: cfg.SlippageBps,
		Recorder:    recorder,
		Logger:      logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("quote engine: %w", err)
	}

	tracker := quote.NewTracker()
	builder, err := txbuilder.NewSelector(strategy,
		txbuilder.NewAggregatorBuilder(a.Jupiter, a.RPC, tracker, logger),
		txbuilder.NewPoolBuilder(a.RPC, pools, tracker, logger))
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Orchestrator, err = orchestrator.New(orchestrator.Options{
		Registry:     a.Registry,
		Quoter:       engine,
		Tracker:      tracker,
		Builder:      builder,
		RPC:          a.RPC,
		Confirmer:    a.confirmer(ctx),
		Classifier:   a.classifier(),
		Executor:     a.Jupiter,
		FundingToken: cfg.FundingToken,
		SlippageBps:  cfg.SlippageBps,
		Recorder:     recorder,
		Logger:       logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	logger.Info("swap assistant ready",
		zap.Strings("rpc_endpoints", cfg.RPCEndpoints),
		zap.String("build_strategy", string(strategy)),
		zap.String("submit_mode", cfg.SubmitMode),
		zap.Bool("websocket", cfg.WSEndpoint != ""),
		zap.Bool("openai", cfg.OpenAIAPIKey != ""))
	return a, nil
}

// EmbeddedFactory returns the custodial wallet opener, or nil when no
// custodial API is configured.
func (a *App) EmbeddedFactory() httpapi.EmbeddedFactory {
	cfg := a.Config
	if !cfg.EmbeddedWalletEnabled() {
		return nil
	}
	return func(walletID string, address solana.PublicKey) (wallet.EmbeddedProvider, error) {
		return wallet.NewCustodialClient(&wallet.CustodialConfig{
			BaseURL:   cfg.EmbeddedWalletURL,
			AppID:     cfg.EmbeddedWalletAppID,
			AppSecret: cfg.EmbeddedWalletAppSecret,
			WalletID:  walletID,
			Address:   address,
			Logger:    a.logger,
		})
	}
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) createStores(ctx context.Context, useMemory bool) (*Stores, error) {
	cfg := a.Config
	stores := &Stores{
		Catalog: memory.NewTokenCatalogStore(),
		Events:  memory.NewExecutionEventStore(),
	}
	if useMemory {
		return stores, nil
	}

	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if _, err := migrations.Postgres(ctx, pool.ExecSQL, a.logger); err != nil {
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		stores.Catalog = pgstore.NewTokenCatalogStore(pool)
	}

	if cfg.ClickHouseDSN != "" {
		if err := chstore.EnsureDatabase(ctx, cfg.ClickHouseDSN); err != nil {
			return nil, fmt.Errorf("create clickhouse database: %w", err)
		}
		conn, err := chstore.NewConn(ctx, cfg.ClickHouseDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		a.closers = append(a.closers, func() { _ = conn.Close() })
		if _, err := migrations.ClickHouse(ctx, conn.ExecSQL, a.logger); err != nil {
			return nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		stores.Events = chstore.NewExecutionEventStore(conn)
	}
	return stores, nil
}

// confirmer prefers signature subscriptions and falls back to polling
// alone when no websocket endpoint is reachable.
func (a *App) confirmer(ctx context.Context) confirm.Confirmer {
	cfg := a.Config
	policy := confirm.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.ConfirmMaxAttempts
	policy.Interval = cfg.ConfirmInterval
	poller := confirm.NewPoller(a.RPC, policy, a.logger)

	if cfg.WSEndpoint == "" {
		return poller
	}
	ws, err := sol.NewWSClient(ctx, cfg.WSEndpoint, nil, a.logger)
	if err != nil {
		a.logger.Warn("websocket unavailable, confirming by polling", zap.Error(err))
		return poller
	}
	a.closers = append(a.closers, func() { _ = ws.Close() })
	return confirm.NewWSConfirmer(ws, poller, a.logger)
}

func (a *App) classifier() intent.Classifier {
	pattern := intent.NewPatternClassifier()
	cfg := a.Config
	if cfg.OpenAIAPIKey == "" {
		return pattern
	}
	return &intent.Fallback{
		Primary: intent.NewOpenAIClassifier(&intent.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
			Logger:  a.logger,
		}),
		Secondary: pattern,
		Logger:    a.logger,
	}
}

// primarySource picks the quote source matching how transactions will be
// built and submitted.
func primarySource(cfg *config.Config, strategy txbuilder.Strategy) string {
	switch {
	case cfg.SubmitMode == config.SubmitExecute:
		return domain.QuoteSourceJupiterOrder
	case strategy == txbuilder.StrategyPool:
		return domain.QuoteSourceRaydium
	}
	return domain.QuoteSourceJupiter
}

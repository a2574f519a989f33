// Package main runs the swap assistant HTTP API:
// - Sessions: wallet connect, chat messages, confirm/cancel
// - Browser wallet bridge: sign request polling and answers
// - Operations: /health and Prometheus /metrics
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"solana-swap-assistant/internal/app"
	"solana-swap-assistant/internal/config"
	"solana-swap-assistant/internal/httpapi"
	"solana-swap-assistant/internal/logging"
)

// shutdownTimeout bounds graceful shutdown after the first signal.
const shutdownTimeout = 30 * time.Second

func main() {
	// Load .env and environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Parse flags (config as defaults)
	httpAddr := flag.String("http-addr", cfg.HTTPAddr, "HTTP listen address")
	rpcEndpoints := flag.String("rpc-endpoints", strings.Join(cfg.RPCEndpoints, ","), "Comma-separated Solana RPC endpoints, tried in order")
	wsEndpoint := flag.String("ws-endpoint", cfg.WSEndpoint, "Solana WebSocket endpoint (empty: poll only)")
	buildStrategy := flag.String("build-strategy", cfg.BuildStrategy, "Transaction build strategy: aggregator, pool or auto")
	submitMode := flag.String("submit-mode", cfg.SubmitMode, "Submission mode: direct or execute")
	slippage := flag.Uint("slippage-bps", uint(cfg.SlippageBps), "Default slippage in basis points")
	signTimeout := flag.Duration("sign-timeout", 2*time.Minute, "How long a browser sign request stays open")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", cfg.LogFormat, "Log format: json or console")

	flag.Parse()

	cfg.HTTPAddr = *httpAddr
	cfg.RPCEndpoints = splitList(*rpcEndpoints)
	cfg.WSEndpoint = *wsEndpoint
	cfg.BuildStrategy = *buildStrategy
	cfg.SubmitMode = *submitMode
	cfg.SlippageBps = uint16(*slippage)

	// Setup logger
	logger, err := logging.New(*logLevel, *logFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("server")

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	if !*useMemory && (cfg.PostgresDSN == "" || cfg.ClickHouseDSN == "") {
		logger.Warn("POSTGRES_DSN or CLICKHOUSE_DSN not set, the missing store runs in memory")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, *useMemory, logger)
	if err != nil {
		logger.Fatal("failed to start", zap.Error(err))
	}
	defer a.Close()

	api, err := httpapi.New(httpapi.Config{
		Orchestrator: a.Orchestrator,
		Embedded:     a.EmbeddedFactory(),
		SignTimeout:  *signTimeout,
		Logger:       logger,
	})
	if err != nil {
		logger.Fatal("failed to create HTTP API", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to signal completion
	done := make(chan struct{})

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))

		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		go func() {
			// Second signal forces exit.
			select {
			case sig := <-sigCh:
				logger.Warn("received second signal, forcing exit", zap.String("signal", sig.String()))
				os.Exit(1)
			case <-done:
			}
		}()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown", zap.Error(err))
		}
		if err := api.Shutdown(shutdownCtx); err != nil {
			logger.Error("sessions did not finish before the deadline", zap.Error(err))
		}
		cancel()
	}()

	logger.Info("http api listening", zap.String("addr", cfg.HTTPAddr))
	err = srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server", zap.Error(err))
		cancel()
	}
	<-ctx.Done()
	close(done)

	logger.Info("shutdown complete")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

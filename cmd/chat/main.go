// Package main is a terminal chat client for the swap assistant. It signs
// with a local keypair file instead of a browser wallet.
//
// Commands besides free text: confirm, cancel, quit.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"solana-swap-assistant/internal/app"
	"solana-swap-assistant/internal/chat"
	"solana-swap-assistant/internal/config"
	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/logging"
	"solana-swap-assistant/internal/orchestrator"
	"solana-swap-assistant/internal/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	keypairPath := flag.String("keypair", cfg.KeypairPath, "Path to a solana-keygen JSON keypair")
	rpcEndpoints := flag.String("rpc-endpoints", strings.Join(cfg.RPCEndpoints, ","), "Comma-separated Solana RPC endpoints")
	submitMode := flag.String("submit-mode", cfg.SubmitMode, "Submission mode: direct or execute")
	useMemory := flag.Bool("use-memory", true, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	logLevel := flag.String("log-level", "warn", "Log level: debug, info, warn, error")

	flag.Parse()

	cfg.SubmitMode = *submitMode
	cfg.RPCEndpoints = nil
	for _, ep := range strings.Split(*rpcEndpoints, ",") {
		if ep = strings.TrimSpace(ep); ep != "" {
			cfg.RPCEndpoints = append(cfg.RPCEndpoints, ep)
		}
	}

	// Console logs go to stderr so they don't interleave with replies.
	logger, err := logging.New(*logLevel, logging.FormatConsole)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	if *keypairPath == "" {
		logger.Fatal("--keypair or KEYPAIR_PATH is required")
	}
	provider, err := wallet.LoadKeypair(*keypairPath)
	if err != nil {
		logger.Fatal("failed to load keypair", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, *useMemory, logger)
	if err != nil {
		logger.Fatal("failed to start", zap.Error(err))
	}
	defer a.Close()

	adapter, err := wallet.New(wallet.SessionConfig{
		Kind:      domain.WalletExtension,
		Extension: provider,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal("failed to open wallet", zap.Error(err))
	}
	sess := a.Orchestrator.NewSession(adapter)
	defer a.Orchestrator.CloseSession(sess.ID())

	fmt.Printf("Connected as %s. Ask for a swap, then type confirm or cancel. Type quit to exit.\n", provider.PublicKey())

	r := &repl{session: sess, out: os.Stdout}
	if err := r.run(ctx, os.Stdin); err != nil {
		logger.Error("chat ended", zap.Error(err))
	}
}

// repl reads lines and prints the assistant messages each one produced.
type repl struct {
	session *orchestrator.Session
	out     io.Writer
	printed int
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}

		switch strings.ToLower(line) {
		case "quit", "exit":
			return nil
		case "confirm":
			r.confirm(ctx)
		case "cancel":
			r.cancel()
		default:
			if _, err := r.session.HandleMessage(ctx, line); err != nil {
				fmt.Fprintf(r.out, "error: %v\n", err)
			}
		}
		r.flush()
	}
}

func (r *repl) confirm(ctx context.Context) {
	a, ok := r.pending()
	if !ok {
		return
	}
	fmt.Fprintln(r.out, "Signing and sending...")
	if _, err := r.session.Confirm(ctx, a.ID); err != nil {
		fmt.Fprintf(r.out, "error: %v\n", err)
	}
}

func (r *repl) cancel() {
	a, ok := r.pending()
	if !ok {
		return
	}
	if _, err := r.session.Cancel(a.ID); err != nil {
		fmt.Fprintf(r.out, "error: %v\n", err)
	}
}

func (r *repl) pending() (domain.SwapAttempt, bool) {
	a, ok := r.session.Attempt()
	if !ok || a.Status != domain.StatusQuoteReady {
		fmt.Fprintln(r.out, "There is no quote waiting for confirmation.")
		return domain.SwapAttempt{}, false
	}
	return a, true
}

// flush prints assistant messages not yet shown.
func (r *repl) flush() {
	msgs := r.session.Conversation()
	for _, m := range msgs[r.printed:] {
		if m.Role == chat.RoleAssistant {
			fmt.Fprintln(r.out, m.Content)
		}
	}
	r.printed = len(msgs)
}

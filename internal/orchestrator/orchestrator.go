// Package orchestrator drives swap attempts for connected wallet sessions:
// intent → quote → user confirmation → build → sign → submit → confirm.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"solana-swap-assistant/internal/analytics"
	"solana-swap-assistant/internal/chat"
	"solana-swap-assistant/internal/confirm"
	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/intent"
	"solana-swap-assistant/internal/jupiter"
	"solana-swap-assistant/internal/observability"
	"solana-swap-assistant/internal/quote"
	sol "solana-swap-assistant/internal/solana"
	"solana-swap-assistant/internal/tokens"
	"solana-swap-assistant/internal/txbuilder"
	"solana-swap-assistant/internal/wallet"
)

const (
	// DefaultFundingToken pays for buy_sol intents that name no counter token.
	DefaultFundingToken = "USDC"

	// DefaultHistory is how many recent messages the classifier sees.
	DefaultHistory = 6
)

// Session operation errors. Stage failures are not returned as errors:
// they end the attempt and are reported in the conversation.
var (
	ErrUnknownAttempt          = errors.New("unknown swap attempt")
	ErrNotAwaitingConfirmation = errors.New("swap attempt is not awaiting confirmation")
	ErrSuperseded              = errors.New("quote superseded by a newer request")
	ErrEmptyMessage            = errors.New("empty message")
	ErrSessionClosed           = errors.New("session closed")
)

// RPC is the chain access used outside the builder and confirmer:
// wallet submission, signed-transaction recovery, settlement and balances.
type RPC interface {
	wallet.Connection
	confirm.TransactionFetcher
	GetAccountInfo(ctx context.Context, pubkey string) (*sol.AccountInfo, error)
}

// Executor submits signed order transactions. *jupiter.Client satisfies it.
type Executor interface {
	Execute(ctx context.Context, params jupiter.ExecuteParams) (*jupiter.ExecuteResponse, error)
}

// Options configures an Orchestrator.
type Options struct {
	Registry   tokens.Resolver
	Quoter     quote.Quoter
	Tracker    *quote.Tracker
	Builder    txbuilder.Builder
	RPC        RPC
	Confirmer  confirm.Confirmer
	Classifier intent.Classifier

	// Executor submits quotes carrying an order request ID. Optional when
	// the quote engine never produces orders.
	Executor Executor

	// FundingToken pays for buy_sol intents. Defaults to USDC.
	FundingToken string
	// SlippageBps overrides the quote engine default when non-zero.
	SlippageBps uint16
	// History is the classifier context size. Defaults to DefaultHistory.
	History int
	// RecoverPolicy bounds the re-fetch of transactions submitted by
	// wallets that only return a signature.
	RecoverPolicy confirm.RetryPolicy

	// OnAttemptEnd is called once per attempt after it reaches a terminal
	// status and its state is cleared.
	OnAttemptEnd func(sessionID string, attempt domain.SwapAttempt)

	Recorder *analytics.Recorder
	Logger   *zap.Logger
}

// Orchestrator creates sessions sharing one set of collaborators.
type Orchestrator struct {
	registry     tokens.Resolver
	quoter       quote.Quoter
	tracker      *quote.Tracker
	builder      txbuilder.Builder
	rpc          RPC
	confirmer    confirm.Confirmer
	classifier   intent.Classifier
	executor     Executor
	fundingToken string
	slippage     uint16
	history      int
	recover      confirm.RetryPolicy
	onAttemptEnd func(string, domain.SwapAttempt)
	recorder     *analytics.Recorder
	logger       *zap.Logger
	now          func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// New creates an orchestrator.
func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Registry == nil:
		return nil, fmt.Errorf("token registry is required")
	case opts.Quoter == nil:
		return nil, fmt.Errorf("quoter is required")
	case opts.Builder == nil:
		return nil, fmt.Errorf("transaction builder is required")
	case opts.RPC == nil:
		return nil, fmt.Errorf("rpc client is required")
	case opts.Confirmer == nil:
		return nil, fmt.Errorf("confirmer is required")
	}

	tracker := opts.Tracker
	if tracker == nil {
		tracker = quote.NewTracker()
	}
	classifier := opts.Classifier
	if classifier == nil {
		classifier = intent.NewPatternClassifier()
	}
	funding := opts.FundingToken
	if funding == "" {
		funding = DefaultFundingToken
	}
	history := opts.History
	if history <= 0 {
		history = DefaultHistory
	}
	recoverPolicy := opts.RecoverPolicy
	if recoverPolicy.MaxAttempts == 0 {
		recoverPolicy = confirm.DefaultRetryPolicy()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Orchestrator{
		registry:     opts.Registry,
		quoter:       opts.Quoter,
		tracker:      tracker,
		builder:      opts.Builder,
		rpc:          opts.RPC,
		confirmer:    opts.Confirmer,
		classifier:   classifier,
		executor:     opts.Executor,
		fundingToken: funding,
		slippage:     opts.SlippageBps,
		history:      history,
		recover:      recoverPolicy,
		onAttemptEnd: opts.OnAttemptEnd,
		recorder:     opts.Recorder,
		logger:       logger.Named("orchestrator"),
		now:          time.Now,
		sessions:     make(map[string]*Session),
	}, nil
}

// NewSession registers a session for a connected wallet.
func (o *Orchestrator) NewSession(adapter wallet.Adapter) *Session {
	id := uuid.NewString()
	signing := adapter.Session()
	s := &Session{
		id:           id,
		o:            o,
		adapter:      adapter,
		conversation: chat.NewLog(),
		offered:      make(map[string]bool),
		logger: o.logger.With(
			zap.String("session_id", id),
			zap.String("wallet", string(signing.WalletKind)),
		),
	}

	o.mu.Lock()
	o.sessions[id] = s
	o.mu.Unlock()
	observability.UpdateActiveSessions(1)

	s.logger.Info("session opened", zap.String("public_key", signing.PublicKey))
	return s
}

// Session returns a registered session by ID.
func (o *Orchestrator) Session(id string) (*Session, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.sessions[id]
	return s, ok
}

// CloseSession closes and unregisters a session.
func (o *Orchestrator) CloseSession(id string) bool {
	o.mu.Lock()
	s, ok := o.sessions[id]
	delete(o.sessions, id)
	o.mu.Unlock()
	if ok {
		s.close()
	}
	return ok
}

// SessionCount returns the number of open sessions.
func (o *Orchestrator) SessionCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.sessions)
}

// Tracker returns the quote staleness tracker shared with the builders.
func (o *Orchestrator) Tracker() *quote.Tracker {
	return o.tracker
}

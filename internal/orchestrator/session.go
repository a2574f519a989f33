package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"solana-swap-assistant/internal/analytics"
	"solana-swap-assistant/internal/chat"
	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/intent"
	"solana-swap-assistant/internal/observability"
	"solana-swap-assistant/internal/quote"
	"solana-swap-assistant/internal/tokens"
	"solana-swap-assistant/internal/wallet"
)

// Reply is the outcome of one user message.
type Reply struct {
	Intent domain.Intent
	// Messages are the conversation entries added while handling the
	// message, the user's own message first.
	Messages []chat.Message
	// Attempt is the session's latest attempt, if any.
	Attempt *domain.SwapAttempt
}

// run is the mutable state of one attempt. Guarded by Session.mu.
type run struct {
	attempt  domain.SwapAttempt
	stage    domain.ExecutionStage
	inFlight bool
	cleanup  sync.Once
}

// Session is the swap state machine of one connected wallet.
// The mutex is never held across network calls or wallet prompts.
type Session struct {
	id           string
	o            *Orchestrator
	adapter      wallet.Adapter
	conversation *chat.Log
	logger       *zap.Logger

	mu      sync.Mutex
	current *run // attempt not yet terminal
	last    *run // most recent attempt
	offered map[string]bool
	closed  bool

	closeOnce sync.Once
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Wallet returns the signing session of the connected wallet.
func (s *Session) Wallet() domain.SigningSession {
	return s.adapter.Session()
}

// Conversation returns a snapshot of the conversation.
func (s *Session) Conversation() []chat.Message {
	return s.conversation.Messages()
}

// Attempt returns a snapshot of the latest attempt.
func (s *Session) Attempt() (domain.SwapAttempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return domain.SwapAttempt{}, false
	}
	return s.last.attempt, true
}

// HandleMessage classifies a user message and acts on it.
func (s *Session) HandleMessage(ctx context.Context, text string) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if s.isClosed() {
		return nil, ErrSessionClosed
	}

	history := s.conversation.Last(s.o.history)
	mark := s.conversation.Len()
	s.conversation.User(text)

	in, err := s.o.classifier.Classify(ctx, text, history)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("classification failed", zap.Error(err))
		in = domain.Intent{Kind: domain.IntentOutOfScope, Message: intent.OutOfScopeMessage}
	}

	switch {
	case in.Kind.IsTrade():
		if _, err := s.RequestQuote(ctx, in); err != nil {
			s.logger.Info("quote request ended without a quote", zap.Error(err))
		}
	case in.Kind == domain.IntentExploreYield:
		s.conversation.Assistant(yieldText(in.Token), "")
	case in.Kind == domain.IntentViewPortfolio:
		s.conversation.Assistant(s.portfolioText(ctx), "")
	default:
		msg := in.Message
		if msg == "" {
			msg = intent.OutOfScopeMessage
		}
		s.conversation.Assistant(msg, "")
	}

	reply := &Reply{Intent: in}
	if msgs := s.conversation.Messages(); mark < len(msgs) {
		reply.Messages = msgs[mark:]
	}
	if a, ok := s.Attempt(); ok {
		reply.Attempt = &a
	}
	return reply, nil
}

// RequestQuote resolves the intent's tokens and fetches a quote. On success
// the new attempt is QuoteReady and the quote is in the conversation. A
// pending quote is superseded; an attempt past confirmation blocks new trades.
func (s *Session) RequestQuote(ctx context.Context, in domain.Intent) (domain.SwapAttempt, error) {
	if !in.Kind.IsTrade() {
		return domain.SwapAttempt{}, fmt.Errorf("intent %s is not a trade", in.Kind)
	}
	if err := s.checkInFlight(); err != nil {
		s.conversation.Assistant(describeError(err), "")
		return domain.SwapAttempt{}, err
	}

	req, err := s.quoteRequest(ctx, in)
	if err != nil {
		// Resolution failures leave the session as it was.
		s.conversation.Assistant(describeError(err), "")
		return domain.SwapAttempt{}, err
	}

	r, err := s.begin(ctx)
	if err != nil {
		s.conversation.Assistant(describeError(err), "")
		return domain.SwapAttempt{}, err
	}
	req.SessionID = s.id
	req.AttemptID = r.attempt.ID

	q, err := s.o.quoter.GetQuote(ctx, req)
	if err != nil {
		s.fail(ctx, r, err)
		s.cleanupRun(r)
		return s.snapshot(r), err
	}

	s.mu.Lock()
	if r.attempt.Status != domain.StatusQuoting {
		s.mu.Unlock()
		s.o.tracker.MarkStale(q.PoolRef.ID, quote.StaleSuperseded)
		return domain.SwapAttempt{}, ErrSuperseded
	}
	r.attempt.Quote = q
	s.setStatusLocked(r, domain.StatusQuoteReady)
	snap := r.attempt
	s.mu.Unlock()

	s.logger.Info("quote ready",
		zap.String("attempt_id", snap.ID),
		zap.String("source", q.PoolRef.Source),
		zap.String("input", q.InputToken.Symbol),
		zap.String("output", q.OutputToken.Symbol),
		zap.Uint64("in_amount", q.InputAmountRaw),
		zap.Uint64("out_amount", q.OutputAmountRaw))
	s.conversation.Assistant(quoteText(q), snap.ID)
	return snap, nil
}

// Cancel abandons the pending quote. Only valid at QuoteReady.
func (s *Session) Cancel(attemptID string) (domain.SwapAttempt, error) {
	s.mu.Lock()
	r, err := s.pendingLocked(attemptID)
	if err != nil {
		s.mu.Unlock()
		return domain.SwapAttempt{}, err
	}
	s.setStatusLocked(r, domain.StatusCancelled)
	snap := r.attempt
	s.mu.Unlock()

	s.record(context.Background(), snap, domain.StageQuote, domain.OutcomeCancelled, "", time.Time{})
	s.conversation.Assistant("Swap cancelled. Nothing was sent to your wallet.", snap.ID)
	s.cleanupRun(r)
	return s.snapshot(r), nil
}

// Confirm executes the pending quote: build, sign, submit and wait for
// finality. It blocks the calling goroutine only. Stage failures end the
// attempt and are reported in the returned snapshot and the conversation.
func (s *Session) Confirm(ctx context.Context, attemptID string) (domain.SwapAttempt, error) {
	r, err := s.claim(attemptID)
	if err != nil {
		return domain.SwapAttempt{}, err
	}
	return s.runConfirmed(ctx, r), nil
}

// ConfirmAsync is Confirm for callers that cannot block: the attempt is
// claimed synchronously, so an unknown or stale attempt ID still fails
// here, and the stages run in a new goroutine. The channel receives the
// final snapshot once.
func (s *Session) ConfirmAsync(ctx context.Context, attemptID string) (domain.SwapAttempt, <-chan domain.SwapAttempt, error) {
	r, err := s.claim(attemptID)
	if err != nil {
		return domain.SwapAttempt{}, nil, err
	}
	done := make(chan domain.SwapAttempt, 1)
	go func() {
		done <- s.runConfirmed(ctx, r)
	}()
	return s.snapshot(r), done, nil
}

// claim moves the pending attempt into the signing stage.
func (s *Session) claim(attemptID string) (*run, error) {
	s.mu.Lock()
	r, err := s.pendingLocked(attemptID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	r.inFlight = true
	r.stage = domain.StageBuild
	s.setStatusLocked(r, domain.StatusSigning)
	s.mu.Unlock()
	observability.UpdateAttemptsInFlight(1)
	return r, nil
}

func (s *Session) runConfirmed(ctx context.Context, r *run) (result domain.SwapAttempt) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("swap attempt panicked", zap.String("attempt_id", r.attempt.ID), zap.Any("panic", p))
			s.fail(ctx, r, fmt.Errorf("internal error: %v", p))
		}
		s.cleanupRun(r)
		result = s.snapshot(r)
	}()

	s.execute(ctx, r)
	return s.snapshot(r)
}

// close cancels a pending quote and releases the session.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		r := s.current
		pending := r != nil && r.attempt.Status == domain.StatusQuoteReady
		if pending {
			s.setStatusLocked(r, domain.StatusCancelled)
		}
		s.mu.Unlock()

		if pending {
			s.cleanupRun(r)
		}
		observability.UpdateActiveSessions(-1)
		s.logger.Info("session closed")
	})
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) checkInFlight() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlightLocked()
}

func (s *Session) inFlightLocked() error {
	if s.current != nil && s.current.attempt.Status.InFlight() {
		return fmt.Errorf("%w: attempt %s is %s", domain.ErrAttemptInFlight, s.current.attempt.ID, s.current.attempt.Status)
	}
	return nil
}

// begin starts a new attempt in Quoting, superseding any attempt that has
// not reached confirmation.
func (s *Session) begin(ctx context.Context) (*run, error) {
	now := s.o.now()
	r := &run{
		attempt: domain.SwapAttempt{
			ID:        uuid.NewString(),
			Status:    domain.StatusQuoting,
			CreatedAt: now,
			UpdatedAt: now,
		},
		stage: domain.StageQuote,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if err := s.inFlightLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	prev := s.current
	if prev != nil {
		s.setStatusLocked(prev, domain.StatusCancelled)
	}
	s.current = r
	s.last = r
	s.mu.Unlock()

	observability.RecordAttemptStarted()
	if prev != nil {
		snap := s.snapshot(prev)
		if snap.Quote != nil {
			s.o.tracker.MarkStale(snap.Quote.PoolRef.ID, quote.StaleSuperseded)
		}
		s.record(ctx, snap, domain.StageQuote, domain.OutcomeCancelled, "", time.Time{})
		s.conversation.Assistant("The previous quote was replaced by your new request.", snap.ID)
		s.cleanupRun(prev)
	}
	return r, nil
}

// quoteRequest resolves the pair of a trade intent. The intent's amount
// applies to the fixed side.
func (s *Session) quoteRequest(ctx context.Context, in domain.Intent) (quote.Request, error) {
	if in.Amount == nil || !in.Amount.IsPositive() {
		return quote.Request{}, fmt.Errorf("%w: a positive amount is required", domain.ErrInvalidAmount)
	}

	var (
		input, output domain.Token
		mode          domain.FixingMode
		err           error
	)
	switch in.Kind {
	case domain.IntentBuySOL:
		mode = domain.ExactOutput
		output = tokens.SOL()
		input, err = s.resolve(ctx, orDefault(in.PayWith, s.o.fundingToken))
	case domain.IntentBuyToken:
		mode = domain.ExactOutput
		if output, err = s.resolve(ctx, in.Token); err == nil {
			input, err = s.counterToken(ctx, in.PayWith, output)
		}
	case domain.IntentSellToken:
		mode = domain.ExactInput
		if input, err = s.resolve(ctx, in.Token); err == nil {
			output, err = s.counterToken(ctx, in.PayWith, input)
		}
	}
	if err != nil {
		return quote.Request{}, err
	}
	if input.Mint == output.Mint {
		return quote.Request{}, fmt.Errorf("%w: %s cannot be swapped for itself", domain.ErrNoRouteFound, input.Symbol)
	}
	if in.FixingMode.IsValid() {
		mode = in.FixingMode
	}

	return quote.Request{
		Input:       input,
		Output:      output,
		Amount:      *in.Amount,
		Mode:        mode,
		SlippageBps: s.o.slippage,
		Taker:       s.adapter.Session().PublicKey,
	}, nil
}

// counterToken resolves the other side of a trade. SOL is the default
// counter token, and the funding token when the trade itself is in SOL.
func (s *Session) counterToken(ctx context.Context, name string, traded domain.Token) (domain.Token, error) {
	if name != "" {
		return s.resolve(ctx, name)
	}
	if traded.Mint == tokens.SOLMint {
		return s.resolve(ctx, s.o.fundingToken)
	}
	return tokens.SOL(), nil
}

func (s *Session) resolve(ctx context.Context, name string) (domain.Token, error) {
	t, err := s.o.registry.Resolve(ctx, name)
	if err != nil {
		return domain.Token{}, &unresolvedToken{Query: name, Err: err}
	}
	return t, nil
}

// pendingLocked returns the attempt awaiting confirmation.
func (s *Session) pendingLocked(attemptID string) (*run, error) {
	r := s.current
	if r == nil || r.attempt.ID != attemptID {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAttempt, attemptID)
	}
	if r.attempt.Status != domain.StatusQuoteReady {
		return nil, fmt.Errorf("%w: attempt is %s", ErrNotAwaitingConfirmation, r.attempt.Status)
	}
	return r, nil
}

func (s *Session) setStatusLocked(r *run, status domain.Status) {
	r.attempt.Status = status
	r.attempt.UpdatedAt = s.o.now()
}

func (s *Session) setStatus(r *run, status domain.Status, stage domain.ExecutionStage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.attempt.Status.IsTerminal() {
		return
	}
	r.stage = stage
	s.setStatusLocked(r, status)
}

func (s *Session) update(r *run, fn func(a *domain.SwapAttempt)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&r.attempt)
	r.attempt.UpdatedAt = s.o.now()
}

func (s *Session) snapshot(r *run) domain.SwapAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return r.attempt
}

// finish moves the attempt to a terminal status. It reports false when the
// attempt already ended, so every attempt ends exactly once.
func (s *Session) finish(r *run, status domain.Status, detail string, fn func(a *domain.SwapAttempt)) (domain.SwapAttempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.attempt.Status.IsTerminal() {
		return r.attempt, false
	}
	if fn != nil {
		fn(&r.attempt)
	}
	r.attempt.ErrorDetail = detail
	s.setStatusLocked(r, status)
	return r.attempt, true
}

// fail ends the attempt as Failed, marks its quote stale and reports the
// error in the conversation.
func (s *Session) fail(ctx context.Context, r *run, err error) {
	snap, ok := s.finish(r, domain.StatusFailed, err.Error(), nil)
	if !ok {
		return
	}
	s.mu.Lock()
	stage := r.stage
	s.mu.Unlock()

	if snap.Quote != nil {
		s.o.tracker.MarkStale(snap.Quote.PoolRef.ID, staleReason(err))
	}
	// The quote engine reports its own outcomes.
	if stage != domain.StageQuote {
		outcome, kind := analytics.Outcome(err)
		s.record(ctx, snap, stage, outcome, kind, time.Time{})
	}
	s.logger.Warn("swap attempt failed",
		zap.String("attempt_id", snap.ID),
		zap.String("stage", string(stage)),
		zap.String("kind", string(domain.KindOf(err))),
		zap.Error(err))
	s.conversation.Assistant(describeError(err), snap.ID)
}

// cleanupRun clears the attempt from the session once it is terminal.
// Runs exactly once per attempt.
func (s *Session) cleanupRun(r *run) {
	r.cleanup.Do(func() {
		s.mu.Lock()
		if !r.attempt.Status.IsTerminal() {
			r.attempt.ErrorDetail = "attempt aborted"
			s.setStatusLocked(r, domain.StatusFailed)
		}
		if s.current == r {
			s.current = nil
		}
		snap := r.attempt
		inFlight := r.inFlight
		s.mu.Unlock()

		if snap.Status != domain.StatusConfirmed && snap.Quote != nil {
			s.o.tracker.MarkStale(snap.Quote.PoolRef.ID, quote.StaleAttemptEnded)
		}
		if inFlight {
			observability.UpdateAttemptsInFlight(-1)
		}
		observability.RecordAttemptFinished(snap.Status.String())
		if s.o.onAttemptEnd != nil {
			s.o.onAttemptEnd(s.id, snap)
		}
	})
}

// offerFollowUp posts the post-confirmation yield offer at most once per attempt.
func (s *Session) offerFollowUp(a domain.SwapAttempt) bool {
	if a.Status != domain.StatusConfirmed || a.Quote == nil {
		return false
	}
	s.mu.Lock()
	if s.offered[a.ID] {
		s.mu.Unlock()
		return false
	}
	s.offered[a.ID] = true
	s.mu.Unlock()

	observability.RecordFollowUpOffer()
	s.conversation.Assistant(followUpText(a.Quote.OutputToken), a.ID)
	return true
}

func (s *Session) portfolioText(ctx context.Context) string {
	signing := s.adapter.Session()
	text := fmt.Sprintf("Connected %s wallet %s.", signing.WalletKind, signing.PublicKey)

	info, err := s.o.rpc.GetAccountInfo(ctx, signing.PublicKey)
	switch {
	case err != nil:
		s.logger.Warn("balance lookup failed", zap.Error(err))
		text += " I couldn't read your SOL balance right now."
	case info == nil:
		text += " SOL balance: 0."
	default:
		sol := domain.RawToHuman(info.Lamports, tokens.SOL().Decimals)
		text += fmt.Sprintf(" SOL balance: %s.", sol.String())
	}

	if a, ok := s.Attempt(); ok && a.Quote != nil {
		text += fmt.Sprintf(" Last swap: %s → %s, %s.",
			a.Quote.InputToken.Symbol, a.Quote.OutputToken.Symbol, strings.ToLower(a.Status.String()))
	}
	return text
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

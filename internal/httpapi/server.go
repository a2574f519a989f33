// Package httpapi exposes swap sessions over HTTP.
//
// Browser extension wallets sign through a polling bridge: the client
// lists open sign requests and answers each with the signed transaction
// or a rejection.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/observability"
	"solana-swap-assistant/internal/orchestrator"
	"solana-swap-assistant/internal/wallet"
)

// maxBodyBytes caps request bodies. Signed transactions are at most 1232
// bytes on the wire, so this leaves ample headroom.
const maxBodyBytes = 64 << 10

// EmbeddedFactory opens the custodial provider for a wallet.
type EmbeddedFactory func(walletID string, address solana.PublicKey) (wallet.EmbeddedProvider, error)

// Config configures a Server.
type Config struct {
	Orchestrator *orchestrator.Orchestrator

	// Embedded opens custodial wallets. Nil disables embedded sessions.
	Embedded EmbeddedFactory

	// SignTimeout bounds each bridged sign request.
	SignTimeout time.Duration

	Logger *zap.Logger
}

// Server serves the session API.
type Server struct {
	orch        *orchestrator.Orchestrator
	embedded    EmbeddedFactory
	signTimeout time.Duration
	logger      *zap.Logger

	// ctx outlives requests; confirmed attempts run under it.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	bridges map[string]*wallet.Bridge // by session ID
}

// New creates a server.
func New(cfg Config) (*Server, error) {
	if cfg.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		orch:        cfg.Orchestrator,
		embedded:    cfg.Embedded,
		signTimeout: cfg.SignTimeout,
		logger:      logger.Named("httpapi"),
		ctx:         ctx,
		cancel:      cancel,
		bridges:     make(map[string]*wallet.Bridge),
	}, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", observability.Handler())

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/messages", s.handleMessage)
			r.Post("/confirm", s.handleConfirm)
			r.Post("/cancel", s.handleCancel)
			r.Get("/sign-requests", s.handleListSignRequests)
			r.Post("/sign-requests/{requestID}", s.handleAnswerSignRequest)
		})
	})
	return r
}

// Shutdown closes every session and waits for running attempts to stop
// or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.bridges))
	for id := range s.bridges {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	for _, id := range ids {
		s.closeSession(id)
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.orch.SessionCount(),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decode(w, r, &req) {
		return
	}
	pub, err := solana.PublicKeyFromBase58(strings.TrimSpace(req.PublicKey))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid publicKey: %v", err))
		return
	}

	var (
		adapter wallet.Adapter
		bridge  *wallet.Bridge
	)
	switch kind := domain.WalletKind(strings.ToLower(req.Wallet)); kind {
	case domain.WalletExtension:
		bridge = wallet.NewBridge(pub, s.signTimeout, s.logger)
		adapter, err = wallet.New(wallet.SessionConfig{Kind: kind, Extension: bridge, Logger: s.logger})
	case domain.WalletEmbedded:
		if s.embedded == nil {
			writeError(w, http.StatusBadRequest, "embedded wallets are not configured")
			return
		}
		if req.WalletID == "" {
			writeError(w, http.StatusBadRequest, "walletId is required for embedded wallets")
			return
		}
		var provider wallet.EmbeddedProvider
		provider, err = s.embedded(req.WalletID, pub)
		if err == nil {
			adapter, err = wallet.New(wallet.SessionConfig{Kind: kind, Embedded: provider, Logger: s.logger})
		}
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown wallet %q", req.Wallet))
		return
	}
	if err != nil {
		s.logger.Warn("open wallet failed", zap.String("wallet", req.Wallet), zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess := s.orch.NewSession(adapter)
	s.mu.Lock()
	s.bridges[sess.ID()] = bridge
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, newSessionView(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.closeSession(chi.URLParam(r, "sessionID")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req messageRequest
	if !decode(w, r, &req) {
		return
	}

	reply, err := sess.HandleMessage(r.Context(), req.Text)
	switch {
	case errors.Is(err, orchestrator.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, orchestrator.ErrSessionClosed):
		writeError(w, http.StatusGone, err.Error())
		return
	case err != nil:
		s.logger.Error("handle message failed", zap.String("session_id", sess.ID()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "message could not be handled")
		return
	}
	writeJSON(w, http.StatusOK, newReplyView(reply))
}

// handleConfirm starts execution and returns at once. Progress is read
// with GET on the session.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req attemptRequest
	if !decode(w, r, &req) {
		return
	}

	s.wg.Add(1)
	snap, done, err := sess.ConfirmAsync(s.ctx, req.AttemptID)
	if err != nil {
		s.wg.Done()
		writeAttemptError(w, err)
		return
	}
	go func() {
		defer s.wg.Done()
		final := <-done
		s.logger.Debug("attempt finished",
			zap.String("session_id", sess.ID()),
			zap.String("attempt_id", final.ID),
			zap.String("status", string(final.Status)))
	}()

	writeJSON(w, http.StatusAccepted, newAttemptView(snap))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req attemptRequest
	if !decode(w, r, &req) {
		return
	}
	snap, err := sess.Cancel(req.AttemptID)
	if err != nil {
		writeAttemptError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAttemptView(snap))
}

func (s *Server) handleListSignRequests(w http.ResponseWriter, r *http.Request) {
	bridge, ok := s.bridge(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": bridge.Pending()})
}

func (s *Server) handleAnswerSignRequest(w http.ResponseWriter, r *http.Request) {
	bridge, ok := s.bridge(w, r)
	if !ok {
		return
	}
	var req signResponse
	if !decode(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "requestID")
	var err error
	switch {
	case req.SignedTransaction != "":
		err = bridge.Resolve(id, req.SignedTransaction)
	case req.Rejected:
		err = bridge.Reject(id, req.Reason)
	case req.Error != "":
		err = bridge.Fail(id, req.Error)
	default:
		writeError(w, http.StatusBadRequest, "one of signedTransaction, rejected or error is required")
		return
	}
	switch {
	case errors.Is(err, wallet.ErrUnknownRequest):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*orchestrator.Session, bool) {
	sess, ok := s.orch.Session(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
	}
	return sess, ok
}

func (s *Server) bridge(w http.ResponseWriter, r *http.Request) (*wallet.Bridge, bool) {
	id := chi.URLParam(r, "sessionID")
	s.mu.Lock()
	bridge, known := s.bridges[id]
	s.mu.Unlock()
	switch {
	case !known:
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	case bridge == nil:
		writeError(w, http.StatusConflict, "session wallet does not sign through the browser")
		return nil, false
	}
	return bridge, true
}

// closeSession rejects open sign requests before closing the session so a
// blocked attempt ends as rejected.
func (s *Server) closeSession(id string) bool {
	s.mu.Lock()
	bridge := s.bridges[id]
	delete(s.bridges, id)
	s.mu.Unlock()
	if bridge != nil {
		bridge.Close()
	}
	return s.orch.CloseSession(id)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func writeAttemptError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrUnknownAttempt):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, orchestrator.ErrNotAwaitingConfirmation):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

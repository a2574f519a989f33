package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"solana-swap-assistant/internal/confirm"
	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/jupiter"
	"solana-swap-assistant/internal/orchestrator"
	"solana-swap-assistant/internal/quote"
	"solana-swap-assistant/internal/solana/stub"
	"solana-swap-assistant/internal/tokens"
	"solana-swap-assistant/internal/wallet"
)

type fixedQuoter struct{}

func (fixedQuoter) GetQuote(_ context.Context, req quote.Request) (*domain.Quote, error) {
	id := uuid.NewString()
	q := &domain.Quote{
		ID:          id,
		InputToken:  req.Input,
		OutputToken: req.Output,
		SlippageBps: 50,
		FixingMode:  req.Mode,
		PoolRef:     domain.PoolRef{ID: id, Source: domain.QuoteSourceJupiter, Route: "Orca"},
		FetchedAt:   time.Now(),
	}
	if req.Mode == domain.ExactOutput {
		q.OutputAmountRaw, _ = domain.HumanToRaw(req.Amount, req.Output.Decimals)
		q.InputAmountRaw = 75_000_000
		q.OtherAmountThreshold = 75_375_000
	} else {
		q.InputAmountRaw, _ = domain.HumanToRaw(req.Amount, req.Input.Decimals)
		q.OutputAmountRaw = 150_000_000
		q.OtherAmountThreshold = 149_250_000
	}
	return q, nil
}

// routeBuilder builds an aggregator route carrying the quote amounts.
type routeBuilder struct{}

func (routeBuilder) Build(_ context.Context, q *domain.Quote, signer solana.PublicKey) (*domain.UnsignedTransaction, error) {
	ix := solana.NewInstruction(jupiter.ProgramID, solana.AccountMetaSlice{
		{PublicKey: signer, IsSigner: true, IsWritable: true},
	}, jupiter.EncodeRouteArgs(jupiter.RouteArgs{
		ExactOut:     q.FixingMode == domain.ExactOutput,
		FixedAmount:  q.InputAmountRaw,
		QuotedAmount: q.OutputAmountRaw,
		SlippageBps:  q.SlippageBps,
	}))
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, stub.DefaultBlockhash, solana.TransactionPayer(signer))
	if err != nil {
		return nil, err
	}
	return &domain.UnsignedTransaction{
		Tx:                   tx,
		RecentBlockhash:      stub.DefaultBlockhash,
		LastValidBlockHeight: 1000,
		Strategy:             domain.BuildStrategyAggregator,
		QuoteID:              q.PoolRef.ID,
	}, nil
}

type okConfirmer struct{}

func (okConfirmer) Confirm(_ context.Context, signature string, _ uint64) (*confirm.Result, error) {
	return &confirm.Result{Signature: signature, Outcome: confirm.OutcomeConfirmed, Method: confirm.MethodPoll}, nil
}

// sendingProvider is an embedded wallet that never reaches the network.
type sendingProvider struct{ pub solana.PublicKey }

func (p sendingProvider) PublicKey() solana.PublicKey { return p.pub }

func (p sendingProvider) SignAndSendTransaction(context.Context, []byte) (string, error) {
	return "", nil
}

func newTestServer(t *testing.T, embedded EmbeddedFactory) (*Server, *httptest.Server) {
	t.Helper()
	orch, err := orchestrator.New(orchestrator.Options{
		Registry:  tokens.NewRegistry(tokens.Options{Logger: zaptest.NewLogger(t)}),
		Quoter:    fixedQuoter{},
		Builder:   routeBuilder{},
		RPC:       stub.NewRPCClient(),
		Confirmer: okConfirmer{},
		Logger:    zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	srv, err := New(Config{
		Orchestrator: orch,
		Embedded:     embedded,
		SignTimeout:  5 * time.Second,
		Logger:       zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, srv.Shutdown(ctx))
	})
	return srv, ts
}

// do sends a JSON request and decodes a successful response into out.
func do(method, url string, body any, out any) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func call(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	status, err := do(method, url, body, out)
	require.NoError(t, err)
	return status
}

func openExtensionSession(t *testing.T, ts *httptest.Server, pub solana.PublicKey) sessionView {
	t.Helper()
	var sess sessionView
	status := call(t, http.MethodPost, ts.URL+"/v1/sessions",
		createSessionRequest{Wallet: "extension", PublicKey: pub.String()}, &sess)
	require.Equal(t, http.StatusCreated, status)
	return sess
}

func requestQuote(t *testing.T, ts *httptest.Server, sessionID, text string) attemptView {
	t.Helper()
	var reply replyView
	status := call(t, http.MethodPost, ts.URL+"/v1/sessions/"+sessionID+"/messages", messageRequest{Text: text}, &reply)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, reply.Attempt)
	require.Equal(t, string(domain.StatusQuoteReady), reply.Attempt.Status)
	return *reply.Attempt
}

// nextSignRequest polls until the bridge exposes a request.
func nextSignRequest(t *testing.T, ts *httptest.Server, sessionID string) wallet.SignRequest {
	t.Helper()
	var got wallet.SignRequest
	require.Eventually(t, func() bool {
		var list struct {
			Requests []wallet.SignRequest `json:"requests"`
		}
		status, err := do(http.MethodGet, ts.URL+"/v1/sessions/"+sessionID+"/sign-requests", nil, &list)
		if err != nil || status != http.StatusOK {
			return false
		}
		if len(list.Requests) == 0 {
			return false
		}
		got = list.Requests[0]
		return true
	}, 5*time.Second, 10*time.Millisecond)
	return got
}

func waitForStatus(t *testing.T, ts *httptest.Server, sessionID string, want domain.Status) sessionView {
	t.Helper()
	var sess sessionView
	require.Eventually(t, func() bool {
		sess = sessionView{}
		if _, err := do(http.MethodGet, ts.URL+"/v1/sessions/"+sessionID, nil, &sess); err != nil {
			return false
		}
		return sess.Attempt != nil && sess.Attempt.Status == string(want)
	}, 5*time.Second, 10*time.Millisecond)
	return sess
}

func TestServer_Health(t *testing.T) {
	_, ts := newTestServer(t, nil)

	var body map[string]any
	require.Equal(t, http.StatusOK, call(t, http.MethodGet, ts.URL+"/health", nil, &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["sessions"])

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_ExtensionSwap(t *testing.T) {
	_, ts := newTestServer(t, nil)
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	sess := openExtensionSession(t, ts, key.PublicKey())
	assert.Equal(t, "extension", sess.Wallet.Kind)
	assert.Equal(t, key.PublicKey().String(), sess.Wallet.PublicKey)
	assert.Empty(t, sess.Messages)

	pending := requestQuote(t, ts, sess.ID, "buy 0.5 SOL")
	require.NotNil(t, pending.Quote)
	assert.Equal(t, "USDC", pending.Quote.Input.Symbol)
	assert.Equal(t, "SOL", pending.Quote.Output.Symbol)
	assert.Equal(t, "75", pending.Quote.InputAmount)
	assert.Equal(t, "0.5", pending.Quote.OutputAmount)

	var started attemptView
	status := call(t, http.MethodPost, ts.URL+"/v1/sessions/"+sess.ID+"/confirm", attemptRequest{AttemptID: pending.ID}, &started)
	require.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, string(domain.StatusSigning), started.Status)

	req := nextSignRequest(t, ts, sess.ID)
	raw, err := base64.StdEncoding.DecodeString(req.Transaction)
	require.NoError(t, err)
	signed, err := wallet.NewKeypairProvider(key).SignTransaction(context.Background(), raw)
	require.NoError(t, err)

	status = call(t, http.MethodPost, ts.URL+"/v1/sessions/"+sess.ID+"/sign-requests/"+req.ID,
		signResponse{SignedTransaction: base64.StdEncoding.EncodeToString(signed)}, nil)
	require.Equal(t, http.StatusNoContent, status)

	final := waitForStatus(t, ts, sess.ID, domain.StatusConfirmed)
	assert.NotEmpty(t, final.Attempt.Signature)
	require.NotNil(t, final.Attempt.Settlement)

	var confirmed int
	for _, m := range final.Messages {
		if bytes.Contains([]byte(m.Content), []byte("Swap confirmed")) {
			confirmed++
		}
	}
	assert.Equal(t, 1, confirmed)

	// The request was consumed.
	status = call(t, http.MethodPost, ts.URL+"/v1/sessions/"+sess.ID+"/sign-requests/"+req.ID, signResponse{Rejected: true}, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestServer_RejectedSignRequest(t *testing.T) {
	_, ts := newTestServer(t, nil)
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	sess := openExtensionSession(t, ts, key.PublicKey())
	pending := requestQuote(t, ts, sess.ID, "sell 10 USDC for BONK")
	require.Equal(t, http.StatusAccepted, call(t, http.MethodPost, ts.URL+"/v1/sessions/"+sess.ID+"/confirm", attemptRequest{AttemptID: pending.ID}, nil))

	req := nextSignRequest(t, ts, sess.ID)
	require.Equal(t, http.StatusNoContent, call(t, http.MethodPost,
		ts.URL+"/v1/sessions/"+sess.ID+"/sign-requests/"+req.ID, signResponse{Rejected: true, Reason: "user declined"}, nil))

	final := waitForStatus(t, ts, sess.ID, domain.StatusFailed)
	assert.Contains(t, final.Messages[len(final.Messages)-1].Content, "You declined the transaction")
}

func TestServer_CancelAndAttemptErrors(t *testing.T) {
	_, ts := newTestServer(t, nil)
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	sess := openExtensionSession(t, ts, key.PublicKey())
	base := ts.URL + "/v1/sessions/" + sess.ID

	assert.Equal(t, http.StatusNotFound, call(t, http.MethodPost, base+"/confirm", attemptRequest{AttemptID: "missing"}, nil))
	assert.Equal(t, http.StatusBadRequest, call(t, http.MethodPost, base+"/messages", messageRequest{Text: "  "}, nil))
	assert.Equal(t, http.StatusBadRequest, call(t, http.MethodPost, base+"/messages", map[string]string{"txt": "hi"}, nil))

	pending := requestQuote(t, ts, sess.ID, "buy 1 SOL")
	var cancelled attemptView
	require.Equal(t, http.StatusOK, call(t, http.MethodPost, base+"/cancel", attemptRequest{AttemptID: pending.ID}, &cancelled))
	assert.Equal(t, string(domain.StatusCancelled), cancelled.Status)

	assert.Equal(t, http.StatusNotFound, call(t, http.MethodPost, base+"/confirm", attemptRequest{AttemptID: pending.ID}, nil))
	assert.Equal(t, http.StatusNotFound, call(t, http.MethodPost, base+"/cancel", attemptRequest{AttemptID: pending.ID}, nil))
}

func TestServer_ConfirmTwice(t *testing.T) {
	_, ts := newTestServer(t, nil)
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	sess := openExtensionSession(t, ts, key.PublicKey())
	base := ts.URL + "/v1/sessions/" + sess.ID

	pending := requestQuote(t, ts, sess.ID, "buy 1 SOL")
	require.Equal(t, http.StatusAccepted, call(t, http.MethodPost, base+"/confirm", attemptRequest{AttemptID: pending.ID}, nil))
	nextSignRequest(t, ts, sess.ID)

	assert.Equal(t, http.StatusConflict, call(t, http.MethodPost, base+"/confirm", attemptRequest{AttemptID: pending.ID}, nil))

	var reply replyView
	require.Equal(t, http.StatusOK, call(t, http.MethodPost, base+"/messages", messageRequest{Text: "buy 2 SOL"}, &reply))
	assert.Contains(t, reply.Messages[len(reply.Messages)-1].Content, "already being signed")
}

func TestServer_DeleteSessionRejectsOpenSignRequest(t *testing.T) {
	srv, ts := newTestServer(t, nil)
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	sess := openExtensionSession(t, ts, key.PublicKey())
	base := ts.URL + "/v1/sessions/" + sess.ID

	pending := requestQuote(t, ts, sess.ID, "buy 1 SOL")
	require.Equal(t, http.StatusAccepted, call(t, http.MethodPost, base+"/confirm", attemptRequest{AttemptID: pending.ID}, nil))
	nextSignRequest(t, ts, sess.ID)

	s, ok := srv.orch.Session(sess.ID)
	require.True(t, ok)

	require.Equal(t, http.StatusNoContent, call(t, http.MethodDelete, base, nil, nil))
	assert.Equal(t, http.StatusNotFound, call(t, http.MethodGet, base, nil, nil))
	assert.Equal(t, http.StatusNotFound, call(t, http.MethodDelete, base, nil, nil))
	assert.Equal(t, http.StatusNotFound, call(t, http.MethodGet, base+"/sign-requests", nil, nil))

	require.Eventually(t, func() bool {
		a, ok := s.Attempt()
		return ok && a.Status == domain.StatusFailed
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServer_CreateSessionValidation(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	pub := key.PublicKey().String()

	_, ts := newTestServer(t, nil)
	url := ts.URL + "/v1/sessions"
	assert.Equal(t, http.StatusBadRequest, call(t, http.MethodPost, url, createSessionRequest{Wallet: "extension", PublicKey: "not-a-key"}, nil))
	assert.Equal(t, http.StatusBadRequest, call(t, http.MethodPost, url, createSessionRequest{Wallet: "ledger", PublicKey: pub}, nil))
	assert.Equal(t, http.StatusBadRequest, call(t, http.MethodPost, url, createSessionRequest{Wallet: "embedded", PublicKey: pub, WalletID: "w1"}, nil))
}

func TestServer_EmbeddedSession(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	var gotID string
	_, ts := newTestServer(t, func(walletID string, address solana.PublicKey) (wallet.EmbeddedProvider, error) {
		gotID = walletID
		return sendingProvider{pub: address}, nil
	})
	url := ts.URL + "/v1/sessions"

	assert.Equal(t, http.StatusBadRequest, call(t, http.MethodPost, url,
		createSessionRequest{Wallet: "embedded", PublicKey: key.PublicKey().String()}, nil))

	var sess sessionView
	require.Equal(t, http.StatusCreated, call(t, http.MethodPost, url,
		createSessionRequest{Wallet: "embedded", PublicKey: key.PublicKey().String(), WalletID: "w-42"}, &sess))
	assert.Equal(t, "w-42", gotID)
	assert.Equal(t, "embedded", sess.Wallet.Kind)
	assert.Equal(t, []string{string(domain.CanSignAndSend)}, sess.Wallet.Capabilities)

	assert.Equal(t, http.StatusConflict, call(t, http.MethodGet, url+"/"+sess.ID+"/sign-requests", nil, nil))
}

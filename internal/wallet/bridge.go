package wallet

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"solana-swap-assistant/internal/domain"
)

// DefaultSignTimeout bounds how long a bridged wallet prompt stays open.
const DefaultSignTimeout = 2 * time.Minute

// ErrUnknownRequest is returned when resolving a sign request that is not pending.
var ErrUnknownRequest = errors.New("unknown sign request")

// SignRequest is a transaction waiting for the browser wallet.
type SignRequest struct {
	ID          string    `json:"id"`
	Transaction string    `json:"transaction"` // base64 wire format
	CreatedAt   time.Time `json:"createdAt"`
}

type bridgeResponse struct {
	signed []byte
	err    error
}

type pendingSign struct {
	req  SignRequest
	done chan bridgeResponse
}

// Bridge relays sign requests to a browser extension wallet over the HTTP
// API. The browser polls Pending and posts the signed bytes or a rejection.
type Bridge struct {
	publicKey solana.PublicKey
	timeout   time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	pending map[string]*pendingSign
	closed  bool
}

// NewBridge creates a bridge for the wallet owning publicKey.
// timeout <= 0 uses DefaultSignTimeout.
func NewBridge(publicKey solana.PublicKey, timeout time.Duration, logger *zap.Logger) *Bridge {
	if timeout <= 0 {
		timeout = DefaultSignTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		publicKey: publicKey,
		timeout:   timeout,
		logger:    logger.Named("bridge"),
		pending:   make(map[string]*pendingSign),
	}
}

// PublicKey implements ExtensionProvider.
func (b *Bridge) PublicKey() solana.PublicKey {
	return b.publicKey
}

// SignTransaction implements Signer. It waits for the browser, the
// timeout or ctx; the last two count as the user walking away.
func (b *Bridge) SignTransaction(ctx context.Context, raw []byte) ([]byte, error) {
	p := &pendingSign{
		req: SignRequest{
			ID:          uuid.NewString(),
			Transaction: base64.StdEncoding.EncodeToString(raw),
			CreatedAt:   time.Now(),
		},
		done: make(chan bridgeResponse, 1),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: wallet disconnected", domain.ErrSigningRejected)
	}
	b.pending[p.req.ID] = p
	b.mu.Unlock()
	defer b.remove(p.req.ID)

	b.logger.Debug("sign request opened", zap.String("request_id", p.req.ID))

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case resp := <-p.done:
		return resp.signed, resp.err
	case <-timer.C:
		return nil, fmt.Errorf("%w: no wallet response after %s", domain.ErrSigningRejected, b.timeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", domain.ErrSigningRejected, ctx.Err())
	}
}

func (b *Bridge) remove(id string) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

// Pending returns the open sign requests, oldest first.
func (b *Bridge) Pending() []SignRequest {
	b.mu.Lock()
	out := make([]SignRequest, 0, len(b.pending))
	for _, p := range b.pending {
		out = append(out, p.req)
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Resolve completes a request with the base64 signed transaction.
func (b *Bridge) Resolve(id, signedBase64 string) error {
	signed, err := base64.StdEncoding.DecodeString(signedBase64)
	if err != nil {
		return fmt.Errorf("decode signed transaction: %w", err)
	}
	return b.complete(id, bridgeResponse{signed: signed})
}

// Reject completes a request with a user rejection.
func (b *Bridge) Reject(id, reason string) error {
	if reason == "" {
		reason = "user rejected the request"
	}
	return b.complete(id, bridgeResponse{err: fmt.Errorf("%w: %s", domain.ErrSigningRejected, reason)})
}

// Fail completes a request with a wallet-side technical error.
func (b *Bridge) Fail(id, message string) error {
	return b.complete(id, bridgeResponse{err: errors.New(message)})
}

func (b *Bridge) complete(id string, resp bridgeResponse) error {
	b.mu.Lock()
	p, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
	}
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRequest, id)
	}
	p.done <- resp
	return nil
}

// Close rejects every open request and any later ones.
func (b *Bridge) Close() {
	b.mu.Lock()
	b.closed = true
	pending := b.pending
	b.pending = make(map[string]*pendingSign)
	b.mu.Unlock()

	for _, p := range pending {
		p.done <- bridgeResponse{err: fmt.Errorf("%w: wallet disconnected", domain.ErrSigningRejected)}
	}
}

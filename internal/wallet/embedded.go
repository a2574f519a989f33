package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/observability"
)

// EmbeddedProvider is a custodial wallet that signs and submits in one
// call and returns only the signature.
type EmbeddedProvider interface {
	PublicKey() solana.PublicKey
	SignAndSendTransaction(ctx context.Context, raw []byte) (string, error)
}

// EmbeddedWallet adapts an EmbeddedProvider. Its results never carry
// signed bytes; see RecoverSignedTransaction.
type EmbeddedWallet struct {
	provider EmbeddedProvider
	logger   *zap.Logger
}

// NewEmbeddedWallet wraps provider.
func NewEmbeddedWallet(provider EmbeddedProvider, logger *zap.Logger) *EmbeddedWallet {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmbeddedWallet{provider: provider, logger: logger.Named("wallet")}
}

// Compile-time interface check.
var _ Adapter = (*EmbeddedWallet)(nil)

// Session implements Adapter.
func (w *EmbeddedWallet) Session() domain.SigningSession {
	return domain.SigningSession{
		WalletKind:   domain.WalletEmbedded,
		PublicKey:    w.provider.PublicKey().String(),
		Capabilities: []domain.Capability{domain.CanSignAndSend},
	}
}

// SignAndSend implements Adapter.
func (w *EmbeddedWallet) SignAndSend(ctx context.Context, tx *domain.UnsignedTransaction, conn Connection) (res *SignResult, err error) {
	if err := ensureBlockhash(ctx, tx, conn); err != nil {
		return nil, err
	}
	raw, err := tx.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: serialize: %v", domain.ErrSigningError, err)
	}

	start := time.Now()
	defer func() { recordSigning(domain.WalletEmbedded, start, err) }()

	sig, err := w.provider.SignAndSendTransaction(ctx, raw)
	if err != nil {
		return nil, signingError(err)
	}
	if _, err := solana.SignatureFromBase58(sig); err != nil {
		return nil, fmt.Errorf("%w: wallet returned malformed signature %q", domain.ErrSigningError, sig)
	}
	observability.RecordSubmission("wallet", "ok")
	w.logger.Info("transaction signed and sent",
		zap.String("quote_id", tx.QuoteID),
		zap.String("signature", sig))
	return &SignResult{Signature: sig}, nil
}

package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/observability"
	"solana-swap-assistant/internal/txbuilder"
)

// ExtensionProvider is a browser-extension style wallet. It must also
// implement Signer, Sender or both.
type ExtensionProvider interface {
	PublicKey() solana.PublicKey
}

// Signer signs a serialized transaction and returns the signed bytes.
type Signer interface {
	SignTransaction(ctx context.Context, raw []byte) ([]byte, error)
}

// Sender signs and submits a serialized transaction through conn.
type Sender interface {
	SendTransaction(ctx context.Context, raw []byte, conn Connection) (string, error)
}

// ExtensionWallet adapts an ExtensionProvider. Sign-then-send is used
// whenever the provider can sign, since it yields the signed bytes.
type ExtensionWallet struct {
	provider ExtensionProvider
	signer   Signer
	sender   Sender
	logger   *zap.Logger
}

// NewExtensionWallet wraps provider.
func NewExtensionWallet(provider ExtensionProvider, logger *zap.Logger) (*ExtensionWallet, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &ExtensionWallet{provider: provider, logger: logger.Named("wallet")}
	w.signer, _ = provider.(Signer)
	w.sender, _ = provider.(Sender)
	if w.signer == nil && w.sender == nil {
		return nil, fmt.Errorf("extension provider can neither sign nor send")
	}
	return w, nil
}

// Compile-time interface check.
var _ SignOnlyAdapter = (*ExtensionWallet)(nil)

// Session implements Adapter.
func (w *ExtensionWallet) Session() domain.SigningSession {
	s := domain.SigningSession{
		WalletKind:   domain.WalletExtension,
		PublicKey:    w.provider.PublicKey().String(),
		Capabilities: []domain.Capability{domain.CanSignAndSend},
	}
	if w.signer != nil {
		s.Capabilities = append(s.Capabilities, domain.CanSignOnly)
	}
	return s
}

// SignAndSend implements Adapter.
func (w *ExtensionWallet) SignAndSend(ctx context.Context, tx *domain.UnsignedTransaction, conn Connection) (*SignResult, error) {
	if w.signer == nil {
		return w.providerSend(ctx, tx, conn)
	}

	res, err := w.SignOnly(ctx, tx, conn)
	if err != nil {
		return nil, err
	}
	sig, err := conn.SendTransaction(ctx, res.SignedTx, nil)
	if err != nil {
		observability.RecordSubmission("rpc", "error")
		return nil, submissionError(err)
	}
	observability.RecordSubmission("rpc", "ok")
	if sig != res.Signature {
		w.logger.Warn("node returned a different signature",
			zap.String("signed", res.Signature),
			zap.String("returned", sig))
	}
	return res, nil
}

// SignOnly signs tx and returns the signed bytes without submitting them.
func (w *ExtensionWallet) SignOnly(ctx context.Context, tx *domain.UnsignedTransaction, conn Connection) (res *SignResult, err error) {
	if w.signer == nil {
		return nil, fmt.Errorf("%w: wallet cannot sign without sending", domain.ErrSigningError)
	}
	if err := ensureBlockhash(ctx, tx, conn); err != nil {
		return nil, err
	}
	raw, err := tx.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: serialize: %v", domain.ErrSigningError, err)
	}

	start := time.Now()
	defer func() { recordSigning(domain.WalletExtension, start, err) }()

	signed, err := w.signer.SignTransaction(ctx, raw)
	if err != nil {
		return nil, signingError(err)
	}
	landed, sig, err := signedBy(signed, w.provider.PublicKey())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSigningError, err)
	}
	// The wallet may add instructions but must not touch the swap.
	if err := txbuilder.SameSwap(tx.Tx, landed); err != nil {
		return nil, fmt.Errorf("%w: signed transaction differs from the quote: %v", domain.ErrSigningError, err)
	}
	w.logger.Info("transaction signed",
		zap.String("quote_id", tx.QuoteID),
		zap.String("signature", sig))
	return &SignResult{Signature: sig, SignedTx: signed}, nil
}

func (w *ExtensionWallet) providerSend(ctx context.Context, tx *domain.UnsignedTransaction, conn Connection) (res *SignResult, err error) {
	if err := ensureBlockhash(ctx, tx, conn); err != nil {
		return nil, err
	}
	raw, err := tx.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: serialize: %v", domain.ErrSigningError, err)
	}

	start := time.Now()
	defer func() { recordSigning(domain.WalletExtension, start, err) }()

	sig, err := w.sender.SendTransaction(ctx, raw, conn)
	if err != nil {
		return nil, signingError(err)
	}
	observability.RecordSubmission("wallet", "ok")
	return &SignResult{Signature: sig}, nil
}

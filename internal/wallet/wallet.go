// Package wallet adapts extension and embedded wallets to one signing contract.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/observability"
	sol "solana-swap-assistant/internal/solana"
)

// Connection is the network handle a wallet submits through.
// The failover RPC client satisfies it.
type Connection interface {
	GetLatestBlockhash(ctx context.Context) (*sol.Blockhash, error)
	SendTransaction(ctx context.Context, raw []byte, opts *sol.SendOptions) (string, error)
}

// SignResult is the outcome of a signing request.
type SignResult struct {
	Signature string
	// SignedTx holds the serialized signed transaction. Nil when the
	// wallet only returns a signature.
	SignedTx []byte
}

// Adapter signs and submits transactions for one connected wallet.
type Adapter interface {
	Session() domain.SigningSession
	SignAndSend(ctx context.Context, tx *domain.UnsignedTransaction, conn Connection) (*SignResult, error)
}

// SignOnlyAdapter is implemented by adapters that can hand back signed
// bytes without submitting them.
type SignOnlyAdapter interface {
	Adapter
	SignOnly(ctx context.Context, tx *domain.UnsignedTransaction, conn Connection) (*SignResult, error)
}

// SessionConfig selects and configures the wallet of a session.
type SessionConfig struct {
	Kind      domain.WalletKind
	Extension ExtensionProvider // required for WalletExtension
	Embedded  EmbeddedProvider  // required for WalletEmbedded
	Logger    *zap.Logger
}

// New returns the adapter for the configured wallet kind.
func New(cfg SessionConfig) (Adapter, error) {
	switch cfg.Kind {
	case domain.WalletExtension:
		if cfg.Extension == nil {
			return nil, fmt.Errorf("extension wallet requires a provider")
		}
		return NewExtensionWallet(cfg.Extension, cfg.Logger)
	case domain.WalletEmbedded:
		if cfg.Embedded == nil {
			return nil, fmt.Errorf("embedded wallet requires a provider")
		}
		return NewEmbeddedWallet(cfg.Embedded, cfg.Logger), nil
	}
	return nil, fmt.Errorf("unknown wallet kind %q", cfg.Kind)
}

// ensureBlockhash fills a missing blockhash from conn before signing.
func ensureBlockhash(ctx context.Context, tx *domain.UnsignedTransaction, conn Connection) error {
	if tx == nil || tx.Tx == nil {
		return fmt.Errorf("%w: no transaction", domain.ErrSigningError)
	}
	if tx.HasBlockhash() {
		return nil
	}
	latest, err := conn.GetLatestBlockhash(ctx)
	if err != nil {
		return fmt.Errorf("%w: fetch blockhash: %v", domain.ErrSigningError, err)
	}
	hash, err := solana.HashFromBase58(latest.Blockhash)
	if err != nil {
		return fmt.Errorf("%w: malformed blockhash %q", domain.ErrSigningError, latest.Blockhash)
	}
	tx.SetBlockhash(hash, latest.LastValidBlockHeight)
	observability.RecordBlockhashRefresh()
	return nil
}

// rejectionPhrases are wallet messages that mean the user declined.
var rejectionPhrases = []string{"user rejected", "rejected the request", "user declined", "user denied", "cancelled by user"}

// signingError classifies a wallet failure as a rejection or a technical
// error, flagging blockhash problems.
func signingError(err error) error {
	if errors.Is(err, domain.ErrSigningRejected) {
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, p := range rejectionPhrases {
		if strings.Contains(msg, p) {
			return fmt.Errorf("%w: %v", domain.ErrSigningRejected, err)
		}
	}
	if errors.Is(err, domain.ErrSigningError) {
		if domain.MentionsBlockhash(msg) && !errors.Is(err, domain.ErrBlockhashExpired) {
			return fmt.Errorf("%w: %w", domain.ErrBlockhashExpired, err)
		}
		return err
	}
	if domain.MentionsBlockhash(msg) {
		return fmt.Errorf("%w: %w: %v", domain.ErrSigningError, domain.ErrBlockhashExpired, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrSigningError, err)
}

// submissionError classifies a failed network submission.
func submissionError(err error) error {
	if domain.MentionsBlockhash(err.Error()) {
		return fmt.Errorf("%w: %w: %v", domain.ErrSubmission, domain.ErrBlockhashExpired, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrSubmission, err)
}

// recordSigning reports a signing outcome and the time spent waiting on the wallet.
func recordSigning(kind domain.WalletKind, start time.Time, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, domain.ErrSigningRejected):
		outcome = "rejected"
	case err != nil:
		outcome = "error"
	}
	observability.RecordSigning(string(kind), outcome, time.Since(start).Seconds())
}

// signedBy decodes signed and returns the signature of signer.
func signedBy(signed []byte, signer solana.PublicKey) (*solana.Transaction, string, error) {
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(signed))
	if err != nil {
		return nil, "", fmt.Errorf("decode signed transaction: %w", err)
	}
	n := int(tx.Message.Header.NumRequiredSignatures)
	for i := 0; i < n && i < len(tx.Message.AccountKeys) && i < len(tx.Signatures); i++ {
		if tx.Message.AccountKeys[i].Equals(signer) {
			if tx.Signatures[i] == (solana.Signature{}) {
				return nil, "", fmt.Errorf("transaction is not signed by %s", signer)
			}
			return tx, tx.Signatures[i].String(), nil
		}
	}
	return nil, "", fmt.Errorf("%s is not a signer of the transaction", signer)
}

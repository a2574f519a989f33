// Package txbuilder assembles unsigned swap transactions from quotes.
package txbuilder

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/observability"
	"solana-swap-assistant/internal/quote"
	"solana-swap-assistant/internal/raydium"
)

// Builder turns a quote into an unsigned transaction for signer.
// Fails with domain.ErrBuild when the quote is stale, the signer is
// unusable, or the assembled amounts drift from the quote.
type Builder interface {
	Build(ctx context.Context, q *domain.Quote, signer solana.PublicKey) (*domain.UnsignedTransaction, error)
}

// StalenessChecker reports quotes that must not be built.
type StalenessChecker interface {
	IsStale(quoteID string) bool
}

// Compile-time interface check.
var _ StalenessChecker = (*quote.Tracker)(nil)

// preflight rejects stale quotes and unusable signers.
func preflight(stale StalenessChecker, q *domain.Quote, signer solana.PublicKey) error {
	if q == nil {
		return fmt.Errorf("%w: no quote", domain.ErrBuild)
	}
	if stale != nil && stale.IsStale(q.PoolRef.ID) {
		return fmt.Errorf("%w: quote %s is stale, request a new quote", domain.ErrBuild, q.ID)
	}
	if signer.IsZero() {
		return fmt.Errorf("%w: no wallet connected", domain.ErrBuild)
	}
	if !raydium.IsOnCurve(signer[:]) {
		return fmt.Errorf("%w: signer %s is not a wallet key", domain.ErrBuild, signer)
	}
	return nil
}

// recordBuild reports the build outcome.
func recordBuild(strategy domain.BuildStrategy, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(domain.KindOf(err))
	}
	observability.RecordBuild(string(strategy), outcome)
}

// zeroSignatures sizes the signature slots to the message header.
func zeroSignatures(tx *solana.Transaction) {
	n := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Signatures) != n {
		tx.Signatures = make([]solana.Signature, n)
	}
}

// hasSignatures reports whether any signature slot is filled.
func hasSignatures(tx *solana.Transaction) bool {
	for _, sig := range tx.Signatures {
		if sig != (solana.Signature{}) {
			return true
		}
	}
	return false
}

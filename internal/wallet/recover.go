package wallet

import (
	"context"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"solana-swap-assistant/internal/confirm"
	"solana-swap-assistant/internal/domain"
)

// RecoverSignedTransaction re-fetches a landed transaction by signature
// and returns its serialized bytes, which carry the signed blockhash.
// Embedded wallets return only a signature, so this is the extra round
// trip needed when signed bytes are required downstream.
func RecoverSignedTransaction(ctx context.Context, fetcher confirm.TransactionFetcher, signature string, policy confirm.RetryPolicy) ([]byte, error) {
	var (
		raw     []byte
		lastErr error
	)
	err := policy.Do(ctx, func(int) (bool, error) {
		tx, err := fetcher.GetTransaction(ctx, signature)
		if err != nil {
			lastErr = err
			return false, nil
		}
		if tx == nil || len(tx.Raw) == 0 {
			return false, nil
		}
		raw = tx.Raw
		return true, nil
	})
	if err != nil {
		if lastErr != nil {
			err = fmt.Errorf("%w: %v", err, lastErr)
		}
		return nil, fmt.Errorf("%w: recover signed transaction %s: %v", domain.ErrSubmission, signature, err)
	}

	decoded, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: decode recovered transaction: %v", domain.ErrSubmission, err)
	}
	if len(decoded.Signatures) == 0 || decoded.Signatures[0].String() != signature {
		return nil, fmt.Errorf("%w: recovered transaction does not carry signature %s", domain.ErrSubmission, signature)
	}
	if decoded.Message.RecentBlockhash == (solana.Hash{}) {
		return nil, fmt.Errorf("%w: recovered transaction has no blockhash", domain.ErrSubmission)
	}
	return raw, nil
}

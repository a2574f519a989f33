package confirm

import (
	"context"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"solana-swap-assistant/internal/domain"
	sol "solana-swap-assistant/internal/solana"
	"solana-swap-assistant/internal/tokens"
)

// TransactionFetcher reads landed transactions.
type TransactionFetcher interface {
	GetTransaction(ctx context.Context, signature string) (*sol.Transaction, error)
}

// Settle derives the settled amounts of a confirmed swap from the owner's
// balance changes. Sides that cannot be read from chain fall back to the
// quoted amounts and the result is marked as quote-sourced.
func Settle(ctx context.Context, fetcher TransactionFetcher, signature, owner string, q *domain.Quote) *domain.Settlement {
	fallback := &domain.Settlement{
		InputRaw:  q.InputAmountRaw,
		OutputRaw: q.OutputAmountRaw,
		Source:    domain.SettlementFromQuote,
	}
	if fetcher == nil {
		return fallback
	}
	tx, err := fetcher.GetTransaction(ctx, signature)
	if err != nil || tx == nil || tx.Meta == nil {
		return fallback
	}

	in, inOK := spent(tx, owner, q.InputToken.Mint)
	out, outOK := received(tx, owner, q.OutputToken.Mint)
	s := &domain.Settlement{InputRaw: in, OutputRaw: out, Source: domain.SettlementFromChain}
	if !inOK {
		s.InputRaw = q.InputAmountRaw
		s.Source = domain.SettlementFromQuote
	}
	if !outOK {
		s.OutputRaw = q.OutputAmountRaw
		s.Source = domain.SettlementFromQuote
	}
	return s
}

func spent(tx *sol.Transaction, owner, mint string) (uint64, bool) {
	if mint == tokens.SOLMint {
		pre, post, ok := lamports(tx, owner)
		if !ok || pre <= post+tx.Meta.Fee {
			return 0, false
		}
		return pre - post - tx.Meta.Fee, true
	}
	pre, post := tokenBalance(tx.Meta.PreTokenBalances, owner, mint), tokenBalance(tx.Meta.PostTokenBalances, owner, mint)
	if pre <= post {
		return 0, false
	}
	return pre - post, true
}

func received(tx *sol.Transaction, owner, mint string) (uint64, bool) {
	if mint == tokens.SOLMint {
		pre, post, ok := lamports(tx, owner)
		if !ok || post+tx.Meta.Fee <= pre {
			return 0, false
		}
		return post + tx.Meta.Fee - pre, true
	}
	pre, post := tokenBalance(tx.Meta.PreTokenBalances, owner, mint), tokenBalance(tx.Meta.PostTokenBalances, owner, mint)
	if post <= pre {
		return 0, false
	}
	return post - pre, true
}

// lamports returns the owner's native balance around the transaction with
// rent for newly created token accounts added back to post.
// The owner must be the fee payer.
func lamports(tx *sol.Transaction, owner string) (pre, post uint64, ok bool) {
	if len(tx.Raw) == 0 || len(tx.Meta.PreBalances) == 0 || len(tx.Meta.PostBalances) == 0 {
		return 0, 0, false
	}
	decoded, err := solana.TransactionFromDecoder(bin.NewBinDecoder(tx.Raw))
	if err != nil || len(decoded.Message.AccountKeys) == 0 {
		return 0, 0, false
	}
	if decoded.Message.AccountKeys[0].String() != owner {
		return 0, 0, false
	}
	return tx.Meta.PreBalances[0], tx.Meta.PostBalances[0] + rentFunded(tx.Meta, owner), true
}

// rentFunded sums the lamports the swap moved into token accounts it
// created for the owner. They stay with the owner and are not part of the
// traded amount.
func rentFunded(meta *sol.TransactionMeta, owner string) uint64 {
	var total uint64
	seen := make(map[int]bool)
	for _, b := range meta.PostTokenBalances {
		i := b.AccountIndex
		if b.Owner != owner || seen[i] || i <= 0 || i >= len(meta.PreBalances) || i >= len(meta.PostBalances) {
			continue
		}
		seen[i] = true
		if meta.PreBalances[i] == 0 {
			total += meta.PostBalances[i]
		}
	}
	return total
}

func tokenBalance(balances []sol.TokenBalance, owner, mint string) uint64 {
	var total uint64
	for _, b := range balances {
		if b.Owner == owner && b.Mint == mint {
			total += b.RawAmount()
		}
	}
	return total
}

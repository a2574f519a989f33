package txbuilder

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/raydium"
	sol "solana-swap-assistant/internal/solana"
)

// PoolBuilder assembles CPMM swaps locally from pool state.
type PoolBuilder struct {
	rpc     sol.RPCClient
	loader  *raydium.Loader
	locator raydium.PoolLocator
	stale   StalenessChecker
	logger  *zap.Logger
}

// NewPoolBuilder creates a locally-assembled builder. locator is used when
// a quote does not name its pool.
func NewPoolBuilder(rpc sol.RPCClient, locator raydium.PoolLocator, stale StalenessChecker, logger *zap.Logger) *PoolBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PoolBuilder{
		rpc:     rpc,
		loader:  raydium.NewLoader(rpc),
		locator: locator,
		stale:   stale,
		logger:  logger.Named("txbuilder"),
	}
}

// Compile-time interface check.
var _ Builder = (*PoolBuilder)(nil)

// Build implements Builder.
func (b *PoolBuilder) Build(ctx context.Context, q *domain.Quote, signer solana.PublicKey) (tx *domain.UnsignedTransaction, err error) {
	defer func() { recordBuild(domain.BuildStrategyPool, err) }()

	if err := preflight(b.stale, q, signer); err != nil {
		return nil, err
	}
	inputMint, err := solana.PublicKeyFromBase58(q.InputToken.Mint)
	if err != nil {
		return nil, fmt.Errorf("%w: input mint %q", domain.ErrBuild, q.InputToken.Mint)
	}
	outputMint, err := solana.PublicKeyFromBase58(q.OutputToken.Mint)
	if err != nil {
		return nil, fmt.Errorf("%w: output mint %q", domain.ErrBuild, q.OutputToken.Mint)
	}

	pool, err := b.loadPool(ctx, q)
	if err != nil {
		return nil, err
	}
	leg, err := pool.Orient(inputMint, outputMint)
	if err != nil {
		return nil, err
	}
	if err := checkFillable(pool, leg, q); err != nil {
		return nil, err
	}

	ixs, err := swapInstructions(pool, leg, q, signer)
	if err != nil {
		return nil, err
	}

	latest, err := fetchBlockhash(ctx, b.rpc)
	if err != nil {
		return nil, err
	}
	built, err := solana.NewTransaction(ixs, latest.hash, solana.TransactionPayer(signer))
	if err != nil {
		return nil, fmt.Errorf("%w: assemble transaction: %v", domain.ErrBuild, err)
	}
	zeroSignatures(built)

	amounts, err := DecodeSwapAmounts(built)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBuild, err)
	}
	if err := CheckAmounts(q, amounts); err != nil {
		return nil, err
	}

	b.logger.Info("transaction built",
		zap.String("quote_id", q.ID),
		zap.String("strategy", string(domain.BuildStrategyPool)),
		zap.String("pool", pool.Address.String()),
		zap.Int("instructions", len(ixs)))
	return &domain.UnsignedTransaction{
		Tx:                   built,
		RecentBlockhash:      latest.hash,
		LastValidBlockHeight: latest.lastValidBlockHeight,
		Strategy:             domain.BuildStrategyPool,
		QuoteID:              q.ID,
	}, nil
}

func (b *PoolBuilder) loadPool(ctx context.Context, q *domain.Quote) (*raydium.Pool, error) {
	var address solana.PublicKey
	switch {
	case q.PoolRef.PoolAddress != "":
		a, err := solana.PublicKeyFromBase58(q.PoolRef.PoolAddress)
		if err != nil {
			return nil, fmt.Errorf("%w: pool address %q", domain.ErrBuild, q.PoolRef.PoolAddress)
		}
		address = a
	case b.locator != nil:
		a, err := b.locator.FindPool(ctx, q.InputToken.Mint, q.OutputToken.Mint)
		if err != nil {
			return nil, err
		}
		address = a
	default:
		return nil, fmt.Errorf("%w: quote %s names no pool", domain.ErrBuild, q.ID)
	}
	return b.loader.Load(ctx, address)
}

// checkFillable rejects quotes the pool can no longer honour within their
// slippage bound.
func checkFillable(pool *raydium.Pool, leg raydium.Leg, q *domain.Quote) error {
	if q.FixingMode == domain.ExactOutput {
		in, err := pool.QuoteExactOut(leg, q.OutputAmountRaw)
		if err != nil {
			return fillError(err)
		}
		if in > q.OtherAmountThreshold {
			return fmt.Errorf("%w: pool now needs %d input, above the bound %d; request a new quote",
				domain.ErrBuild, in, q.OtherAmountThreshold)
		}
		return nil
	}
	out, err := pool.QuoteExactIn(leg, q.InputAmountRaw)
	if err != nil {
		return fillError(err)
	}
	if out < q.OtherAmountThreshold {
		return fmt.Errorf("%w: pool now returns %d, below the bound %d; request a new quote",
			domain.ErrBuild, out, q.OtherAmountThreshold)
	}
	return nil
}

func fillError(err error) error {
	if errors.Is(err, raydium.ErrInsufficientLiquidity) || errors.Is(err, raydium.ErrZeroAmount) {
		return fmt.Errorf("%w: pool cannot fill the quote: %v", domain.ErrBuild, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrBuild, err)
}

// swapInstructions lays out account creation, SOL wrapping, the swap and
// the closing of any wrapped SOL accounts.
func swapInstructions(pool *raydium.Pool, leg raydium.Leg, q *domain.Quote, signer solana.PublicKey) ([]solana.Instruction, error) {
	inputAccount, err := raydium.AssociatedTokenAddress(signer, leg.InputMint, leg.InputProgram)
	if err != nil {
		return nil, fmt.Errorf("%w: derive input account: %v", domain.ErrBuild, err)
	}
	outputAccount, err := raydium.AssociatedTokenAddress(signer, leg.OutputMint, leg.OutputProgram)
	if err != nil {
		return nil, fmt.Errorf("%w: derive output account: %v", domain.ErrBuild, err)
	}
	accounts, err := pool.SwapAccounts(leg, signer, inputAccount, outputAccount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBuild, err)
	}

	inputIsSOL := leg.InputMint.Equals(raydium.WrappedSOLMint)
	outputIsSOL := leg.OutputMint.Equals(raydium.WrappedSOLMint)

	var ixs []solana.Instruction
	if inputIsSOL {
		ixs = append(ixs, raydium.NewCreateATAIdempotentInstruction(signer, inputAccount, signer, leg.InputMint, leg.InputProgram))
		lamports := q.InputAmountRaw
		if q.FixingMode == domain.ExactOutput {
			lamports = q.OtherAmountThreshold
		}
		ixs = append(ixs, raydium.WrapSOLInstructions(signer, inputAccount, lamports)...)
	}
	ixs = append(ixs, raydium.NewCreateATAIdempotentInstruction(signer, outputAccount, signer, leg.OutputMint, leg.OutputProgram))

	var swap solana.Instruction
	if q.FixingMode == domain.ExactOutput {
		swap, err = raydium.NewSwapBaseOutputInstruction(q.OtherAmountThreshold, q.OutputAmountRaw, accounts)
	} else {
		swap, err = raydium.NewSwapBaseInputInstruction(q.InputAmountRaw, q.OtherAmountThreshold, accounts)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: encode swap: %v", domain.ErrBuild, err)
	}
	ixs = append(ixs, swap)

	if inputIsSOL {
		ixs = append(ixs, raydium.UnwrapSOLInstruction(signer, inputAccount))
	}
	if outputIsSOL {
		ixs = append(ixs, raydium.UnwrapSOLInstruction(signer, outputAccount))
	}
	return ixs, nil
}

package txbuilder

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/jupiter"
	"solana-swap-assistant/internal/observability"
	sol "solana-swap-assistant/internal/solana"
)

// AggregatorBuilder builds transactions through the aggregator swap
// endpoint, or takes the prebuilt transaction of an order quote.
type AggregatorBuilder struct {
	client *jupiter.Client
	rpc    sol.RPCClient
	stale  StalenessChecker
	logger *zap.Logger
}

// NewAggregatorBuilder creates an aggregator-assembled builder.
func NewAggregatorBuilder(client *jupiter.Client, rpc sol.RPCClient, stale StalenessChecker, logger *zap.Logger) *AggregatorBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AggregatorBuilder{
		client: client,
		rpc:    rpc,
		stale:  stale,
		logger: logger.Named("txbuilder"),
	}
}

// Compile-time interface check.
var _ Builder = (*AggregatorBuilder)(nil)

// Build implements Builder.
func (b *AggregatorBuilder) Build(ctx context.Context, q *domain.Quote, signer solana.PublicKey) (tx *domain.UnsignedTransaction, err error) {
	defer func() { recordBuild(domain.BuildStrategyAggregator, err) }()

	if err := preflight(b.stale, q, signer); err != nil {
		return nil, err
	}

	var (
		encoded              string
		lastValidBlockHeight uint64
	)
	switch {
	case q.PoolRef.Transaction != "":
		encoded = q.PoolRef.Transaction
	case len(q.PoolRef.Payload) > 0:
		resp, err := b.client.Swap(ctx, jupiter.SwapParams{
			QuoteResponse:           q.PoolRef.Payload,
			UserPublicKey:           signer.String(),
			WrapAndUnwrapSol:        true,
			DynamicComputeUnitLimit: true,
		})
		if err != nil {
			return nil, err
		}
		encoded = resp.SwapTransaction
		lastValidBlockHeight = resp.LastValidBlockHeight
	default:
		return nil, fmt.Errorf("%w: quote %s carries no aggregator route", domain.ErrBuild, q.ID)
	}

	decoded, err := decodeTransaction(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: decode aggregator transaction: %v", domain.ErrUpstream, err)
	}
	if len(decoded.Message.AccountKeys) == 0 || !decoded.Message.AccountKeys[0].Equals(signer) {
		return nil, fmt.Errorf("%w: aggregator transaction fee payer is not %s", domain.ErrBuild, signer)
	}
	zeroSignatures(decoded)

	tx = &domain.UnsignedTransaction{
		Tx:                   decoded,
		RecentBlockhash:      decoded.Message.RecentBlockhash,
		LastValidBlockHeight: lastValidBlockHeight,
		Strategy:             domain.BuildStrategyAggregator,
		QuoteID:              q.ID,
	}
	if err := b.ensureBlockhash(ctx, tx); err != nil {
		return nil, err
	}

	amounts, err := DecodeSwapAmounts(decoded)
	switch {
	case errors.Is(err, ErrNoSwapInstruction) && q.PoolRef.RequestID != "":
		// Orders may settle through routers other than the aggregator program.
		b.logger.Warn("order transaction has no route instruction, amounts not verified",
			zap.String("quote_id", q.ID),
			zap.String("request_id", q.PoolRef.RequestID))
	case err != nil:
		return nil, fmt.Errorf("%w: %v", domain.ErrBuild, err)
	default:
		if err := CheckAmounts(q, amounts); err != nil {
			return nil, err
		}
	}

	b.logger.Info("transaction built",
		zap.String("quote_id", q.ID),
		zap.String("strategy", string(tx.Strategy)),
		zap.String("blockhash", tx.RecentBlockhash.String()))
	return tx, nil
}

// ensureBlockhash stamps a fresh blockhash when the transaction has none
// or its blockhash is no longer valid.
func (b *AggregatorBuilder) ensureBlockhash(ctx context.Context, tx *domain.UnsignedTransaction) error {
	if tx.HasBlockhash() {
		valid, err := b.rpc.IsBlockhashValid(ctx, tx.RecentBlockhash.String())
		if err != nil {
			return fmt.Errorf("%w: check blockhash: %v", domain.ErrUpstream, err)
		}
		if valid {
			return nil
		}
		if hasSignatures(tx.Tx) {
			return fmt.Errorf("%w: presigned transaction blockhash expired", domain.ErrBuild)
		}
	}

	latest, err := fetchBlockhash(ctx, b.rpc)
	if err != nil {
		return err
	}
	tx.SetBlockhash(latest.hash, latest.lastValidBlockHeight)
	observability.RecordBlockhashRefresh()
	return nil
}

type blockhash struct {
	hash                 solana.Hash
	lastValidBlockHeight uint64
}

func fetchBlockhash(ctx context.Context, rpc sol.RPCClient) (*blockhash, error) {
	latest, err := rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: get latest blockhash: %v", domain.ErrUpstream, err)
	}
	hash, err := solana.HashFromBase58(latest.Blockhash)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed blockhash %q", domain.ErrUpstream, latest.Blockhash)
	}
	return &blockhash{hash: hash, lastValidBlockHeight: latest.LastValidBlockHeight}, nil
}

func decodeTransaction(encoded string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	return solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
}

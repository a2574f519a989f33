package solana

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"solana-swap-assistant/internal/observability"
)

// FailoverClient tries a list of RPC clients in order and returns the first success.
// Requests are never issued in parallel. Node-level JSON-RPC errors are returned
// as-is since another endpoint would give the same answer.
type FailoverClient struct {
	clients []RPCClient
	names   []string
	logger  *zap.Logger
}

// NewFailoverClient creates a client over the given endpoints, tried in order.
func NewFailoverClient(endpoints []string, logger *zap.Logger, opts ...ClientOption) (*FailoverClient, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("at least one RPC endpoint is required")
	}
	clients := make([]RPCClient, len(endpoints))
	for i, ep := range endpoints {
		clients[i] = NewHTTPClient(ep, opts...)
	}
	f := NewFailover(logger, clients...)
	copy(f.names, endpoints)
	return f, nil
}

// NewFailover wraps existing clients.
func NewFailover(logger *zap.Logger, clients ...RPCClient) *FailoverClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	names := make([]string, len(clients))
	for i := range clients {
		names[i] = fmt.Sprintf("endpoint-%d", i)
	}
	return &FailoverClient{
		clients: clients,
		names:   names,
		logger:  logger.Named("rpc"),
	}
}

// Compile-time interface check.
var _ RPCClient = (*FailoverClient)(nil)

// do runs fn against each client in order until one succeeds.
func (f *FailoverClient) do(ctx context.Context, method string, fn func(RPCClient) error) error {
	var lastErr error
	for i, c := range f.clients {
		err := fn(c)
		if err == nil {
			return nil
		}
		if !shouldFailover(ctx, err) {
			return err
		}
		lastErr = err
		if i < len(f.clients)-1 {
			observability.RecordRPCFailover(method)
			f.logger.Warn("rpc endpoint failed, trying next",
				zap.String("method", method),
				zap.String("endpoint", f.names[i]),
				zap.Error(err))
		}
	}
	return fmt.Errorf("all %d rpc endpoints failed: %w", len(f.clients), lastErr)
}

func shouldFailover(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var rpcErr *RPCError
	return !errors.As(err, &rpcErr)
}

// GetLatestBlockhash returns the most recent blockhash.
func (f *FailoverClient) GetLatestBlockhash(ctx context.Context) (*Blockhash, error) {
	var out *Blockhash
	err := f.do(ctx, "getLatestBlockhash", func(c RPCClient) error {
		var err error
		out, err = c.GetLatestBlockhash(ctx)
		return err
	})
	return out, err
}

// IsBlockhashValid reports whether the blockhash is still valid.
func (f *FailoverClient) IsBlockhashValid(ctx context.Context, blockhash string) (bool, error) {
	var out bool
	err := f.do(ctx, "isBlockhashValid", func(c RPCClient) error {
		var err error
		out, err = c.IsBlockhashValid(ctx, blockhash)
		return err
	})
	return out, err
}

// SendTransaction submits a signed transaction.
func (f *FailoverClient) SendTransaction(ctx context.Context, raw []byte, opts *SendOptions) (string, error) {
	var out string
	err := f.do(ctx, "sendTransaction", func(c RPCClient) error {
		var err error
		out, err = c.SendTransaction(ctx, raw, opts)
		return err
	})
	return out, err
}

// GetSignatureStatuses returns signature statuses.
func (f *FailoverClient) GetSignatureStatuses(ctx context.Context, signatures ...string) ([]*SignatureStatus, error) {
	var out []*SignatureStatus
	err := f.do(ctx, "getSignatureStatuses", func(c RPCClient) error {
		var err error
		out, err = c.GetSignatureStatuses(ctx, signatures...)
		return err
	})
	return out, err
}

// GetTransaction retrieves a transaction by signature.
func (f *FailoverClient) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	var out *Transaction
	err := f.do(ctx, "getTransaction", func(c RPCClient) error {
		var err error
		out, err = c.GetTransaction(ctx, signature)
		return err
	})
	return out, err
}

// GetAccountInfo retrieves account info.
func (f *FailoverClient) GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error) {
	var out *AccountInfo
	err := f.do(ctx, "getAccountInfo", func(c RPCClient) error {
		var err error
		out, err = c.GetAccountInfo(ctx, pubkey)
		return err
	})
	return out, err
}

// GetTokenAccountBalance returns a token account balance.
func (f *FailoverClient) GetTokenAccountBalance(ctx context.Context, account string) (uint64, error) {
	var out uint64
	err := f.do(ctx, "getTokenAccountBalance", func(c RPCClient) error {
		var err error
		out, err = c.GetTokenAccountBalance(ctx, account)
		return err
	})
	return out, err
}

// GetBlockHeight returns the current block height.
func (f *FailoverClient) GetBlockHeight(ctx context.Context) (uint64, error) {
	var out uint64
	err := f.do(ctx, "getBlockHeight", func(c RPCClient) error {
		var err error
		out, err = c.GetBlockHeight(ctx)
		return err
	})
	return out, err
}

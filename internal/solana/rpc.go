package solana

import "context"

// RPCClient defines the Solana JSON-RPC surface used by the swap pipeline.
type RPCClient interface {
	// GetLatestBlockhash returns the most recent blockhash and its expiry height.
	GetLatestBlockhash(ctx context.Context) (*Blockhash, error)

	// IsBlockhashValid reports whether a blockhash can still be used for submission.
	IsBlockhashValid(ctx context.Context, blockhash string) (bool, error)

	// SendTransaction submits a signed wire-format transaction and returns its signature.
	SendTransaction(ctx context.Context, raw []byte, opts *SendOptions) (string, error)

	// GetSignatureStatuses returns one status per signature; nil entries are unknown.
	GetSignatureStatuses(ctx context.Context, signatures ...string) ([]*SignatureStatus, error)

	// GetTransaction retrieves a landed transaction by signature.
	// Returns nil if the transaction is not found.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetAccountInfo retrieves account info by public key.
	// Returns nil if the account is not found.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetTokenAccountBalance returns the raw balance of an SPL token account.
	GetTokenAccountBalance(ctx context.Context, account string) (uint64, error)

	// GetBlockHeight returns the current block height.
	GetBlockHeight(ctx context.Context) (uint64, error)
}

// Transaction represents a landed Solana transaction.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64  // Unix timestamp (seconds)
	Raw       []byte // wire-format transaction bytes
	Meta      *TransactionMeta
}

// TransactionMeta contains transaction status metadata.
type TransactionMeta struct {
	Err               interface{}
	Fee               uint64
	PreBalances       []uint64
	PostBalances      []uint64
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
	LogMessages       []string
	LoadedWritable    []string // addresses loaded from lookup tables
	LoadedReadonly    []string
}

// Package stub provides an in-memory Solana RPC client for tests.
package stub

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"

	"solana-swap-assistant/internal/solana"
)

// ErrNotFound is returned when a token account is not found.
var ErrNotFound = errors.New("not found")

// DefaultBlockhash is the blockhash served by a fresh stub.
var DefaultBlockhash = solanago.HashFromBytes(bytes.Repeat([]byte{7}, 32))

// RPCClient implements solana.RPCClient for testing.
// All fields may be set directly before use; methods are safe for concurrent calls.
type RPCClient struct {
	mu sync.Mutex

	Latest        *solana.Blockhash
	InvalidHashes map[string]bool
	BlockHeight   uint64
	Statuses      map[string]*solana.SignatureStatus
	Transactions  map[string]*solana.Transaction
	Accounts      map[string]*solana.AccountInfo
	TokenBalances map[string]uint64

	// StatusDelay hides a signature status for the given number of polls.
	StatusDelay map[string]int
	// TransactionDelay hides a landed transaction for the given number of lookups.
	TransactionDelay map[string]int

	// Errors injects a failure per RPC method name.
	Errors map[string]error

	// Sent records every raw transaction passed to SendTransaction.
	Sent [][]byte

	calls map[string]int
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Latest: &solana.Blockhash{
			Blockhash:            DefaultBlockhash.String(),
			LastValidBlockHeight: 1000,
		},
		InvalidHashes:    make(map[string]bool),
		BlockHeight:      900,
		Statuses:         make(map[string]*solana.SignatureStatus),
		Transactions:     make(map[string]*solana.Transaction),
		Accounts:         make(map[string]*solana.AccountInfo),
		TokenBalances:    make(map[string]uint64),
		StatusDelay:      make(map[string]int),
		TransactionDelay: make(map[string]int),
		Errors:           make(map[string]error),
		calls:            make(map[string]int),
	}
}

// Compile-time interface check.
var _ solana.RPCClient = (*RPCClient)(nil)

// Calls returns how many times a method was invoked.
func (c *RPCClient) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

func (c *RPCClient) enter(method string) error {
	c.calls[method]++
	return c.Errors[method]
}

// GetLatestBlockhash returns the configured blockhash.
func (c *RPCClient) GetLatestBlockhash(_ context.Context) (*solana.Blockhash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("getLatestBlockhash"); err != nil {
		return nil, err
	}
	bh := *c.Latest
	return &bh, nil
}

// IsBlockhashValid reports false only for hashes listed in InvalidHashes.
func (c *RPCClient) IsBlockhashValid(_ context.Context, blockhash string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("isBlockhashValid"); err != nil {
		return false, err
	}
	return !c.InvalidHashes[blockhash], nil
}

// SendTransaction records raw and returns its first signature.
func (c *RPCClient) SendTransaction(_ context.Context, raw []byte, _ *solana.SendOptions) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("sendTransaction"); err != nil {
		return "", err
	}
	tx, err := solanago.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return "", fmt.Errorf("decode transaction: %w", err)
	}
	if len(tx.Signatures) == 0 {
		return "", fmt.Errorf("transaction has no signatures")
	}
	c.Sent = append(c.Sent, append([]byte(nil), raw...))
	return tx.Signatures[0].String(), nil
}

// GetSignatureStatuses returns configured statuses honoring StatusDelay.
func (c *RPCClient) GetSignatureStatuses(_ context.Context, signatures ...string) ([]*solana.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("getSignatureStatuses"); err != nil {
		return nil, err
	}
	out := make([]*solana.SignatureStatus, len(signatures))
	for i, sig := range signatures {
		if c.StatusDelay[sig] > 0 {
			c.StatusDelay[sig]--
			continue
		}
		if st, ok := c.Statuses[sig]; ok {
			cp := *st
			out[i] = &cp
		}
	}
	return out, nil
}

// GetTransaction returns a configured transaction honoring TransactionDelay.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("getTransaction"); err != nil {
		return nil, err
	}
	if c.TransactionDelay[signature] > 0 {
		c.TransactionDelay[signature]--
		return nil, nil
	}
	return c.Transactions[signature], nil
}

// GetAccountInfo returns a configured account or nil.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("getAccountInfo"); err != nil {
		return nil, err
	}
	return c.Accounts[pubkey], nil
}

// GetTokenAccountBalance returns a configured balance.
func (c *RPCClient) GetTokenAccountBalance(_ context.Context, account string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("getTokenAccountBalance"); err != nil {
		return 0, err
	}
	bal, ok := c.TokenBalances[account]
	if !ok {
		return 0, ErrNotFound
	}
	return bal, nil
}

// GetBlockHeight returns BlockHeight.
func (c *RPCClient) GetBlockHeight(_ context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("getBlockHeight"); err != nil {
		return 0, err
	}
	return c.BlockHeight, nil
}

// SetStatus sets the status of a signature.
func (c *RPCClient) SetStatus(signature string, status *solana.SignatureStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Statuses[signature] = status
}

// AddTransaction adds a landed transaction to the stub store.
func (c *RPCClient) AddTransaction(tx *solana.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transactions[tx.Signature] = tx
}

// AddAccount adds an account to the stub store.
func (c *RPCClient) AddAccount(pubkey string, info *solana.AccountInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[pubkey] = info
}

// SentCount returns the number of submitted transactions.
func (c *RPCClient) SentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Sent)
}

// SetTokenBalance sets the raw balance of a token account.
func (c *RPCClient) SetTokenBalance(account string, amount uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TokenBalances[account] = amount
}

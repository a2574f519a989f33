package domain

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// BuildStrategy identifies how an unsigned transaction was assembled.
type BuildStrategy string

const (
	BuildStrategyAggregator BuildStrategy = "aggregator"
	BuildStrategyPool       BuildStrategy = "pool"
)

// UnsignedTransaction is a wire-format versioned transaction awaiting signatures.
type UnsignedTransaction struct {
	Tx                   *solana.Transaction
	RecentBlockhash      solana.Hash
	LastValidBlockHeight uint64 // 0 when unknown
	Strategy             BuildStrategy
	QuoteID              string
}

// Bytes serializes the transaction to wire format.
func (u *UnsignedTransaction) Bytes() ([]byte, error) {
	if u == nil || u.Tx == nil {
		return nil, fmt.Errorf("nil transaction")
	}
	return u.Tx.MarshalBinary()
}

// HasBlockhash reports whether the transaction carries a recent blockhash.
func (u *UnsignedTransaction) HasBlockhash() bool {
	return u != nil && u.Tx != nil && u.Tx.Message.RecentBlockhash != (solana.Hash{})
}

// SetBlockhash stamps a blockhash on the transaction message.
func (u *UnsignedTransaction) SetBlockhash(hash solana.Hash, lastValidBlockHeight uint64) {
	u.Tx.Message.RecentBlockhash = hash
	u.RecentBlockhash = hash
	u.LastValidBlockHeight = lastValidBlockHeight
}

package solana

import (
	"context"

	"github.com/gagliardetto/solana-go/rpc"
)

// WSClient defines the Solana WebSocket subscriptions used for confirmation.
type WSClient interface {
	// SubscribeSignature waits for a single status notification of a transaction.
	// The returned channel yields at most one notification and is then closed.
	SubscribeSignature(ctx context.Context, signature string, commitment rpc.CommitmentType) (<-chan SignatureNotification, error)

	// Close closes the WebSocket connection.
	Close() error
}

// SignatureNotification is the result of a signature subscription.
type SignatureNotification struct {
	Signature string
	Slot      uint64
	Err       interface{} // transaction error, nil on success
}

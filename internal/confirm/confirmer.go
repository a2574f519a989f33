package confirm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"solana-swap-assistant/internal/observability"
	sol "solana-swap-assistant/internal/solana"
)

// Outcome is the finality verdict for a signature.
type Outcome string

const (
	OutcomeConfirmed     Outcome = "confirmed"
	OutcomeFailed        Outcome = "failed"
	OutcomeIndeterminate Outcome = "indeterminate"
)

// Result is the observed status of a submitted transaction.
type Result struct {
	Signature string
	Outcome   Outcome
	Slot      uint64
	// Reason describes a failure: the on-chain error or block height expiry.
	Reason string
	// Expired is set when the blockhash expired before the transaction landed.
	Expired bool
	Method  string
}

// Confirmer waits for a signature to reach the confirmed commitment.
// lastValidBlockHeight may be 0 when unknown.
type Confirmer interface {
	Confirm(ctx context.Context, signature string, lastValidBlockHeight uint64) (*Result, error)
}

// Confirmation methods.
const (
	MethodPoll = "poll"
	MethodWS   = "ws"
)

// Poller confirms by polling getSignatureStatuses.
type Poller struct {
	rpc        sol.RPCClient
	policy     RetryPolicy
	commitment rpc.CommitmentType
	logger     *zap.Logger
}

// NewPoller creates a polling confirmer.
func NewPoller(client sol.RPCClient, policy RetryPolicy, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		rpc:        client,
		policy:     policy.normalized(),
		commitment: rpc.CommitmentConfirmed,
		logger:     logger.Named("confirm"),
	}
}

// Compile-time interface check.
var _ Confirmer = (*Poller)(nil)

// Confirm implements Confirmer. Exhausting the policy yields an
// indeterminate result since the transaction may still land.
func (p *Poller) Confirm(ctx context.Context, signature string, lastValidBlockHeight uint64) (*Result, error) {
	start := time.Now()
	var result *Result
	err := p.policy.Do(ctx, func(attempt int) (bool, error) {
		r, err := p.check(ctx, signature, lastValidBlockHeight)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			p.logger.Warn("signature status check failed",
				zap.String("signature", signature),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			return false, nil
		}
		result = r
		return r != nil, nil
	})
	switch {
	case errors.Is(err, ErrExhausted):
		p.logger.Warn("confirmation not observed",
			zap.String("signature", signature),
			zap.Int("attempts", p.policy.MaxAttempts))
		return &Result{Signature: signature, Outcome: OutcomeIndeterminate, Method: MethodPoll}, nil
	case err != nil:
		return nil, err
	}
	observability.RecordConfirmation(MethodPoll, time.Since(start).Seconds())
	return result, nil
}

// check returns a final result, or nil while the signature is pending.
func (p *Poller) check(ctx context.Context, signature string, lastValidBlockHeight uint64) (*Result, error) {
	statuses, err := p.rpc.GetSignatureStatuses(ctx, signature)
	if err != nil {
		return nil, err
	}
	var st *sol.SignatureStatus
	if len(statuses) > 0 {
		st = statuses[0]
	}
	if st != nil && st.Err != nil {
		return &Result{
			Signature: signature,
			Outcome:   OutcomeFailed,
			Slot:      st.Slot,
			Reason:    fmt.Sprint(st.Err),
			Method:    MethodPoll,
		}, nil
	}
	if st.Reached(p.commitment) {
		return &Result{Signature: signature, Outcome: OutcomeConfirmed, Slot: st.Slot, Method: MethodPoll}, nil
	}
	if st != nil || lastValidBlockHeight == 0 {
		return nil, nil
	}

	height, err := p.rpc.GetBlockHeight(ctx)
	if err != nil {
		return nil, err
	}
	if height > lastValidBlockHeight {
		return &Result{
			Signature: signature,
			Outcome:   OutcomeFailed,
			Reason:    fmt.Sprintf("block height exceeded: %d > %d", height, lastValidBlockHeight),
			Expired:   true,
			Method:    MethodPoll,
		}, nil
	}
	return nil, nil
}

// WSConfirmer waits on a signatureSubscribe notification and polls when
// the subscription is unavailable or stays silent.
type WSConfirmer struct {
	ws     sol.WSClient
	poller *Poller
	logger *zap.Logger
}

// NewWSConfirmer creates a subscription-first confirmer.
func NewWSConfirmer(ws sol.WSClient, poller *Poller, logger *zap.Logger) *WSConfirmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSConfirmer{ws: ws, poller: poller, logger: logger.Named("confirm")}
}

// Compile-time interface check.
var _ Confirmer = (*WSConfirmer)(nil)

// Confirm implements Confirmer.
func (c *WSConfirmer) Confirm(ctx context.Context, signature string, lastValidBlockHeight uint64) (*Result, error) {
	start := time.Now()
	budget := c.poller.policy.Budget()
	subCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	ch, err := c.ws.SubscribeSignature(subCtx, signature, c.poller.commitment)
	if err != nil {
		c.logger.Warn("signature subscription failed, polling",
			zap.String("signature", signature),
			zap.Error(err))
		return c.poller.Confirm(ctx, signature, lastValidBlockHeight)
	}

	select {
	case n, ok := <-ch:
		if ok {
			observability.RecordConfirmation(MethodWS, time.Since(start).Seconds())
			if n.Err != nil {
				return &Result{Signature: signature, Outcome: OutcomeFailed, Slot: n.Slot, Reason: fmt.Sprint(n.Err), Method: MethodWS}, nil
			}
			return &Result{Signature: signature, Outcome: OutcomeConfirmed, Slot: n.Slot, Method: MethodWS}, nil
		}
		if subCtx.Err() == nil {
			c.logger.Warn("signature subscription dropped, polling", zap.String("signature", signature))
			return c.poller.Confirm(ctx, signature, lastValidBlockHeight)
		}
	case <-subCtx.Done():
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// Subscription stayed silent for the whole budget: one last status check.
	r, err := c.poller.check(ctx, signature, lastValidBlockHeight)
	if err != nil || r == nil {
		if err != nil {
			c.logger.Warn("final status check failed", zap.String("signature", signature), zap.Error(err))
		}
		return &Result{Signature: signature, Outcome: OutcomeIndeterminate, Method: MethodWS}, nil
	}
	return r, nil
}

package orchestrator

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"solana-swap-assistant/internal/confirm"
	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/jupiter"
	"solana-swap-assistant/internal/observability"
	"solana-swap-assistant/internal/txbuilder"
	"solana-swap-assistant/internal/wallet"
)

// routeExecute labels submissions through the aggregator's execute endpoint.
const routeExecute = "execute"

// execute runs the stages after the user confirmed. Every failure ends
// the attempt through fail; nothing is retried.
func (s *Session) execute(ctx context.Context, r *run) {
	a := s.snapshot(r)
	q := a.Quote
	signing := s.adapter.Session()

	signer, err := solana.PublicKeyFromBase58(signing.PublicKey)
	if err != nil {
		s.fail(ctx, r, fmt.Errorf("%w: wallet public key: %v", domain.ErrBuild, err))
		return
	}

	start := time.Now()
	tx, err := s.o.builder.Build(ctx, q, signer)
	if err != nil {
		s.fail(ctx, r, err)
		return
	}
	s.update(r, func(a *domain.SwapAttempt) { a.UnsignedTx = tx })
	s.record(ctx, s.snapshot(r), domain.StageBuild, domain.OutcomeOK, "", start)

	var signature string
	if q.PoolRef.RequestID != "" {
		signature, err = s.submitOrder(ctx, r, tx)
	} else {
		signature, err = s.signAndSend(ctx, r, tx)
	}
	if err != nil {
		s.fail(ctx, r, err)
		return
	}

	s.update(r, func(a *domain.SwapAttempt) { a.Signature = signature })
	s.setStatus(r, domain.StatusConfirming, domain.StageConfirm)
	s.logger.Info("swap submitted",
		zap.String("attempt_id", a.ID),
		zap.String("signature", signature),
		zap.Uint64("last_valid_block_height", tx.LastValidBlockHeight))

	s.awaitFinality(ctx, r, signature, tx.LastValidBlockHeight)
}

// signAndSend hands the transaction to the wallet, which submits it itself.
func (s *Session) signAndSend(ctx context.Context, r *run, tx *domain.UnsignedTransaction) (string, error) {
	s.setStatus(r, domain.StatusSigning, domain.StageSign)
	start := time.Now()
	res, err := s.adapter.SignAndSend(ctx, tx, s.o.rpc)
	if err != nil {
		s.markSubmitStage(r, err)
		return "", err
	}
	s.record(ctx, s.snapshot(r), domain.StageSign, domain.OutcomeOK, "", start)
	s.setStatus(r, domain.StatusSubmitting, domain.StageSubmit)

	snap := s.snapshot(r)
	snap.Signature = res.Signature
	s.record(ctx, snap, domain.StageSubmit, domain.OutcomeOK, "", start)
	return res.Signature, nil
}

// submitOrder signs an order transaction and submits it through the
// aggregator's execute endpoint. Wallets that cannot sign without sending
// submit first; their signed bytes are recovered from chain and checked
// against the built transaction before execution.
func (s *Session) submitOrder(ctx context.Context, r *run, tx *domain.UnsignedTransaction) (string, error) {
	if s.o.executor == nil {
		return "", fmt.Errorf("%w: order execution is not configured", domain.ErrBuild)
	}

	s.setStatus(r, domain.StatusSigning, domain.StageSign)
	start := time.Now()

	var signed []byte
	so, canSignOnly := s.adapter.(wallet.SignOnlyAdapter)
	if canSignOnly && s.adapter.Session().Has(domain.CanSignOnly) {
		res, err := so.SignOnly(ctx, tx, s.o.rpc)
		if err != nil {
			return "", err
		}
		signed = res.SignedTx
		s.record(ctx, s.snapshot(r), domain.StageSign, domain.OutcomeOK, "", start)
		s.setStatus(r, domain.StatusSubmitting, domain.StageSubmit)
	} else {
		res, err := s.adapter.SignAndSend(ctx, tx, s.o.rpc)
		if err != nil {
			s.markSubmitStage(r, err)
			return "", err
		}
		s.record(ctx, s.snapshot(r), domain.StageSign, domain.OutcomeOK, "", start)
		s.setStatus(r, domain.StatusSubmitting, domain.StageSubmit)
		s.update(r, func(a *domain.SwapAttempt) { a.Signature = res.Signature })

		signed, err = s.recoverSigned(ctx, tx, res)
		if err != nil {
			return "", err
		}
	}

	return s.executeSigned(ctx, r, signed)
}

// recoverSigned returns the signed bytes of a transaction the wallet
// submitted, re-fetching them by signature when the wallet returned none.
func (s *Session) recoverSigned(ctx context.Context, tx *domain.UnsignedTransaction, res *wallet.SignResult) ([]byte, error) {
	raw := res.SignedTx
	if raw == nil {
		var err error
		raw, err = wallet.RecoverSignedTransaction(ctx, s.o.rpc, res.Signature, s.o.recover)
		if err != nil {
			return nil, err
		}
	}
	landed, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: decode signed transaction: %v", domain.ErrSubmission, err)
	}
	if err := txbuilder.SameSwap(tx.Tx, landed); err != nil {
		return nil, fmt.Errorf("%w: signed transaction differs from the quote: %v", domain.ErrSubmission, err)
	}
	return raw, nil
}

func (s *Session) executeSigned(ctx context.Context, r *run, signed []byte) (string, error) {
	start := time.Now()
	resp, err := s.o.executor.Execute(ctx, jupiter.ExecuteParams{
		SignedTransaction: base64.StdEncoding.EncodeToString(signed),
		RequestID:         s.snapshot(r).Quote.PoolRef.RequestID,
	})
	if err != nil {
		observability.RecordSubmission(routeExecute, domain.OutcomeError)
		return "", fmt.Errorf("%w: execute order: %w", domain.ErrSubmission, err)
	}
	if resp.Status != jupiter.ExecuteStatusSuccess {
		observability.RecordSubmission(routeExecute, domain.OutcomeError)
		msg := resp.Error
		if msg == "" {
			msg = fmt.Sprintf("execute status %q (code %d)", resp.Status, resp.Code)
		}
		if domain.MentionsBlockhash(msg) {
			return "", fmt.Errorf("%w: %w: %s", domain.ErrSubmission, domain.ErrBlockhashExpired, msg)
		}
		return "", fmt.Errorf("%w: %s", domain.ErrSubmission, msg)
	}
	observability.RecordSubmission(routeExecute, domain.OutcomeOK)

	signature := resp.Signature
	if signature == "" {
		landed, err := solana.TransactionFromDecoder(bin.NewBinDecoder(signed))
		if err != nil || len(landed.Signatures) == 0 {
			return "", fmt.Errorf("%w: execute returned no signature", domain.ErrSubmission)
		}
		signature = landed.Signatures[0].String()
	}

	snap := s.snapshot(r)
	snap.Signature = signature
	s.record(ctx, snap, domain.StageSubmit, domain.OutcomeOK, "", start)
	return signature, nil
}

// awaitFinality waits for the confirmer's verdict. Running out of the
// retry budget leaves the attempt Indeterminate, not Failed.
func (s *Session) awaitFinality(ctx context.Context, r *run, signature string, lastValidBlockHeight uint64) {
	start := time.Now()
	res, err := s.o.confirmer.Confirm(ctx, signature, lastValidBlockHeight)
	switch {
	case err != nil:
		s.indeterminate(ctx, r, err.Error(), start)
	case res.Outcome == confirm.OutcomeConfirmed:
		owner := s.adapter.Session().PublicKey
		settlement := confirm.Settle(ctx, s.o.rpc, signature, owner, s.snapshot(r).Quote)
		s.confirmed(ctx, r, settlement, start)
	case res.Outcome == confirm.OutcomeFailed:
		if res.Expired {
			s.fail(ctx, r, fmt.Errorf("%w: %w: %s", domain.ErrSubmission, domain.ErrBlockhashExpired, res.Reason))
			return
		}
		s.fail(ctx, r, fmt.Errorf("%w: transaction failed on-chain: %s", domain.ErrSubmission, res.Reason))
	default:
		s.indeterminate(ctx, r, "finality not observed within the confirmation window", start)
	}
}

// confirmed ends the attempt as Confirmed and makes the follow-up offer.
// Observing the same confirmation again has no effect.
func (s *Session) confirmed(ctx context.Context, r *run, settlement *domain.Settlement, start time.Time) {
	snap, ok := s.finish(r, domain.StatusConfirmed, "", func(a *domain.SwapAttempt) {
		a.Settlement = settlement
	})
	if !ok {
		s.offerFollowUp(snap)
		return
	}
	s.record(ctx, snap, domain.StageConfirm, domain.OutcomeOK, "", start)
	s.logger.Info("swap confirmed",
		zap.String("attempt_id", snap.ID),
		zap.String("signature", snap.Signature),
		zap.String("settlement", settlement.Source))
	s.conversation.Assistant(confirmedText(snap), snap.ID)
	s.offerFollowUp(snap)
}

func (s *Session) indeterminate(ctx context.Context, r *run, reason string, start time.Time) {
	snap, ok := s.finish(r, domain.StatusIndeterminate, reason, nil)
	if !ok {
		return
	}
	s.record(ctx, snap, domain.StageConfirm, domain.OutcomeIndeterminate, "", start)
	s.logger.Warn("swap finality unknown",
		zap.String("attempt_id", snap.ID),
		zap.String("signature", snap.Signature),
		zap.String("reason", reason))
	s.conversation.Assistant(indeterminateText(snap), snap.ID)
}

// markSubmitStage attributes a combined sign-and-send failure to the
// submit stage when the wallet signed but the network refused.
func (s *Session) markSubmitStage(r *run, err error) {
	if domain.KindOf(err) == domain.KindSubmission {
		s.setStatus(r, domain.StatusSubmitting, domain.StageSubmit)
	}
}

// record reports a stage outcome to analytics. A zero start records no latency.
func (s *Session) record(ctx context.Context, a domain.SwapAttempt, stage domain.ExecutionStage, outcome, kind string, start time.Time) {
	if s.o.recorder == nil {
		return
	}
	e := &domain.ExecutionEvent{
		AttemptID:  a.ID,
		SessionID:  s.id,
		Stage:      stage,
		Outcome:    outcome,
		ErrorKind:  kind,
		WalletKind: string(s.adapter.Session().WalletKind),
		Signature:  a.Signature,
	}
	if !start.IsZero() {
		e.LatencyMs = uint64(time.Since(start).Milliseconds())
	}
	if q := a.Quote; q != nil {
		e.Source = q.PoolRef.Source
		e.InputMint = q.InputToken.Mint
		e.OutputMint = q.OutputToken.Mint
		e.InputAmountRaw = q.InputAmountRaw
		e.OutputAmountRaw = q.OutputAmountRaw
	}
	if a.Settlement != nil {
		e.InputAmountRaw = a.Settlement.InputRaw
		e.OutputAmountRaw = a.Settlement.OutputRaw
	}
	if a.UnsignedTx != nil {
		e.Strategy = string(a.UnsignedTx.Strategy)
	}
	s.o.recorder.Record(ctx, e)
}

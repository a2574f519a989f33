package confirm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"solana-swap-assistant/internal/domain"
	sol "solana-swap-assistant/internal/solana"
	"solana-swap-assistant/internal/solana/stub"
	"solana-swap-assistant/internal/tokens"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, Interval: time.Millisecond, Backoff: 1.5, MaxInterval: 2 * time.Millisecond}
}

func TestRetryPolicy_Delays(t *testing.T) {
	p := DefaultRetryPolicy()
	want := []time.Duration{2 * time.Second, 3 * time.Second, 4500 * time.Millisecond, 5 * time.Second, 5 * time.Second}
	for i, d := range want {
		assert.Equal(t, d, p.Delay(i), "attempt %d", i)
	}
	// 2 + 3 + 4.5 + 6 x 5
	assert.Equal(t, 39500*time.Millisecond, p.Budget())
}

func TestRetryPolicy_ZeroValueUsesDefaults(t *testing.T) {
	var p RetryPolicy
	assert.Equal(t, DefaultInterval, p.Delay(0))
	assert.Equal(t, DefaultRetryPolicy().Budget(), p.Budget())
}

func TestRetryPolicy_Do(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func(int) (bool, error) {
		calls++
		return false, nil
	})
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 3, calls)

	boom := errors.New("boom")
	err = fastPolicy(3).Do(context.Background(), func(int) (bool, error) { return false, boom })
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = RetryPolicy{MaxAttempts: 3, Interval: time.Hour}.Do(ctx, func(int) (bool, error) { return false, nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPoller_Confirmed(t *testing.T) {
	client := stub.NewRPCClient()
	client.SetStatus("sig1", &sol.SignatureStatus{Slot: 42, ConfirmationStatus: rpc.ConfirmationStatusConfirmed})
	client.StatusDelay["sig1"] = 2

	p := NewPoller(client, fastPolicy(5), zaptest.NewLogger(t))
	res, err := p.Confirm(context.Background(), "sig1", 0)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.Equal(t, uint64(42), res.Slot)
	assert.Equal(t, 3, client.Calls("getSignatureStatuses"))
}

func TestPoller_ProcessedIsNotEnough(t *testing.T) {
	client := stub.NewRPCClient()
	client.SetStatus("sig1", &sol.SignatureStatus{Slot: 42, ConfirmationStatus: rpc.ConfirmationStatusProcessed})

	res, err := NewPoller(client, fastPolicy(3), zaptest.NewLogger(t)).Confirm(context.Background(), "sig1", 0)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIndeterminate, res.Outcome)
}

func TestPoller_OnChainFailure(t *testing.T) {
	client := stub.NewRPCClient()
	client.SetStatus("sig1", &sol.SignatureStatus{
		Slot:               42,
		Err:                map[string]interface{}{"InstructionError": []interface{}{2, map[string]interface{}{"Custom": 6005}}},
		ConfirmationStatus: rpc.ConfirmationStatusConfirmed,
	})

	res, err := NewPoller(client, fastPolicy(3), zaptest.NewLogger(t)).Confirm(context.Background(), "sig1", 0)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Contains(t, res.Reason, "6005")
	assert.False(t, res.Expired)
}

func TestPoller_Exhaustion(t *testing.T) {
	client := stub.NewRPCClient()
	client.Errors["getSignatureStatuses"] = errors.New("connection reset")

	res, err := NewPoller(client, fastPolicy(4), zaptest.NewLogger(t)).Confirm(context.Background(), "sig1", 0)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIndeterminate, res.Outcome)
	assert.Equal(t, 4, client.Calls("getSignatureStatuses"))
}

func TestPoller_BlockHeightExceeded(t *testing.T) {
	client := stub.NewRPCClient()
	client.BlockHeight = 1001

	res, err := NewPoller(client, fastPolicy(5), zaptest.NewLogger(t)).Confirm(context.Background(), "sig1", 1000)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.True(t, res.Expired)
	assert.True(t, domain.MentionsBlockhash(res.Reason))
	assert.Equal(t, 1, client.Calls("getSignatureStatuses"))
}

func TestPoller_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewPoller(stub.NewRPCClient(), RetryPolicy{MaxAttempts: 5, Interval: time.Hour}, zaptest.NewLogger(t))
	_, err := p.Confirm(ctx, "sig1", 0)
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeWS struct {
	err   error
	notif *sol.SignatureNotification
	close bool // close the channel without a notification
}

func (f *fakeWS) SubscribeSignature(ctx context.Context, signature string, _ rpc.CommitmentType) (<-chan sol.SignatureNotification, error) {
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan sol.SignatureNotification, 1)
	switch {
	case f.notif != nil:
		ch <- *f.notif
		close(ch)
	case f.close:
		close(ch)
	default:
		go func() {
			<-ctx.Done()
			close(ch)
		}()
	}
	return ch, nil
}

func (f *fakeWS) Close() error { return nil }

func TestWSConfirmer(t *testing.T) {
	// Long enough that the subscription budget never races the notification.
	slow := RetryPolicy{MaxAttempts: 3, Interval: time.Second}

	t.Run("notification", func(t *testing.T) {
		client := stub.NewRPCClient()
		ws := &fakeWS{notif: &sol.SignatureNotification{Signature: "sig1", Slot: 7}}
		c := NewWSConfirmer(ws, NewPoller(client, slow, nil), zaptest.NewLogger(t))

		res, err := c.Confirm(context.Background(), "sig1", 0)
		require.NoError(t, err)
		assert.Equal(t, OutcomeConfirmed, res.Outcome)
		assert.Equal(t, MethodWS, res.Method)
		assert.Equal(t, 0, client.Calls("getSignatureStatuses"))
	})

	t.Run("failed notification", func(t *testing.T) {
		ws := &fakeWS{notif: &sol.SignatureNotification{Signature: "sig1", Slot: 7, Err: "custom program error: 0x1771"}}
		c := NewWSConfirmer(ws, NewPoller(stub.NewRPCClient(), slow, nil), zaptest.NewLogger(t))

		res, err := c.Confirm(context.Background(), "sig1", 0)
		require.NoError(t, err)
		assert.Equal(t, OutcomeFailed, res.Outcome)
		assert.Contains(t, res.Reason, "0x1771")
	})

	t.Run("subscribe error falls back to polling", func(t *testing.T) {
		client := stub.NewRPCClient()
		client.SetStatus("sig1", &sol.SignatureStatus{Slot: 9, ConfirmationStatus: rpc.ConfirmationStatusFinalized})
		c := NewWSConfirmer(&fakeWS{err: errors.New("dial")}, NewPoller(client, fastPolicy(3), nil), zaptest.NewLogger(t))

		res, err := c.Confirm(context.Background(), "sig1", 0)
		require.NoError(t, err)
		assert.Equal(t, OutcomeConfirmed, res.Outcome)
		assert.Equal(t, MethodPoll, res.Method)
	})

	t.Run("dropped subscription falls back to polling", func(t *testing.T) {
		client := stub.NewRPCClient()
		client.SetStatus("sig1", &sol.SignatureStatus{Slot: 9, ConfirmationStatus: rpc.ConfirmationStatusConfirmed})
		c := NewWSConfirmer(&fakeWS{close: true}, NewPoller(client, slow, nil), zaptest.NewLogger(t))

		res, err := c.Confirm(context.Background(), "sig1", 0)
		require.NoError(t, err)
		assert.Equal(t, OutcomeConfirmed, res.Outcome)
	})

	t.Run("silent subscription is indeterminate", func(t *testing.T) {
		client := stub.NewRPCClient()
		c := NewWSConfirmer(&fakeWS{}, NewPoller(client, fastPolicy(3), nil), zaptest.NewLogger(t))

		res, err := c.Confirm(context.Background(), "sig1", 0)
		require.NoError(t, err)
		assert.Equal(t, OutcomeIndeterminate, res.Outcome)
		assert.Equal(t, 1, client.Calls("getSignatureStatuses"))
	})
}

func settledSwap(t *testing.T, owner solana.PublicKey) *sol.Transaction {
	t.Helper()
	ix := solana.NewInstruction(solana.SystemProgramID, solana.AccountMetaSlice{
		{PublicKey: owner, IsSigner: true, IsWritable: true},
	}, []byte{0})
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, stub.DefaultBlockhash, solana.TransactionPayer(owner))
	require.NoError(t, err)
	tx.Signatures = make([]solana.Signature, 1)
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)

	return &sol.Transaction{
		Signature: "sig1",
		Raw:       raw,
		Meta: &sol.TransactionMeta{
			Fee:          5000,
			PreBalances:  []uint64{5_000_000_000, 1},
			PostBalances: []uint64{3_999_995_000, 1},
			PreTokenBalances: []sol.TokenBalance{
				{Mint: tokens.USDCMint, Owner: owner.String(), Amount: "10000000"},
			},
			PostTokenBalances: []sol.TokenBalance{
				{Mint: tokens.USDCMint, Owner: owner.String(), Amount: "158000000"},
				{Mint: tokens.USDCMint, Owner: "pool", Amount: "1"},
			},
		},
	}
}

func TestSettle(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	q := &domain.Quote{
		InputToken:      tokens.SOL(),
		OutputToken:     domain.Token{Symbol: "USDC", Mint: tokens.USDCMint, Decimals: 6},
		InputAmountRaw:  1_000_000_000,
		OutputAmountRaw: 150_000_000,
	}

	client := stub.NewRPCClient()
	client.AddTransaction(settledSwap(t, owner))

	s := Settle(context.Background(), client, "sig1", owner.String(), q)
	assert.Equal(t, domain.SettlementFromChain, s.Source)
	assert.Equal(t, uint64(1_000_000_000), s.InputRaw)
	assert.Equal(t, uint64(148_000_000), s.OutputRaw)
}

func TestSettle_CreatedTokenAccountRent(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	q := &domain.Quote{
		InputToken:      tokens.SOL(),
		OutputToken:     domain.Token{Symbol: "USDC", Mint: tokens.USDCMint, Decimals: 6},
		InputAmountRaw:  1_000_000_000,
		OutputAmountRaw: 150_000_000,
	}

	// First buy: the output account is opened in the same transaction.
	tx := settledSwap(t, owner)
	tx.Meta.PreBalances = []uint64{5_000_000_000, 0}
	tx.Meta.PostBalances = []uint64{3_997_955_720, 2_039_280}
	tx.Meta.PreTokenBalances = nil
	tx.Meta.PostTokenBalances = []sol.TokenBalance{
		{AccountIndex: 1, Mint: tokens.USDCMint, Owner: owner.String(), Amount: "148000000"},
	}

	client := stub.NewRPCClient()
	client.AddTransaction(tx)

	s := Settle(context.Background(), client, "sig1", owner.String(), q)
	assert.Equal(t, domain.SettlementFromChain, s.Source)
	assert.Equal(t, uint64(1_000_000_000), s.InputRaw)
	assert.Equal(t, uint64(148_000_000), s.OutputRaw)
}

func TestSettle_FallsBackToQuote(t *testing.T) {
	q := &domain.Quote{
		InputToken:      tokens.SOL(),
		OutputToken:     domain.Token{Symbol: "USDC", Mint: tokens.USDCMint, Decimals: 6},
		InputAmountRaw:  1_000_000_000,
		OutputAmountRaw: 150_000_000,
	}

	s := Settle(context.Background(), stub.NewRPCClient(), "missing", "owner", q)
	assert.Equal(t, domain.SettlementFromQuote, s.Source)
	assert.Equal(t, uint64(150_000_000), s.OutputRaw)

	// A landed transaction paid by someone else cannot be read for the SOL side.
	client := stub.NewRPCClient()
	client.AddTransaction(settledSwap(t, solana.NewWallet().PublicKey()))
	s = Settle(context.Background(), client, "sig1", solana.NewWallet().PublicKey().String(), q)
	assert.Equal(t, domain.SettlementFromQuote, s.Source)
}

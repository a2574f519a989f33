package txbuilder

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/jupiter"
	"solana-swap-assistant/internal/raydium"
)

// ErrNoSwapInstruction is returned when a transaction carries no known swap instruction.
var ErrNoSwapInstruction = errors.New("no swap instruction")

// SwapAmounts are the amounts encoded in a transaction's swap instruction.
type SwapAmounts struct {
	Strategy domain.BuildStrategy
	Mode     domain.FixingMode

	// FixedAmount is the exact side: input for exact-input swaps, output otherwise.
	FixedAmount uint64

	// CounterAmount is the quoted counter amount for aggregator routes and
	// the slippage bound for pool swaps.
	CounterAmount uint64

	// SlippageBps is encoded by aggregator routes only.
	SlippageBps uint16

	// Accounts are the swap instruction's account references, resolved
	// through the message's static keys and lookup tables.
	Accounts []string
	Data     []byte
}

// DecodeSwapAmounts extracts the swap amounts from the first aggregator
// route or CPMM swap instruction in tx.
func DecodeSwapAmounts(tx *solana.Transaction) (*SwapAmounts, error) {
	if tx == nil {
		return nil, ErrNoSwapInstruction
	}
	keys := tx.Message.AccountKeys
	for _, ix := range tx.Message.Instructions {
		if int(ix.ProgramIDIndex) >= len(keys) {
			return nil, fmt.Errorf("program index %d out of range", ix.ProgramIDIndex)
		}
		program := keys[ix.ProgramIDIndex]

		var amounts *SwapAmounts
		switch {
		case program.Equals(jupiter.ProgramID) && jupiter.IsRouteInstruction(ix.Data):
			args, err := jupiter.ParseRouteArgs(ix.Data)
			if err != nil {
				return nil, err
			}
			amounts = &SwapAmounts{
				Strategy:      domain.BuildStrategyAggregator,
				Mode:          modeOf(args.ExactOut),
				FixedAmount:   args.FixedAmount,
				CounterAmount: args.QuotedAmount,
				SlippageBps:   args.SlippageBps,
			}
		case program.Equals(raydium.ProgramID):
			args, ok, err := raydium.DecodeSwapInstruction(ix.Data)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			amounts = &SwapAmounts{
				Strategy:      domain.BuildStrategyPool,
				Mode:          modeOf(args.BaseOutput),
				FixedAmount:   args.Amount,
				CounterAmount: args.Threshold,
			}
		default:
			continue
		}

		amounts.Data = append([]byte(nil), ix.Data...)
		amounts.Accounts = resolveAccounts(&tx.Message, ix.Accounts)
		return amounts, nil
	}
	return nil, ErrNoSwapInstruction
}

func modeOf(exactOut bool) domain.FixingMode {
	if exactOut {
		return domain.ExactOutput
	}
	return domain.ExactInput
}

// resolveAccounts names each account index. Indexes past the static keys
// refer to lookup table entries, writable ones first.
func resolveAccounts(msg *solana.Message, indexes []uint16) []string {
	var loaded []string
	for _, l := range msg.AddressTableLookups {
		for _, i := range l.WritableIndexes {
			loaded = append(loaded, fmt.Sprintf("%s#%d", l.AccountKey, i))
		}
	}
	for _, l := range msg.AddressTableLookups {
		for _, i := range l.ReadonlyIndexes {
			loaded = append(loaded, fmt.Sprintf("%s#%d", l.AccountKey, i))
		}
	}

	out := make([]string, len(indexes))
	for n, idx := range indexes {
		i := int(idx)
		switch {
		case i < len(msg.AccountKeys):
			out[n] = msg.AccountKeys[i].String()
		case i-len(msg.AccountKeys) < len(loaded):
			out[n] = loaded[i-len(msg.AccountKeys)]
		default:
			out[n] = fmt.Sprintf("?%d", i)
		}
	}
	return out
}

// CheckAmounts verifies that the encoded amounts match the quote bit for bit.
func CheckAmounts(q *domain.Quote, a *SwapAmounts) error {
	if a.Mode != q.FixingMode {
		return fmt.Errorf("%w: transaction is %s, quote is %s", domain.ErrBuild, a.Mode, q.FixingMode)
	}
	if a.FixedAmount != q.FixedAmountRaw() {
		return fmt.Errorf("%w: fixed amount %d differs from quoted %d", domain.ErrBuild, a.FixedAmount, q.FixedAmountRaw())
	}

	switch a.Strategy {
	case domain.BuildStrategyAggregator:
		counter := q.OutputAmountRaw
		if q.FixingMode == domain.ExactOutput {
			counter = q.InputAmountRaw
		}
		if a.CounterAmount != counter {
			return fmt.Errorf("%w: quoted counter amount %d differs from %d", domain.ErrBuild, a.CounterAmount, counter)
		}
		if a.SlippageBps != q.SlippageBps {
			return fmt.Errorf("%w: slippage %d bps differs from %d", domain.ErrBuild, a.SlippageBps, q.SlippageBps)
		}
	case domain.BuildStrategyPool:
		if a.CounterAmount != q.OtherAmountThreshold {
			return fmt.Errorf("%w: slippage bound %d differs from %d", domain.ErrBuild, a.CounterAmount, q.OtherAmountThreshold)
		}
	}
	return nil
}

// SameSwap reports an error unless both transactions encode the same swap:
// same amounts and same accounts, mints included.
func SameSwap(built, landed *solana.Transaction) error {
	want, err := DecodeSwapAmounts(built)
	if err != nil {
		return fmt.Errorf("decode built transaction: %w", err)
	}
	got, err := DecodeSwapAmounts(landed)
	if err != nil {
		return fmt.Errorf("decode landed transaction: %w", err)
	}
	if want.Strategy != got.Strategy || want.Mode != got.Mode ||
		want.FixedAmount != got.FixedAmount || want.CounterAmount != got.CounterAmount ||
		want.SlippageBps != got.SlippageBps || string(want.Data) != string(got.Data) {
		return fmt.Errorf("swap amounts differ: built %d/%d, landed %d/%d",
			want.FixedAmount, want.CounterAmount, got.FixedAmount, got.CounterAmount)
	}
	if len(want.Accounts) != len(got.Accounts) {
		return fmt.Errorf("swap accounts differ: %d vs %d", len(want.Accounts), len(got.Accounts))
	}
	for i := range want.Accounts {
		if want.Accounts[i] != got.Accounts[i] {
			return fmt.Errorf("swap account %d differs: %s vs %s", i, want.Accounts[i], got.Accounts[i])
		}
	}
	return nil
}

package raydium

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
)

// SwapAccounts lists the accounts of a CPMM swap, in program order after the payer.
type SwapAccounts struct {
	Payer         solana.PublicKey
	Authority     solana.PublicKey
	AmmConfig     solana.PublicKey
	Pool          solana.PublicKey
	InputAccount  solana.PublicKey
	OutputAccount solana.PublicKey
	InputVault    solana.PublicKey
	OutputVault   solana.PublicKey
	InputProgram  solana.PublicKey
	OutputProgram solana.PublicKey
	InputMint     solana.PublicKey
	OutputMint    solana.PublicKey
	Observation   solana.PublicKey
}

func (a SwapAccounts) metas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		{PublicKey: a.Payer, IsSigner: true, IsWritable: false},
		{PublicKey: a.Authority},
		{PublicKey: a.AmmConfig},
		{PublicKey: a.Pool, IsWritable: true},
		{PublicKey: a.InputAccount, IsWritable: true},
		{PublicKey: a.OutputAccount, IsWritable: true},
		{PublicKey: a.InputVault, IsWritable: true},
		{PublicKey: a.OutputVault, IsWritable: true},
		{PublicKey: a.InputProgram},
		{PublicKey: a.OutputProgram},
		{PublicKey: a.InputMint},
		{PublicKey: a.OutputMint},
		{PublicKey: a.Observation, IsWritable: true},
	}
}

// SwapArgs are the amounts encoded in a CPMM swap instruction.
// For base-input swaps Amount is the exact input and Threshold the
// minimum output; for base-output swaps Amount is the exact output and
// Threshold the maximum input.
type SwapArgs struct {
	BaseOutput bool
	Amount     uint64
	Threshold  uint64
}

// NewSwapBaseInputInstruction swaps exactly amountIn for at least minAmountOut.
func NewSwapBaseInputInstruction(amountIn, minAmountOut uint64, accounts SwapAccounts) (solana.Instruction, error) {
	data, err := encodeSwap(swapBaseInputDiscriminator, amountIn, minAmountOut)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(ProgramID, accounts.metas(), data), nil
}

// NewSwapBaseOutputInstruction swaps at most maxAmountIn for exactly amountOut.
func NewSwapBaseOutputInstruction(maxAmountIn, amountOut uint64, accounts SwapAccounts) (solana.Instruction, error) {
	data, err := encodeSwap(swapBaseOutputDiscriminator, maxAmountIn, amountOut)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(ProgramID, accounts.metas(), data), nil
}

func encodeSwap(discriminator []byte, first, second uint64) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteBytes(discriminator, false); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(first, bin.LE); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(second, bin.LE); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeSwapInstruction extracts the amounts of a CPMM swap instruction.
// Returns false if data is not a swap instruction.
func DecodeSwapInstruction(data []byte) (SwapArgs, bool, error) {
	if len(data) < 8 {
		return SwapArgs{}, false, nil
	}
	var args SwapArgs
	switch {
	case bytes.Equal(data[:8], swapBaseInputDiscriminator):
	case bytes.Equal(data[:8], swapBaseOutputDiscriminator):
		args.BaseOutput = true
	default:
		return SwapArgs{}, false, nil
	}

	dec := bin.NewBorshDecoder(data[8:])
	first, err := dec.ReadUint64(bin.LE)
	if err != nil {
		return SwapArgs{}, true, fmt.Errorf("decode swap amount: %w", err)
	}
	second, err := dec.ReadUint64(bin.LE)
	if err != nil {
		return SwapArgs{}, true, fmt.Errorf("decode swap threshold: %w", err)
	}

	if args.BaseOutput {
		args.Threshold, args.Amount = first, second
	} else {
		args.Amount, args.Threshold = first, second
	}
	return args, true, nil
}

// NewCreateATAIdempotentInstruction creates owner's associated token
// account for mint unless it already exists.
func NewCreateATAIdempotentInstruction(payer, ata, owner, mint, tokenProgram solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(AssociatedTokenProgramID, solana.AccountMetaSlice{
		{PublicKey: payer, IsSigner: true, IsWritable: true},
		{PublicKey: ata, IsWritable: true},
		{PublicKey: owner},
		{PublicKey: mint},
		{PublicKey: SystemProgramID},
		{PublicKey: tokenProgram},
	}, []byte{1})
}

// WrapSOLInstructions funds a wrapped SOL account with lamports and syncs its balance.
func WrapSOLInstructions(owner, wsolAccount solana.PublicKey, lamports uint64) []solana.Instruction {
	return []solana.Instruction{
		system.NewTransferInstruction(lamports, owner, wsolAccount).Build(),
		token.NewSyncNativeInstruction(wsolAccount).Build(),
	}
}

// UnwrapSOLInstruction closes a wrapped SOL account, returning lamports to owner.
func UnwrapSOLInstruction(owner, wsolAccount solana.PublicKey) solana.Instruction {
	return token.NewCloseAccountInstruction(wsolAccount, owner, owner, nil).Build()
}

package raydium

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"solana-swap-assistant/internal/domain"
	sol "solana-swap-assistant/internal/solana"
)

// Pool is a snapshot of a CPMM pool with tradable reserves.
type Pool struct {
	Address  solana.PublicKey
	State    *PoolState
	Config   *AmmConfig
	Reserve0 uint64
	Reserve1 uint64
}

// Leg is a pool oriented for one swap direction.
type Leg struct {
	InputMint      solana.PublicKey
	OutputMint     solana.PublicKey
	InputVault     solana.PublicKey
	OutputVault    solana.PublicKey
	InputProgram   solana.PublicKey
	OutputProgram  solana.PublicKey
	InputDecimals  uint8
	OutputDecimals uint8
	ReserveIn      uint64
	ReserveOut     uint64
}

// Orient returns the pool seen from inputMint to outputMint.
func (p *Pool) Orient(inputMint, outputMint solana.PublicKey) (Leg, error) {
	s := p.State
	switch {
	case inputMint.Equals(s.Token0Mint) && outputMint.Equals(s.Token1Mint):
		return Leg{
			InputMint: s.Token0Mint, OutputMint: s.Token1Mint,
			InputVault: s.Token0Vault, OutputVault: s.Token1Vault,
			InputProgram: s.Token0Program, OutputProgram: s.Token1Program,
			InputDecimals: s.Mint0Decimals, OutputDecimals: s.Mint1Decimals,
			ReserveIn: p.Reserve0, ReserveOut: p.Reserve1,
		}, nil
	case inputMint.Equals(s.Token1Mint) && outputMint.Equals(s.Token0Mint):
		return Leg{
			InputMint: s.Token1Mint, OutputMint: s.Token0Mint,
			InputVault: s.Token1Vault, OutputVault: s.Token0Vault,
			InputProgram: s.Token1Program, OutputProgram: s.Token0Program,
			InputDecimals: s.Mint1Decimals, OutputDecimals: s.Mint0Decimals,
			ReserveIn: p.Reserve1, ReserveOut: p.Reserve0,
		}, nil
	}
	return Leg{}, fmt.Errorf("%w: pool %s does not trade %s -> %s",
		domain.ErrNoRouteFound, p.Address, inputMint, outputMint)
}

// QuoteExactIn returns the output for spending amountIn.
func (p *Pool) QuoteExactIn(leg Leg, amountIn uint64) (uint64, error) {
	out, _, err := SwapBaseInput(amountIn, leg.ReserveIn, leg.ReserveOut, p.Config.TradeFeeRate)
	return out, err
}

// QuoteExactOut returns the input needed to receive amountOut.
func (p *Pool) QuoteExactOut(leg Leg, amountOut uint64) (uint64, error) {
	in, _, err := SwapBaseOutput(amountOut, leg.ReserveIn, leg.ReserveOut, p.Config.TradeFeeRate)
	return in, err
}

// SwapAccounts assembles the instruction accounts for a swap along leg.
func (p *Pool) SwapAccounts(leg Leg, payer, inputAccount, outputAccount solana.PublicKey) (SwapAccounts, error) {
	authority, err := AuthorityAddress()
	if err != nil {
		return SwapAccounts{}, fmt.Errorf("derive authority: %w", err)
	}
	return SwapAccounts{
		Payer:         payer,
		Authority:     authority,
		AmmConfig:     p.State.AmmConfig,
		Pool:          p.Address,
		InputAccount:  inputAccount,
		OutputAccount: outputAccount,
		InputVault:    leg.InputVault,
		OutputVault:   leg.OutputVault,
		InputProgram:  leg.InputProgram,
		OutputProgram: leg.OutputProgram,
		InputMint:     leg.InputMint,
		OutputMint:    leg.OutputMint,
		Observation:   p.State.ObservationKey,
	}, nil
}

// Loader reads pool snapshots from chain.
type Loader struct {
	rpc sol.RPCClient
}

// NewLoader creates a pool loader.
func NewLoader(rpc sol.RPCClient) *Loader {
	return &Loader{rpc: rpc}
}

// Load reads the pool, its fee config and both vault balances.
func (l *Loader) Load(ctx context.Context, address solana.PublicKey) (*Pool, error) {
	stateData, err := l.account(ctx, address)
	if err != nil {
		return nil, err
	}
	state, err := DecodePoolState(stateData)
	if err != nil {
		return nil, fmt.Errorf("%w: pool %s: %v", domain.ErrNoRouteFound, address, err)
	}
	if !state.SwapEnabled() {
		return nil, fmt.Errorf("%w: pool %s has swaps disabled", domain.ErrNoRouteFound, address)
	}

	configData, err := l.account(ctx, state.AmmConfig)
	if err != nil {
		return nil, err
	}
	config, err := DecodeAmmConfig(configData)
	if err != nil {
		return nil, fmt.Errorf("%w: amm config %s: %v", domain.ErrUpstream, state.AmmConfig, err)
	}

	vault0, err := l.rpc.GetTokenAccountBalance(ctx, state.Token0Vault.String())
	if err != nil {
		return nil, fmt.Errorf("%w: vault %s balance: %v", domain.ErrUpstream, state.Token0Vault, err)
	}
	vault1, err := l.rpc.GetTokenAccountBalance(ctx, state.Token1Vault.String())
	if err != nil {
		return nil, fmt.Errorf("%w: vault %s balance: %v", domain.ErrUpstream, state.Token1Vault, err)
	}

	r0, r1, err := state.Reserves(vault0, vault1)
	if err != nil {
		return nil, fmt.Errorf("%w: pool %s: %v", domain.ErrUpstream, address, err)
	}

	return &Pool{
		Address:  address,
		State:    state,
		Config:   config,
		Reserve0: r0,
		Reserve1: r1,
	}, nil
}

func (l *Loader) account(ctx context.Context, address solana.PublicKey) ([]byte, error) {
	info, err := l.rpc.GetAccountInfo(ctx, address.String())
	if err != nil {
		return nil, fmt.Errorf("%w: account %s: %v", domain.ErrUpstream, address, err)
	}
	if info == nil {
		return nil, fmt.Errorf("%w: account %s not found", domain.ErrNoRouteFound, address)
	}
	data, err := info.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: account %s data: %v", domain.ErrUpstream, address, err)
	}
	return data, nil
}

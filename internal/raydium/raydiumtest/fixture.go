// Package raydiumtest installs CPMM pool fixtures into a stub RPC client.
package raydiumtest

import (
	"encoding/base64"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"solana-swap-assistant/internal/raydium"
	sol "solana-swap-assistant/internal/solana"
	"solana-swap-assistant/internal/solana/stub"
)

// Fixture describes a pool in human-chosen terms.
type Fixture struct {
	Address      solana.PublicKey
	Mint0        solana.PublicKey
	Mint1        solana.PublicKey
	Decimals0    uint8
	Decimals1    uint8
	Vault0       uint64 // raw vault balance including fees
	Vault1       uint64
	TradeFeeRate uint64
	Status       uint8
}

// Accounts returned by Install.
type Accounts struct {
	Address solana.PublicKey
	State   *raydium.PoolState
	Config  *raydium.AmmConfig
}

// Install writes the pool, config and vault balances into rpc.
func Install(rpc *stub.RPCClient, f Fixture) (*Accounts, error) {
	if f.Address.IsZero() {
		f.Address = solana.NewWallet().PublicKey()
	}
	state := &raydium.PoolState{
		AmmConfig:      solana.NewWallet().PublicKey(),
		PoolCreator:    solana.NewWallet().PublicKey(),
		Token0Vault:    solana.NewWallet().PublicKey(),
		Token1Vault:    solana.NewWallet().PublicKey(),
		LPMint:         solana.NewWallet().PublicKey(),
		Token0Mint:     f.Mint0,
		Token1Mint:     f.Mint1,
		Token0Program:  raydium.TokenProgramID,
		Token1Program:  raydium.TokenProgramID,
		ObservationKey: solana.NewWallet().PublicKey(),
		Status:         f.Status,
		LPMintDecimals: 9,
		Mint0Decimals:  f.Decimals0,
		Mint1Decimals:  f.Decimals1,
	}
	config := &raydium.AmmConfig{TradeFeeRate: f.TradeFeeRate}

	stateData, err := state.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode pool state: %w", err)
	}
	configData, err := config.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode amm config: %w", err)
	}

	rpc.AddAccount(f.Address.String(), account(stateData))
	rpc.AddAccount(state.AmmConfig.String(), account(configData))
	rpc.SetTokenBalance(state.Token0Vault.String(), f.Vault0)
	rpc.SetTokenBalance(state.Token1Vault.String(), f.Vault1)
	return &Accounts{Address: f.Address, State: state, Config: config}, nil
}

func account(data []byte) *sol.AccountInfo {
	return &sol.AccountInfo{
		Lamports: 1_000_000,
		Owner:    raydium.ProgramID.String(),
		Data:     base64.StdEncoding.EncodeToString(data),
	}
}

// Package raydium quotes and assembles swaps against Raydium CPMM
// (constant product) pools directly from on-chain state.
package raydium

import "github.com/gagliardetto/solana-go"

// Program and well-known account addresses.
var (
	ProgramID = solana.MustPublicKeyFromBase58("CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C")

	TokenProgramID           = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	Token2022ProgramID       = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
	AssociatedTokenProgramID = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	SystemProgramID          = solana.MustPublicKeyFromBase58("11111111111111111111111111111111")
	WrappedSOLMint           = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
)

// Anchor discriminators.
var (
	poolStateDiscriminator = []byte{247, 237, 227, 245, 215, 195, 222, 70}
	ammConfigDiscriminator = []byte{218, 244, 33, 104, 203, 203, 43, 111}

	swapBaseInputDiscriminator  = []byte{143, 190, 90, 218, 196, 30, 51, 222}
	swapBaseOutputDiscriminator = []byte{55, 217, 98, 86, 163, 74, 180, 173}
)

// AuthoritySeed derives the vault and LP mint authority PDA.
const AuthoritySeed = "vault_and_lp_mint_auth_seed"

// FeeRateDenominator is the fixed-point base of AmmConfig fee rates.
const FeeRateDenominator = 1_000_000

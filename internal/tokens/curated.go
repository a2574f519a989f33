package tokens

import "solana-swap-assistant/internal/domain"

// Well-known mainnet mints.
const (
	SOLMint     = "So11111111111111111111111111111111111111112" // wrapped SOL
	USDCMint    = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	USDTMint    = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
	JUPMint     = "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"
	BONKMint    = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	WIFMint     = "EKpQGSJtjMFqKZ9KQanSqYXRcF8fBopzLHYxdM65zcjm"
	RAYMint     = "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"
	MSOLMint    = "mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So"
	JITOSOLMint = "J1toso1uCk3RLmjorhTtrVwY9HJ7X8V9yYac6Y7kGCPn"
)

// Curated returns the high-confidence token table, checked before any other source.
func Curated() []domain.Token {
	return []domain.Token{
		{Symbol: "SOL", Name: "Solana", Mint: SOLMint, Decimals: 9},
		{Symbol: "USDC", Name: "USD Coin", Mint: USDCMint, Decimals: 6},
		{Symbol: "USDT", Name: "Tether USD", Mint: USDTMint, Decimals: 6},
		{Symbol: "JUP", Name: "Jupiter", Mint: JUPMint, Decimals: 6},
		{Symbol: "BONK", Name: "Bonk", Mint: BONKMint, Decimals: 5},
		{Symbol: "WIF", Name: "dogwifhat", Mint: WIFMint, Decimals: 6},
		{Symbol: "RAY", Name: "Raydium", Mint: RAYMint, Decimals: 6},
		{Symbol: "MSOL", Name: "Marinade staked SOL", Mint: MSOLMint, Decimals: 9},
		{Symbol: "JITOSOL", Name: "Jito Staked SOL", Mint: JITOSOLMint, Decimals: 9},
	}
}

// SOL returns the native SOL descriptor.
func SOL() domain.Token {
	return domain.Token{Symbol: "SOL", Name: "Solana", Mint: SOLMint, Decimals: 9}
}

package raydium_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/raydium"
	"solana-swap-assistant/internal/raydium/raydiumtest"
	"solana-swap-assistant/internal/solana/stub"
)

var usdcMint = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

func TestLoader_Load(t *testing.T) {
	rpc := stub.NewRPCClient()
	accounts, err := raydiumtest.Install(rpc, raydiumtest.Fixture{
		Mint0:        raydium.WrappedSOLMint,
		Mint1:        usdcMint,
		Decimals0:    9,
		Decimals1:    6,
		Vault0:       100_000_000_000,
		Vault1:       15_000_000_000,
		TradeFeeRate: 2500,
	})
	require.NoError(t, err)

	pool, err := raydium.NewLoader(rpc).Load(context.Background(), accounts.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000_000_000), pool.Reserve0)
	assert.Equal(t, uint64(2500), pool.Config.TradeFeeRate)

	sell, err := pool.Orient(raydium.WrappedSOLMint, usdcMint)
	require.NoError(t, err)
	out, err := pool.QuoteExactIn(sell, 1_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(148_147_231), out)

	buy, err := pool.Orient(usdcMint, raydium.WrappedSOLMint)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), buy.InputDecimals)
	assert.Equal(t, accounts.State.Token1Vault, buy.InputVault)

	_, err = pool.Orient(usdcMint, usdcMint)
	assert.True(t, errors.Is(err, domain.ErrNoRouteFound))

	payer := solana.NewWallet().PublicKey()
	swapAccounts, err := pool.SwapAccounts(sell, payer, payer, payer)
	require.NoError(t, err)
	authority, err := raydium.AuthorityAddress()
	require.NoError(t, err)
	assert.Equal(t, authority, swapAccounts.Authority)
	assert.Equal(t, accounts.State.ObservationKey, swapAccounts.Observation)
}

func TestLoader_MissingPool(t *testing.T) {
	rpc := stub.NewRPCClient()
	_, err := raydium.NewLoader(rpc).Load(context.Background(), solana.NewWallet().PublicKey())
	assert.True(t, errors.Is(err, domain.ErrNoRouteFound))
}

func TestLoader_SwapDisabled(t *testing.T) {
	rpc := stub.NewRPCClient()
	accounts, err := raydiumtest.Install(rpc, raydiumtest.Fixture{
		Mint0: raydium.WrappedSOLMint, Mint1: usdcMint,
		Decimals0: 9, Decimals1: 6,
		Vault0: 1_000, Vault1: 1_000,
		Status: raydium.StatusDisableSwap,
	})
	require.NoError(t, err)

	_, err = raydium.NewLoader(rpc).Load(context.Background(), accounts.Address)
	assert.True(t, errors.Is(err, domain.ErrNoRouteFound))
}

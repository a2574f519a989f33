package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/storage"
)

func TestTokenCatalogStore_InsertAndGet(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	store := NewTokenCatalogStore(pool)

	token := &domain.Token{
		Symbol:   "pyth",
		Name:     "Pyth Network",
		Mint:     "HZ1JovNiVvGrGNiiYvEozEVgZ58xaU3RKwX8eACQBCt3",
		Decimals: 6,
	}
	require.NoError(t, store.Insert(ctx, token))

	bySymbol, err := store.GetBySymbol(ctx, "PYTH")
	require.NoError(t, err)
	assert.Equal(t, "PYTH", bySymbol.Symbol)
	assert.Equal(t, token.Mint, bySymbol.Mint)
	assert.Equal(t, uint8(6), bySymbol.Decimals)

	byMint, err := store.GetByMint(ctx, token.Mint)
	require.NoError(t, err)
	assert.Equal(t, "Pyth Network", byMint.Name)
}

func TestTokenCatalogStore_InsertDuplicate(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	store := NewTokenCatalogStore(pool)

	require.NoError(t, store.Insert(ctx, &domain.Token{Symbol: "AAA", Name: "A", Mint: "mintA", Decimals: 9}))

	err := store.Insert(ctx, &domain.Token{Symbol: "AAA", Name: "A2", Mint: "mintB", Decimals: 9})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	err = store.Insert(ctx, &domain.Token{Symbol: "BBB", Name: "B", Mint: "mintA", Decimals: 9})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTokenCatalogStore_NotFound(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	store := NewTokenCatalogStore(pool)

	_, err := store.GetBySymbol(ctx, "MISSING")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.GetByMint(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTokenCatalogStore_SearchByName(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	store := NewTokenCatalogStore(pool)

	require.NoError(t, store.Insert(ctx, &domain.Token{Symbol: "WEN", Name: "Wen Doge", Mint: "m1", Decimals: 5}))
	require.NoError(t, store.Insert(ctx, &domain.Token{Symbol: "ADOGE", Name: "Another Doge", Mint: "m2", Decimals: 6}))
	require.NoError(t, store.Insert(ctx, &domain.Token{Symbol: "PCT", Name: "100% Cat", Mint: "m3", Decimals: 6}))

	result, err := store.SearchByName(ctx, "DOGE")
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "ADOGE", result[0].Symbol)
	assert.Equal(t, "WEN", result[1].Symbol)

	// Wildcards in the fragment match literally
	result, err = store.SearchByName(ctx, "%")
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "PCT", result[0].Symbol)
}

package memory

import (
	"context"
	"errors"
	"testing"

	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/storage"
)

func TestTokenCatalogStore_InsertAndGet(t *testing.T) {
	store := NewTokenCatalogStore()
	ctx := context.Background()

	token := &domain.Token{
		Symbol:   "pyth",
		Name:     "Pyth Network",
		Mint:     "HZ1JovNiVvGrGNiiYvEozEVgZ58xaU3RKwX8eACQBCt3",
		Decimals: 6,
	}

	if err := store.Insert(ctx, token); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	bySymbol, err := store.GetBySymbol(ctx, "$Pyth")
	if err != nil {
		t.Fatalf("GetBySymbol failed: %v", err)
	}
	if bySymbol.Symbol != "PYTH" {
		t.Errorf("Symbol not normalized: got %s", bySymbol.Symbol)
	}
	if bySymbol.Decimals != 6 {
		t.Errorf("Decimals mismatch: got %d, want 6", bySymbol.Decimals)
	}

	byMint, err := store.GetByMint(ctx, token.Mint)
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}
	if byMint.Name != "Pyth Network" {
		t.Errorf("Name mismatch: got %s", byMint.Name)
	}

	// Returned values are copies
	byMint.Name = "changed"
	again, _ := store.GetByMint(ctx, token.Mint)
	if again.Name != "Pyth Network" {
		t.Error("store returned a shared pointer")
	}
}

func TestTokenCatalogStore_Duplicate(t *testing.T) {
	store := NewTokenCatalogStore()
	ctx := context.Background()

	if err := store.Insert(ctx, &domain.Token{Symbol: "AAA", Mint: "mint1"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	err := store.Insert(ctx, &domain.Token{Symbol: "aaa", Mint: "mint2"})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey for symbol, got %v", err)
	}

	err = store.Insert(ctx, &domain.Token{Symbol: "BBB", Mint: "mint1"})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey for mint, got %v", err)
	}
}

func TestTokenCatalogStore_NotFoundAndInvalid(t *testing.T) {
	store := NewTokenCatalogStore()
	ctx := context.Background()

	if _, err := store.GetBySymbol(ctx, "NOPE"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetByMint(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.Insert(ctx, &domain.Token{Symbol: "X"}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestTokenCatalogStore_SearchByName(t *testing.T) {
	store := NewTokenCatalogStore()
	ctx := context.Background()

	for _, tok := range []*domain.Token{
		{Symbol: "WEN", Name: "Wen Doge", Mint: "m1"},
		{Symbol: "ADOGE", Name: "Another Doge", Mint: "m2"},
		{Symbol: "CAT", Name: "Cat Coin", Mint: "m3"},
	} {
		if err := store.Insert(ctx, tok); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	result, err := store.SearchByName(ctx, "doge")
	if err != nil {
		t.Fatalf("SearchByName failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 results, got %d", len(result))
	}
	if result[0].Symbol != "ADOGE" || result[1].Symbol != "WEN" {
		t.Errorf("unexpected order: %s, %s", result[0].Symbol, result[1].Symbol)
	}

	empty, _ := store.SearchByName(ctx, "  ")
	if len(empty) != 0 {
		t.Errorf("expected no results for blank fragment, got %d", len(empty))
	}
}

package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/storage"
)

// TokenCatalogStore is an in-memory implementation of storage.TokenCatalogStore.
type TokenCatalogStore struct {
	mu       sync.RWMutex
	bySymbol map[string]*domain.Token // keyed by normalized symbol
	byMint   map[string]*domain.Token
}

// NewTokenCatalogStore creates a new in-memory token catalog.
func NewTokenCatalogStore() *TokenCatalogStore {
	return &TokenCatalogStore{
		bySymbol: make(map[string]*domain.Token),
		byMint:   make(map[string]*domain.Token),
	}
}

// Insert adds a token. Returns ErrDuplicateKey if the symbol or mint already exists.
func (s *TokenCatalogStore) Insert(_ context.Context, t *domain.Token) error {
	if t == nil || t.Mint == "" || t.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	symbol := domain.NormalizeSymbol(t.Symbol)
	if _, exists := s.bySymbol[symbol]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.byMint[t.Mint]; exists {
		return storage.ErrDuplicateKey
	}

	tokenCopy := *t
	tokenCopy.Symbol = symbol
	s.bySymbol[symbol] = &tokenCopy
	s.byMint[t.Mint] = &tokenCopy
	return nil
}

// GetBySymbol retrieves a token by symbol. Returns ErrNotFound if not exists.
func (s *TokenCatalogStore) GetBySymbol(_ context.Context, symbol string) (*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.bySymbol[domain.NormalizeSymbol(symbol)]
	if !exists {
		return nil, storage.ErrNotFound
	}
	tokenCopy := *t
	return &tokenCopy, nil
}

// GetByMint retrieves a token by mint address. Returns ErrNotFound if not exists.
func (s *TokenCatalogStore) GetByMint(_ context.Context, mint string) (*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.byMint[mint]
	if !exists {
		return nil, storage.ErrNotFound
	}
	tokenCopy := *t
	return &tokenCopy, nil
}

// SearchByName returns tokens whose name contains fragment, ordered by symbol.
func (s *TokenCatalogStore) SearchByName(_ context.Context, fragment string) ([]*domain.Token, error) {
	needle := strings.ToLower(strings.TrimSpace(fragment))
	if needle == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Token
	for _, t := range s.bySymbol {
		if strings.Contains(strings.ToLower(t.Name), needle) {
			tokenCopy := *t
			result = append(result, &tokenCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})
	return result, nil
}

var _ storage.TokenCatalogStore = (*TokenCatalogStore)(nil)

package storage

import (
	"context"

	"solana-swap-assistant/internal/domain"
)

// TokenCatalogStore provides access to the operator-managed token catalog.
// Symbols and mints are both unique.
type TokenCatalogStore interface {
	// Insert adds a token. Returns ErrDuplicateKey if the mint or symbol exists.
	Insert(ctx context.Context, t *domain.Token) error

	// GetBySymbol retrieves a token by normalized symbol. Returns ErrNotFound if not exists.
	GetBySymbol(ctx context.Context, symbol string) (*domain.Token, error)

	// GetByMint retrieves a token by mint address. Returns ErrNotFound if not exists.
	GetByMint(ctx context.Context, mint string) (*domain.Token, error)

	// SearchByName returns tokens whose name contains fragment (case-insensitive), ordered by symbol.
	SearchByName(ctx context.Context, fragment string) ([]*domain.Token, error)
}

// ExecutionEventStore provides access to execution_events storage.
type ExecutionEventStore interface {
	// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
	Insert(ctx context.Context, e *domain.ExecutionEvent) error

	// GetByAttemptID retrieves all events of an attempt, ordered by timestamp ASC.
	GetByAttemptID(ctx context.Context, attemptID string) ([]*domain.ExecutionEvent, error)

	// GetByTimeRange retrieves events within [start, end] (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.ExecutionEvent, error)
}

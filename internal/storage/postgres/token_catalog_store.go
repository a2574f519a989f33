package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/storage"
)

// TokenCatalogStore implements storage.TokenCatalogStore using PostgreSQL.
type TokenCatalogStore struct {
	pool *Pool
}

// NewTokenCatalogStore creates a new TokenCatalogStore.
func NewTokenCatalogStore(pool *Pool) *TokenCatalogStore {
	return &TokenCatalogStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenCatalogStore = (*TokenCatalogStore)(nil)

// Insert adds a token. Returns ErrDuplicateKey if the mint or symbol exists.
func (s *TokenCatalogStore) Insert(ctx context.Context, t *domain.Token) error {
	if t == nil || t.Mint == "" || t.Symbol == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO token_catalog (mint, symbol, name, decimals)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.pool.Exec(ctx, query,
		t.Mint,
		domain.NormalizeSymbol(t.Symbol),
		t.Name,
		int16(t.Decimals),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// GetBySymbol retrieves a token by symbol. Returns ErrNotFound if not exists.
func (s *TokenCatalogStore) GetBySymbol(ctx context.Context, symbol string) (t *domain.Token, err error) {
	defer func(start time.Time) { observe("token_by_symbol", start, err) }(time.Now())

	query := `
		SELECT mint, symbol, name, decimals
		FROM token_catalog
		WHERE symbol = $1
	`

	t, err = scanToken(s.pool.QueryRow(ctx, query, domain.NormalizeSymbol(symbol)))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token by symbol: %w", err)
	}
	return t, nil
}

// GetByMint retrieves a token by mint address. Returns ErrNotFound if not exists.
func (s *TokenCatalogStore) GetByMint(ctx context.Context, mint string) (t *domain.Token, err error) {
	defer func(start time.Time) { observe("token_by_mint", start, err) }(time.Now())

	query := `
		SELECT mint, symbol, name, decimals
		FROM token_catalog
		WHERE mint = $1
	`

	t, err = scanToken(s.pool.QueryRow(ctx, query, mint))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token by mint: %w", err)
	}
	return t, nil
}

// SearchByName returns tokens whose name contains fragment, ordered by symbol.
func (s *TokenCatalogStore) SearchByName(ctx context.Context, fragment string) ([]*domain.Token, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return nil, nil
	}

	query := `
		SELECT mint, symbol, name, decimals
		FROM token_catalog
		WHERE lower(name) LIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY symbol ASC
	`

	rows, err := s.pool.Query(ctx, query, escapeLike(strings.ToLower(fragment)))
	if err != nil {
		return nil, fmt.Errorf("search tokens: %w", err)
	}
	defer rows.Close()

	var result []*domain.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// escapeLike escapes LIKE wildcards in user input.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// scanToken scans a single row into Token.
func scanToken(row pgx.Row) (*domain.Token, error) {
	var t domain.Token
	var decimals int16

	if err := row.Scan(&t.Mint, &t.Symbol, &t.Name, &decimals); err != nil {
		return nil, err
	}
	t.Decimals = uint8(decimals)
	return &t, nil
}

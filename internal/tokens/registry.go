// Package tokens resolves user-entered token names, symbols and mints to
// token descriptors.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/storage"
)

// minNameFragment is the shortest input tried as a name substring.
const minNameFragment = 3

// Resolver resolves a name, symbol or mint to a token.
type Resolver interface {
	Resolve(ctx context.Context, query string) (domain.Token, error)
}

// Options configures a Registry.
type Options struct {
	// Catalog is the optional operator-managed token catalog.
	Catalog storage.TokenCatalogStore

	// Remote is the optional remote token list.
	Remote *RemoteList

	Logger *zap.Logger
}

// Registry resolves tokens from the curated table, the operator catalog
// and the remote list, in that order. Results are cached for the
// process lifetime.
type Registry struct {
	curated []domain.Token
	catalog storage.TokenCatalogStore
	remote  *RemoteList
	logger  *zap.Logger

	mu    sync.RWMutex
	cache map[string]domain.Token
}

// Compile-time interface check.
var _ Resolver = (*Registry)(nil)

// NewRegistry creates a registry.
func NewRegistry(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		curated: Curated(),
		catalog: opts.Catalog,
		remote:  opts.Remote,
		logger:  logger.Named("tokens"),
		cache:   make(map[string]domain.Token),
	}
}

// Resolve returns the token matching query. Exact symbol matches always
// win over name substring matches. Returns domain.ErrTokenNotFound when
// nothing matches.
func (r *Registry) Resolve(ctx context.Context, query string) (domain.Token, error) {
	raw := strings.TrimSpace(query)
	if raw == "" {
		return domain.Token{}, fmt.Errorf("%w: empty token", domain.ErrTokenNotFound)
	}

	key := raw
	isMint := IsMintAddress(raw)
	if !isMint {
		key = domain.NormalizeSymbol(raw)
	}

	r.mu.RLock()
	cached, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	var (
		token domain.Token
		found bool
	)
	if isMint {
		token, found = r.byMint(ctx, raw)
	} else {
		token, found = r.bySymbolOrName(ctx, key)
	}
	if !found {
		r.logger.Debug("token not resolved", zap.String("query", raw))
		return domain.Token{}, fmt.Errorf("%w: %q", domain.ErrTokenNotFound, raw)
	}

	r.mu.Lock()
	r.cache[key] = token
	r.mu.Unlock()
	return token, nil
}

// IsMintAddress reports whether s decodes to a 32-byte public key.
func IsMintAddress(s string) bool {
	if len(s) < 32 || len(s) > 44 {
		return false
	}
	b, err := base58.Decode(s)
	return err == nil && len(b) == 32
}

func (r *Registry) byMint(ctx context.Context, mint string) (domain.Token, bool) {
	for _, t := range r.curated {
		if t.Mint == mint {
			return t, true
		}
	}
	if r.catalog != nil {
		t, err := r.catalog.GetByMint(ctx, mint)
		if err == nil {
			return *t, true
		}
		r.catalogError("mint", err)
	}
	for _, t := range r.remoteTokens(ctx) {
		if t.Mint == mint {
			return t, true
		}
	}
	return domain.Token{}, false
}

func (r *Registry) bySymbolOrName(ctx context.Context, symbol string) (domain.Token, bool) {
	for _, t := range r.curated {
		if t.Symbol == symbol {
			return t, true
		}
	}
	for _, t := range r.curated {
		if strings.EqualFold(t.Name, symbol) {
			return t, true
		}
	}
	if r.catalog != nil {
		t, err := r.catalog.GetBySymbol(ctx, symbol)
		if err == nil {
			return *t, true
		}
		r.catalogError("symbol", err)
	}
	remote := r.remoteTokens(ctx)
	for _, t := range remote {
		if t.Symbol == symbol {
			return t, true
		}
	}

	if len(symbol) < minNameFragment {
		return domain.Token{}, false
	}
	for _, t := range r.curated {
		if nameContains(t.Name, symbol) {
			return t, true
		}
	}
	if r.catalog != nil {
		matches, err := r.catalog.SearchByName(ctx, symbol)
		if err != nil {
			r.catalogError("name", err)
		} else if len(matches) > 0 {
			return *matches[0], true
		}
	}
	for _, t := range remote {
		if nameContains(t.Name, symbol) {
			return t, true
		}
	}
	return domain.Token{}, false
}

func (r *Registry) remoteTokens(ctx context.Context) []domain.Token {
	if r.remote == nil {
		return nil
	}
	return r.remote.Tokens(ctx)
}

// catalogError logs catalog failures other than a miss. The catalog is
// optional, so resolution continues with the remaining sources.
func (r *Registry) catalogError(lookup string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	r.logger.Warn("token catalog lookup failed",
		zap.String("lookup", lookup),
		zap.Error(err))
}

func nameContains(name, fragment string) bool {
	return strings.Contains(strings.ToUpper(name), fragment)
}

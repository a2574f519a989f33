package tokens

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/observability"
)

// DefaultTokenListURL serves the verified token list as a JSON array.
const DefaultTokenListURL = "https://lite-api.jup.ag/tokens/v1/tagged/verified"

// fetchTimeout bounds the one-time list download.
const fetchTimeout = 20 * time.Second

// RemoteList is a token list fetched once and memoized for the process lifetime.
// A failed fetch is memoized as an empty list.
type RemoteList struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger

	once   sync.Once
	tokens []domain.Token
}

// NewRemoteList creates a lazily fetched token list.
func NewRemoteList(url string, httpClient *http.Client, logger *zap.Logger) *RemoteList {
	if url == "" {
		url = DefaultTokenListURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: fetchTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteList{url: url, httpClient: httpClient, logger: logger}
}

// Tokens returns the list, fetching it on first use.
func (l *RemoteList) Tokens(ctx context.Context) []domain.Token {
	l.once.Do(func() {
		// The result is shared by every later caller, so one caller's cancellation must not poison it.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()

		tokens, err := l.fetch(fetchCtx)
		if err != nil {
			observability.RecordTokenListFetch("error")
			l.logger.Warn("token list fetch failed, using curated tokens only",
				zap.String("url", l.url),
				zap.Error(err))
			return
		}
		observability.RecordTokenListFetch("ok")
		l.logger.Info("token list loaded", zap.Int("tokens", len(tokens)))
		l.tokens = tokens
	})
	return l.tokens
}

type remoteToken struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
}

func (l *RemoteList) fetch(ctx context.Context) ([]domain.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var raw []remoteToken
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode token list: %w", err)
	}

	tokens := make([]domain.Token, 0, len(raw))
	for _, t := range raw {
		if t.Address == "" || t.Symbol == "" || t.Decimals < 0 || t.Decimals > 255 {
			continue
		}
		tokens = append(tokens, domain.Token{
			Symbol:   domain.NormalizeSymbol(t.Symbol),
			Name:     t.Name,
			Mint:     t.Address,
			Decimals: uint8(t.Decimals),
		})
	}
	return tokens, nil
}

package raydium

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/observability"
)

const (
	// DefaultAPIURL is the Raydium API v3 host.
	DefaultAPIURL = "https://api-v3.raydium.io"

	// DefaultAPITimeout is the HTTP request timeout.
	DefaultAPITimeout = 15 * time.Second

	// DefaultAPIRPS is the default request rate towards the API.
	DefaultAPIRPS = 2.0

	endpointPools = "raydium_pools"
)

// PoolInfo is a pool listing from the Raydium API.
type PoolInfo struct {
	ID        string       `json:"id"`
	ProgramID string       `json:"programId"`
	Type      string       `json:"type"`
	MintA     PoolInfoMint `json:"mintA"`
	MintB     PoolInfoMint `json:"mintB"`
	TVL       float64      `json:"tvl"`
	FeeRate   float64      `json:"feeRate"`
	Config    struct {
		ID           string `json:"id"`
		TradeFeeRate uint64 `json:"tradeFeeRate"`
	} `json:"config"`
}

// PoolInfoMint is one side of a listed pool.
type PoolInfoMint struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

type poolsResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
	Data    struct {
		Count int        `json:"count"`
		Data  []PoolInfo `json:"data"`
	} `json:"data"`
}

// PoolLocator finds CPMM pools for a mint pair.
type PoolLocator interface {
	FindPool(ctx context.Context, mintA, mintB string) (solana.PublicKey, error)
}

// APIClient is a Raydium API v3 client.
type APIClient struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// APIConfig configures the Raydium API client.
type APIConfig struct {
	BaseURL    string
	Timeout    time.Duration
	RPS        float64
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Compile-time interface check.
var _ PoolLocator = (*APIClient)(nil)

// NewAPIClient creates a Raydium API client.
func NewAPIClient(config *APIConfig) *APIClient {
	if config == nil {
		config = &APIConfig{}
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultAPITimeout
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	rps := config.RPS
	if rps <= 0 {
		rps = DefaultAPIRPS
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger.Named("raydium"),
	}
}

// PoolsByMints lists CPMM pools holding both mints, deepest first.
func (c *APIClient) PoolsByMints(ctx context.Context, mintA, mintB string) ([]PoolInfo, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("mint1", mintA)
	query.Set("mint2", mintB)
	query.Set("poolType", "standard")
	query.Set("poolSortField", "liquidity")
	query.Set("sortType", "desc")
	query.Set("pageSize", "20")
	query.Set("page", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/pools/info/mint?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordAggregatorRequest(endpointPools, "transport_error")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: pool lookup: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		observability.RecordAggregatorRequest(endpointPools, "read_error")
		return nil, fmt.Errorf("%w: read pool lookup: %v", domain.ErrUpstream, err)
	}
	observability.RecordAggregatorRequest(endpointPools, strconv.Itoa(resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: pool lookup status %d: %s", domain.ErrUpstream, resp.StatusCode, truncate(body, 256))
	}

	var parsed poolsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: parse pool lookup: %v", domain.ErrUpstream, err)
	}
	if !parsed.Success {
		return nil, fmt.Errorf("%w: pool lookup failed: %s", domain.ErrUpstream, parsed.Msg)
	}

	pools := make([]PoolInfo, 0, len(parsed.Data.Data))
	for _, p := range parsed.Data.Data {
		if p.ProgramID == ProgramID.String() {
			pools = append(pools, p)
		}
	}
	c.logger.Debug("pool lookup",
		zap.String("mint_a", mintA),
		zap.String("mint_b", mintB),
		zap.Int("listed", len(parsed.Data.Data)),
		zap.Int("cpmm", len(pools)))
	return pools, nil
}

// FindPool returns the deepest CPMM pool for the pair.
// Returns domain.ErrNoRouteFound when the pair has no CPMM pool.
func (c *APIClient) FindPool(ctx context.Context, mintA, mintB string) (solana.PublicKey, error) {
	pools, err := c.PoolsByMints(ctx, mintA, mintB)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if len(pools) == 0 {
		return solana.PublicKey{}, fmt.Errorf("%w: no CPMM pool for %s/%s", domain.ErrNoRouteFound, mintA, mintB)
	}
	addr, err := solana.PublicKeyFromBase58(pools[0].ID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: invalid pool id %q", domain.ErrUpstream, pools[0].ID)
	}
	return addr, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}

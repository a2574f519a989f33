// Package jupiter provides a client for the Jupiter aggregator API on Solana.
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/observability"
)

const (
	// DefaultBaseURL is the keyless Jupiter API host.
	DefaultBaseURL = "https://lite-api.jup.ag"

	// KeyedBaseURL is the Jupiter API host used with an API key.
	KeyedBaseURL = "https://api.jup.ag"

	// DefaultTimeout is the HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRPS is the default request rate towards the API.
	DefaultRPS = 1.0
)

// Endpoint names used for metrics and errors.
const (
	EndpointQuote   = "quote"
	EndpointSwap    = "swap"
	EndpointOrder   = "order"
	EndpointExecute = "execute"
)

// Client is a Jupiter API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// ClientConfig contains configuration for the Jupiter client.
type ClientConfig struct {
	BaseURL    string
	APIKey     string // optional, sent as x-api-key
	Timeout    time.Duration
	RPS        float64 // requests per second; <= 0 uses DefaultRPS
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewClient creates a new Jupiter API client.
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = &ClientConfig{}
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
		if config.APIKey != "" {
			baseURL = KeyedBaseURL
		}
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	rps := config.RPS
	if rps <= 0 {
		rps = DefaultRPS
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     config.APIKey,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger.Named("jupiter"),
	}
}

// Quote fetches a swap quote.
// An empty route plan or zero amount is reported as domain.ErrNoRouteFound.
func (c *Client) Quote(ctx context.Context, params QuoteParams) (*QuoteResponse, error) {
	if params.InputMint == "" || params.OutputMint == "" {
		return nil, fmt.Errorf("%w: inputMint and outputMint are required", domain.ErrBuild)
	}
	if params.Amount == 0 {
		return nil, fmt.Errorf("%w: amount is required", domain.ErrInvalidAmount)
	}

	query := url.Values{}
	query.Set("inputMint", params.InputMint)
	query.Set("outputMint", params.OutputMint)
	query.Set("amount", strconv.FormatUint(params.Amount, 10))
	if params.SlippageBps > 0 {
		query.Set("slippageBps", strconv.Itoa(int(params.SlippageBps)))
	}
	if params.SwapMode != "" {
		query.Set("swapMode", params.SwapMode)
	}

	body, err := c.do(ctx, EndpointQuote, http.MethodGet, "/swap/v1/quote?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var quote QuoteResponse
	if err := json.Unmarshal(body, &quote); err != nil {
		return nil, fmt.Errorf("%w: parse quote: %v", domain.ErrUpstream, err)
	}
	quote.Raw = body

	if len(quote.RoutePlan) == 0 || quote.InAmount == "0" || quote.OutAmount == "0" {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrNoRouteFound, params.InputMint, params.OutputMint)
	}

	return &quote, nil
}

// Swap builds a swap transaction from a quote payload.
func (c *Client) Swap(ctx context.Context, params SwapParams) (*SwapResponse, error) {
	if len(params.QuoteResponse) == 0 {
		return nil, fmt.Errorf("%w: quoteResponse is required", domain.ErrBuild)
	}
	if params.UserPublicKey == "" {
		return nil, fmt.Errorf("%w: userPublicKey is required", domain.ErrBuild)
	}

	body, err := c.do(ctx, EndpointSwap, http.MethodPost, "/swap/v1/swap", params)
	if err != nil {
		return nil, err
	}

	var swap SwapResponse
	if err := json.Unmarshal(body, &swap); err != nil {
		return nil, fmt.Errorf("%w: parse swap: %v", domain.ErrUpstream, err)
	}
	if swap.SwapTransaction == "" {
		return nil, fmt.Errorf("%w: swap response without transaction", domain.ErrUpstream)
	}
	return &swap, nil
}

// Order requests an order with a prebuilt transaction for the taker.
// Orders are exact-input only.
func (c *Client) Order(ctx context.Context, params OrderParams) (*OrderResponse, error) {
	if params.InputMint == "" || params.OutputMint == "" {
		return nil, fmt.Errorf("%w: inputMint and outputMint are required", domain.ErrBuild)
	}
	if params.Amount == 0 {
		return nil, fmt.Errorf("%w: amount is required", domain.ErrInvalidAmount)
	}

	query := url.Values{}
	query.Set("inputMint", params.InputMint)
	query.Set("outputMint", params.OutputMint)
	query.Set("amount", strconv.FormatUint(params.Amount, 10))
	if params.Taker != "" {
		query.Set("taker", params.Taker)
	}

	body, err := c.do(ctx, EndpointOrder, http.MethodGet, "/ultra/v1/order?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var order OrderResponse
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("%w: parse order: %v", domain.ErrUpstream, err)
	}

	if len(order.RoutePlan) == 0 || order.OutAmount == "" || order.OutAmount == "0" {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrNoRouteFound, params.InputMint, params.OutputMint)
	}
	if params.Taker != "" && order.Transaction == "" {
		msg := order.ErrorMessage
		if msg == "" {
			msg = "order without transaction"
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrUpstream, msg)
	}

	return &order, nil
}

// Execute submits a signed order transaction.
// A Failed status is returned as a response, not an error.
func (c *Client) Execute(ctx context.Context, params ExecuteParams) (*ExecuteResponse, error) {
	if params.SignedTransaction == "" || params.RequestID == "" {
		return nil, fmt.Errorf("%w: signedTransaction and requestId are required", domain.ErrBuild)
	}

	body, err := c.do(ctx, EndpointExecute, http.MethodPost, "/ultra/v1/execute", params)
	if err != nil {
		return nil, err
	}

	var res ExecuteResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("%w: parse execute: %v", domain.ErrUpstream, err)
	}
	return &res, nil
}

// do performs one rate-limited request and returns the 200 body.
func (c *Client) do(ctx context.Context, endpoint, method, path string, payload interface{}) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal request: %v", domain.ErrBuild, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordAggregatorRequest(endpoint, "transport_error")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s request: %v", domain.ErrUpstream, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		observability.RecordAggregatorRequest(endpoint, "read_error")
		return nil, fmt.Errorf("%w: read %s response: %v", domain.ErrUpstream, endpoint, err)
	}

	observability.RecordAggregatorRequest(endpoint, strconv.Itoa(resp.StatusCode))
	c.logger.Debug("aggregator request",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		return nil, parseAPIError(endpoint, resp.StatusCode, body)
	}
	return body, nil
}

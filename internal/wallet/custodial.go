package wallet

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"solana-swap-assistant/internal/domain"
)

// DefaultCustodialTimeout is the HTTP timeout of custodial wallet calls.
// Signing may wait on the user, so it is longer than API defaults.
const DefaultCustodialTimeout = 90 * time.Second

// solanaMainnet is the CAIP-2 chain identifier sent with each request.
const solanaMainnet = "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp"

// Error codes the custodial API uses for user declines.
var custodialRejectCodes = map[string]bool{
	"user_rejected":        true,
	"transaction_rejected": true,
	"request_cancelled":    true,
}

// CustodialConfig configures a CustodialClient.
type CustodialConfig struct {
	BaseURL    string
	AppID      string
	AppSecret  string
	WalletID   string
	Address    solana.PublicKey
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// CustodialClient is an EmbeddedProvider backed by the custodial wallet
// HTTP API.
type CustodialClient struct {
	httpClient *http.Client
	baseURL    string
	appID      string
	appSecret  string
	walletID   string
	address    solana.PublicKey
	logger     *zap.Logger
}

// NewCustodialClient creates a client for one custodial wallet.
func NewCustodialClient(config *CustodialConfig) (*CustodialClient, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("custodial wallet API URL is required")
	}
	if config.WalletID == "" || config.Address.IsZero() {
		return nil, fmt.Errorf("custodial wallet ID and address are required")
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultCustodialTimeout
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustodialClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		appID:      config.AppID,
		appSecret:  config.AppSecret,
		walletID:   config.WalletID,
		address:    config.Address,
		logger:     logger.Named("custodial"),
	}, nil
}

// Compile-time interface check.
var _ EmbeddedProvider = (*CustodialClient)(nil)

// PublicKey implements EmbeddedProvider.
func (c *CustodialClient) PublicKey() solana.PublicKey {
	return c.address
}

type custodialRequest struct {
	Method string          `json:"method"`
	CAIP2  string          `json:"caip2"`
	Params custodialParams `json:"params"`
}

type custodialParams struct {
	Transaction string `json:"transaction"`
	Encoding    string `json:"encoding"`
}

type custodialResponse struct {
	Data struct {
		Hash string `json:"hash"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// SignAndSendTransaction implements EmbeddedProvider.
func (c *CustodialClient) SignAndSendTransaction(ctx context.Context, raw []byte) (string, error) {
	body, err := json.Marshal(custodialRequest{
		Method: "signAndSendTransaction",
		CAIP2:  solanaMainnet,
		Params: custodialParams{
			Transaction: base64.StdEncoding.EncodeToString(raw),
			Encoding:    "base64",
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/wallets/%s/rpc", c.baseURL, url.PathEscape(c.walletID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("app-id", c.appID)
	req.SetBasicAuth(c.appID, c.appSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrSigningRejected, ctx.Err())
		}
		return "", fmt.Errorf("custodial wallet request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var out custodialResponse
	if err := json.Unmarshal(respBody, &out); err != nil && resp.StatusCode == http.StatusOK {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("custodial wallet request failed",
			zap.Int("status", resp.StatusCode),
			zap.String("code", out.Code),
			zap.String("error", out.Error))
		if custodialRejectCodes[out.Code] {
			return "", fmt.Errorf("%w: %s", domain.ErrSigningRejected, out.Error)
		}
		msg := out.Error
		if msg == "" {
			msg = strings.TrimSpace(string(respBody))
		}
		return "", fmt.Errorf("custodial wallet HTTP %d: %s", resp.StatusCode, msg)
	}
	if out.Data.Hash == "" {
		return "", fmt.Errorf("custodial wallet returned no signature")
	}
	return out.Data.Hash, nil
}

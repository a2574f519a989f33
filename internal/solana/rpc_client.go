package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go/rpc"

	"solana-swap-assistant/internal/observability"
)

// DefaultCommitment is used for reads and preflight unless overridden.
const DefaultCommitment = rpc.CommitmentConfirmed

const defaultHTTPTimeout = 30 * time.Second

// RetryPolicy bounds how one endpoint is retried on transport failures,
// 429s and non-200 answers. Node errors are never retried.
type RetryPolicy struct {
	Attempts int           // total tries, at least 1
	Initial  time.Duration // delay before the second try, doubled after
	Max      time.Duration
}

// DefaultRetry is four tries backing off from one second.
var DefaultRetry = RetryPolicy{Attempts: 4, Initial: time.Second, Max: 10 * time.Second}

// NoRetry tries once. The failover client uses it when another endpoint
// is the better retry.
var NoRetry = RetryPolicy{Attempts: 1}

func (p RetryPolicy) next(d time.Duration) time.Duration {
	if d *= 2; p.Max > 0 && d > p.Max {
		return p.Max
	}
	return d
}

// HTTPClient speaks JSON-RPC 2.0 over HTTP to one endpoint.
type HTTPClient struct {
	endpoint   string
	http       *http.Client
	retry      RetryPolicy
	commitment rpc.CommitmentType
	seq        atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) { c.http.Timeout = d }
}

func WithRetry(p RetryPolicy) ClientOption {
	return func(c *HTTPClient) { c.retry = p }
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) { c.http = hc }
}

// WithCommitment sets the commitment for reads and preflight.
func WithCommitment(commitment rpc.CommitmentType) ClientOption {
	return func(c *HTTPClient) { c.commitment = commitment }
}

// NewHTTPClient creates a client for endpoint.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:   endpoint,
		http:       &http.Client{Timeout: defaultHTTPTimeout},
		retry:      DefaultRetry,
		commitment: DefaultCommitment,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.Attempts < 1 {
		c.retry.Attempts = 1
	}
	return c
}

func (c *HTTPClient) Endpoint() string { return c.endpoint }

// Compile-time interface check.
var _ RPCClient = (*HTTPClient)(nil)

// RPCError is an error object returned by the node. It is an answer, not
// an outage: it is neither retried nor failed over.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// errTransient marks failures worth another try.
var errTransient = errors.New("transient")

// call invokes method and decodes the result into out. A JSON null result
// leaves out untouched.
func (c *HTTPClient) call(ctx context.Context, method string, out interface{}, params ...interface{}) error {
	defer func(start time.Time) {
		observability.RecordRPCLatency(method, time.Since(start).Seconds())
	}(time.Now())

	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: c.seq.Add(1), Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", method, err)
	}

	var (
		delay   = c.retry.Initial
		lastErr error
	)
	for try := 1; try <= c.retry.Attempts; try++ {
		if try > 1 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
			delay = c.retry.next(delay)
		}

		result, err := c.post(ctx, body)
		if err == nil {
			if out == nil || len(result) == 0 || string(result) == "null" {
				return nil
			}
			if err := json.Unmarshal(result, out); err != nil {
				return fmt.Errorf("%s: decode result: %w", method, err)
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !errors.Is(err, errTransient) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%s: gave up after %d tries: %w", method, c.retry.Attempts, lastErr)
}

// post sends one request. Failures wrapped with errTransient may be retried.
func (c *HTTPClient) post(ctx context.Context, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errTransient, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", errTransient, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: http %d: %s", errTransient, resp.StatusCode, truncate(payload, 200))
	}

	var r rpcResponse
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", errTransient, err)
	}
	if r.Error != nil {
		return nil, r.Error
	}
	return r.Result, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

func (c *HTTPClient) withCommitment(cfg map[string]interface{}) map[string]interface{} {
	if cfg == nil {
		cfg = map[string]interface{}{}
	}
	cfg["commitment"] = string(c.commitment)
	return cfg
}

func (c *HTTPClient) GetLatestBlockhash(ctx context.Context) (*Blockhash, error) {
	var res struct {
		Context struct {
			Slot uint64 `json:"slot"`
		} `json:"context"`
		Value struct {
			Blockhash            string `json:"blockhash"`
			LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getLatestBlockhash", &res, c.withCommitment(nil)); err != nil {
		return nil, err
	}
	if res.Value.Blockhash == "" {
		return nil, errors.New("getLatestBlockhash: node returned no blockhash")
	}
	return &Blockhash{
		Blockhash:            res.Value.Blockhash,
		LastValidBlockHeight: res.Value.LastValidBlockHeight,
		Slot:                 res.Context.Slot,
	}, nil
}

func (c *HTTPClient) IsBlockhashValid(ctx context.Context, blockhash string) (bool, error) {
	var res struct {
		Value bool `json:"value"`
	}
	err := c.call(ctx, "isBlockhashValid", &res, blockhash, c.withCommitment(nil))
	return res.Value, err
}

// SendTransaction submits base64 wire bytes and returns the signature.
func (c *HTTPClient) SendTransaction(ctx context.Context, raw []byte, opts *SendOptions) (string, error) {
	cfg := map[string]interface{}{
		"encoding":            "base64",
		"preflightCommitment": string(c.commitment),
	}
	if opts != nil {
		cfg["skipPreflight"] = opts.SkipPreflight
		if opts.PreflightCommitment != "" {
			cfg["preflightCommitment"] = string(opts.PreflightCommitment)
		}
		if opts.MaxRetries != nil {
			cfg["maxRetries"] = *opts.MaxRetries
		}
	}

	var sig string
	if err := c.call(ctx, "sendTransaction", &sig, base64.StdEncoding.EncodeToString(raw), cfg); err != nil {
		return "", err
	}
	return sig, nil
}

// GetSignatureStatuses searches the full history so older signatures
// still resolve. Unknown signatures map to nil entries.
func (c *HTTPClient) GetSignatureStatuses(ctx context.Context, signatures ...string) ([]*SignatureStatus, error) {
	var res rpc.GetSignatureStatusesResult
	cfg := map[string]interface{}{"searchTransactionHistory": true}
	if err := c.call(ctx, "getSignatureStatuses", &res, signatures, cfg); err != nil {
		return nil, err
	}

	out := make([]*SignatureStatus, len(signatures))
	for i, v := range res.Value {
		if i >= len(out) {
			break
		}
		if v == nil {
			continue
		}
		out[i] = &SignatureStatus{
			Slot:               v.Slot,
			Confirmations:      v.Confirmations,
			Err:                v.Err,
			ConfirmationStatus: v.ConfirmationStatus,
		}
	}
	return out, nil
}

// GetTransaction returns nil when the node does not know the signature.
func (c *HTTPClient) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	commitment := c.commitment
	if commitment == rpc.CommitmentProcessed {
		commitment = rpc.CommitmentConfirmed // not accepted by getTransaction
	}
	cfg := map[string]interface{}{
		"encoding":                       "base64",
		"commitment":                     string(commitment),
		"maxSupportedTransactionVersion": 0,
	}

	var res *txEnvelope
	if err := c.call(ctx, "getTransaction", &res, signature, cfg); err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	return res.decode(signature)
}

// txEnvelope is getTransaction's base64 result.
type txEnvelope struct {
	Slot        int64    `json:"slot"`
	BlockTime   *int64   `json:"blockTime"`
	Transaction []string `json:"transaction"` // [data, "base64"]
	Meta        *struct {
		Err               interface{}    `json:"err"`
		Fee               uint64         `json:"fee"`
		PreBalances       []uint64       `json:"preBalances"`
		PostBalances      []uint64       `json:"postBalances"`
		PreTokenBalances  []tokenBalance `json:"preTokenBalances"`
		PostTokenBalances []tokenBalance `json:"postTokenBalances"`
		LogMessages       []string       `json:"logMessages"`
		LoadedAddresses   struct {
			Writable []string `json:"writable"`
			Readonly []string `json:"readonly"`
		} `json:"loadedAddresses"`
	} `json:"meta"`
}

type tokenBalance struct {
	AccountIndex  int               `json:"accountIndex"`
	Mint          string            `json:"mint"`
	Owner         string            `json:"owner"`
	UITokenAmount rpc.UiTokenAmount `json:"uiTokenAmount"`
}

func (e *txEnvelope) decode(signature string) (*Transaction, error) {
	tx := &Transaction{Slot: e.Slot, Signature: signature}
	if e.BlockTime != nil {
		tx.BlockTime = *e.BlockTime
	}
	if len(e.Transaction) > 0 {
		raw, err := base64.StdEncoding.DecodeString(e.Transaction[0])
		if err != nil {
			return nil, fmt.Errorf("getTransaction %s: decode wire bytes: %w", signature, err)
		}
		tx.Raw = raw
	}
	if m := e.Meta; m != nil {
		tx.Meta = &TransactionMeta{
			Err:               m.Err,
			Fee:               m.Fee,
			PreBalances:       m.PreBalances,
			PostBalances:      m.PostBalances,
			PreTokenBalances:  tokenBalances(m.PreTokenBalances),
			PostTokenBalances: tokenBalances(m.PostTokenBalances),
			LogMessages:       m.LogMessages,
			LoadedWritable:    m.LoadedAddresses.Writable,
			LoadedReadonly:    m.LoadedAddresses.Readonly,
		}
	}
	return tx, nil
}

func tokenBalances(in []tokenBalance) []TokenBalance {
	if len(in) == 0 {
		return nil
	}
	out := make([]TokenBalance, 0, len(in))
	for _, b := range in {
		out = append(out, TokenBalance{
			AccountIndex: b.AccountIndex,
			Mint:         b.Mint,
			Owner:        b.Owner,
			Amount:       b.UITokenAmount.Amount,
			Decimals:     b.UITokenAmount.Decimals,
		})
	}
	return out
}

// GetAccountInfo returns nil when the account does not exist.
func (c *HTTPClient) GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error) {
	var res struct {
		Value *struct {
			Lamports   uint64   `json:"lamports"`
			Owner      string   `json:"owner"`
			Data       []string `json:"data"` // [data, "base64"]
			Executable bool     `json:"executable"`
			RentEpoch  uint64   `json:"rentEpoch"`
		} `json:"value"`
	}
	cfg := c.withCommitment(map[string]interface{}{"encoding": "base64"})
	if err := c.call(ctx, "getAccountInfo", &res, pubkey, cfg); err != nil {
		return nil, err
	}
	v := res.Value
	if v == nil {
		return nil, nil
	}
	info := &AccountInfo{Lamports: v.Lamports, Owner: v.Owner, Executable: v.Executable, RentEpoch: v.RentEpoch}
	if len(v.Data) > 0 {
		info.Data = v.Data[0]
	}
	return info, nil
}

// GetTokenAccountBalance returns the raw amount held by an SPL token account.
func (c *HTTPClient) GetTokenAccountBalance(ctx context.Context, account string) (uint64, error) {
	var res rpc.GetTokenAccountBalanceResult
	if err := c.call(ctx, "getTokenAccountBalance", &res, account, c.withCommitment(nil)); err != nil {
		return 0, err
	}
	if res.Value == nil {
		return 0, fmt.Errorf("getTokenAccountBalance %s: no value", account)
	}
	amount, err := strconv.ParseUint(res.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("getTokenAccountBalance %s: amount %q: %w", account, res.Value.Amount, err)
	}
	return amount, nil
}

func (c *HTTPClient) GetBlockHeight(ctx context.Context) (uint64, error) {
	var height uint64
	err := c.call(ctx, "getBlockHeight", &height, c.withCommitment(nil))
	return height, err
}

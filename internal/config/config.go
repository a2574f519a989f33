// Package config loads runtime settings from the environment.
//
// A .env file in the working directory is read first. Variables already
// set in the environment are never overridden by it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Submit modes.
const (
	SubmitDirect  = "direct"
	SubmitExecute = "execute"
)

// Defaults applied when a variable is unset.
const (
	DefaultRPCEndpoint        = "https://api.mainnet-beta.solana.com"
	DefaultJupiterURL         = "https://lite-api.jup.ag"
	DefaultJupiterRPS         = 1.0
	DefaultRaydiumURL         = "https://api-v3.raydium.io"
	DefaultSlippageBps        = 50
	DefaultBuildStrategy      = "aggregator"
	DefaultFundingToken       = "USDC"
	DefaultConfirmMaxAttempts = 10
	DefaultConfirmInterval    = 2 * time.Second
	DefaultOpenAIModel        = "gpt-4o-mini"
	DefaultHTTPAddr           = ":8080"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "json"
)

// Config holds every setting of the binaries.
type Config struct {
	RPCEndpoints []string
	WSEndpoint   string

	JupiterURL    string
	JupiterAPIKey string
	JupiterRPS    float64
	RaydiumURL    string
	TokenListURL  string

	SlippageBps   uint16
	BuildStrategy string
	SubmitMode    string
	FundingToken  string

	ConfirmMaxAttempts int
	ConfirmInterval    time.Duration

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	EmbeddedWalletURL       string
	EmbeddedWalletAppID     string
	EmbeddedWalletAppSecret string

	PostgresDSN   string
	ClickHouseDSN string

	HTTPAddr  string
	LogLevel  string
	LogFormat string

	KeypairPath string
}

// Load reads .env if present, then the environment.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit env file path. A missing file is ignored.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (*Config, error) {
	var p parser
	cfg := &Config{
		RPCEndpoints: splitList(getenv("SOLANA_RPC_ENDPOINTS", DefaultRPCEndpoint)),
		WSEndpoint:   os.Getenv("SOLANA_WS_ENDPOINT"),

		JupiterURL:    getenv("JUPITER_API_URL", DefaultJupiterURL),
		JupiterAPIKey: os.Getenv("JUPITER_API_KEY"),
		JupiterRPS:    p.float("JUPITER_RPS", DefaultJupiterRPS),
		RaydiumURL:    getenv("RAYDIUM_API_URL", DefaultRaydiumURL),
		TokenListURL:  os.Getenv("TOKEN_LIST_URL"),

		SlippageBps:   uint16(p.uint("SLIPPAGE_BPS", DefaultSlippageBps, 16)),
		BuildStrategy: strings.ToLower(getenv("BUILD_STRATEGY", DefaultBuildStrategy)),
		SubmitMode:    strings.ToLower(getenv("SUBMIT_MODE", SubmitDirect)),
		FundingToken:  getenv("FUNDING_TOKEN", DefaultFundingToken),

		ConfirmMaxAttempts: int(p.uint("CONFIRM_MAX_ATTEMPTS", DefaultConfirmMaxAttempts, 31)),
		ConfirmInterval:    p.duration("CONFIRM_INTERVAL", DefaultConfirmInterval),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   getenv("OPENAI_MODEL", DefaultOpenAIModel),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),

		EmbeddedWalletURL:       os.Getenv("EMBEDDED_WALLET_API_URL"),
		EmbeddedWalletAppID:     os.Getenv("EMBEDDED_WALLET_APP_ID"),
		EmbeddedWalletAppSecret: os.Getenv("EMBEDDED_WALLET_APP_SECRET"),

		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		ClickHouseDSN: os.Getenv("CLICKHOUSE_DSN"),

		HTTPAddr:  getenv("HTTP_ADDR", DefaultHTTPAddr),
		LogLevel:  getenv("LOG_LEVEL", DefaultLogLevel),
		LogFormat: getenv("LOG_FORMAT", DefaultLogFormat),

		KeypairPath: os.Getenv("KEYPAIR_PATH"),
	}
	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be caught while parsing.
func (c *Config) Validate() error {
	if len(c.RPCEndpoints) == 0 {
		return fmt.Errorf("SOLANA_RPC_ENDPOINTS: at least one endpoint is required")
	}
	if c.SubmitMode != SubmitDirect && c.SubmitMode != SubmitExecute {
		return fmt.Errorf("SUBMIT_MODE: must be %q or %q, got %q", SubmitDirect, SubmitExecute, c.SubmitMode)
	}
	if c.SlippageBps > 10_000 {
		return fmt.Errorf("SLIPPAGE_BPS: %d exceeds 10000", c.SlippageBps)
	}
	if c.ConfirmMaxAttempts == 0 {
		return fmt.Errorf("CONFIRM_MAX_ATTEMPTS: must be positive")
	}
	return nil
}

// EmbeddedWalletEnabled reports whether custodial wallet sessions can be opened.
func (c *Config) EmbeddedWalletEnabled() bool {
	return c.EmbeddedWalletURL != ""
}

// parser records the first malformed variable.
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%s: invalid value %q: %w", key, value, err)
	}
}

func (p *parser) uint(key string, def uint64, bits int) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(strings.TrimSpace(v), 10, bits)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return f
}

// duration accepts Go durations ("2s") or a bare number of milliseconds.
func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if ms, err := strconv.ParseUint(v, 10, 63); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return d
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package intent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"solana-swap-assistant/internal/chat"
	"solana-swap-assistant/internal/domain"
)

func TestPatternClassifier(t *testing.T) {
	tests := []struct {
		text    string
		kind    domain.IntentKind
		amount  string
		token   string
		payWith string
		mode    domain.FixingMode
	}{
		{"buy 0.1 SOL", domain.IntentBuySOL, "0.1", "SOL", "", domain.ExactOutput},
		{"get 2 $sol", domain.IntentBuySOL, "2", "sol", "", domain.ExactOutput},
		{"Purchase 1000 bonk with USDC", domain.IntentBuyToken, "1000", "bonk", "USDC", domain.ExactOutput},
		{"sell 50 JUP", domain.IntentSellToken, "50", "JUP", "", domain.ExactInput},
		{"sell 1.5 wif for usdc", domain.IntentSellToken, "1.5", "wif", "usdc", domain.ExactInput},
		{"swap 2 SOL to USDC", domain.IntentSellToken, "2", "SOL", "USDC", domain.ExactInput},
		{"convert 10 usdc into jitosol", domain.IntentSellToken, "10", "usdc", "jitosol", domain.ExactInput},
		{"spend 20 USDC on BONK", domain.IntentBuyToken, "20", "BONK", "USDC", domain.ExactInput},
		{"spend 20 USDC on SOL", domain.IntentBuySOL, "20", "SOL", "USDC", domain.ExactInput},
		{"buy 0,5 sol", domain.IntentBuySOL, "0.5", "sol", "", domain.ExactOutput},
		{"buy 1,000 BONK", domain.IntentBuyToken, "1000", "BONK", "", domain.ExactOutput},
		{"buy 12,345,678.5 bonk", domain.IntentBuyToken, "12345678.5", "bonk", "", domain.ExactOutput},
		{"sell 1,5 SOL", domain.IntentSellToken, "1.5", "SOL", "", domain.ExactInput},
		{"show me yield options for USDC", domain.IntentExploreYield, "", "USDC", "", ""},
		{"what's my balance", domain.IntentViewPortfolio, "", "", "", ""},
		{"tell me a joke", domain.IntentOutOfScope, "", "", "", ""},
		{"buy 0 SOL", domain.IntentOutOfScope, "", "", "", ""},
	}

	c := NewPatternClassifier()
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			in, err := c.Classify(context.Background(), tt.text, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, in.Kind)
			assert.Equal(t, SourcePattern, in.Source)
			assert.NotEmpty(t, in.Message)
			if tt.amount == "" {
				assert.Nil(t, in.Amount)
			} else {
				require.NotNil(t, in.Amount)
				assert.True(t, in.Amount.Equal(decimal.RequireFromString(tt.amount)), "amount %s", in.Amount)
			}
			assert.Equal(t, tt.token, in.Token)
			assert.Equal(t, tt.payWith, in.PayWith)
			assert.Equal(t, tt.mode, in.FixingMode)
		})
	}
}

func TestParseOutput(t *testing.T) {
	in, err := parseOutput(`{"intent":"buy_sol","amount":0.1,"token":null,"message":"Sure"}`)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentBuySOL, in.Kind)
	assert.Equal(t, "SOL", in.Token, "buy_sol implies the token")
	assert.True(t, in.Amount.Equal(decimal.RequireFromString("0.1")))

	in, err = parseOutput("```json\n{\"intent\":\"sell_token\",\"amount\":\"25\",\"token\":\"JUP\",\"payWith\":\"USDC\",\"fixingMode\":\"exact_input\",\"message\":\"ok\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "USDC", in.PayWith)
	assert.Equal(t, domain.ExactInput, in.FixingMode)

	in, err = parseOutput(`{"intent":"explore_yield","amount":null,"token":"USDC","message":"Options"}`)
	require.NoError(t, err)
	assert.Nil(t, in.Amount)

	for _, bad := range []string{
		`not json`,
		`{"intent":"launch_rocket","message":""}`,
		`{"intent":"buy_token","amount":null,"token":"BONK","message":""}`,
		`{"intent":"buy_token","amount":5,"token":null,"message":""}`,
		`{"intent":"sell_token","amount":-1,"token":"JUP","message":""}`,
		`{"intent":"sell_token","amount":1,"token":"JUP","fixingMode":"SIDEWAYS","message":""}`,
	} {
		_, err := parseOutput(bad)
		assert.ErrorIs(t, err, ErrNonConforming, bad)
	}
}

func completionServer(t *testing.T, content string, check func(req map[string]interface{})) *OpenAIClassifier {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var req map[string]interface{}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		if check != nil {
			check(req)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]interface{}{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(server.Close)
	return NewOpenAIClassifier(&OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: server.URL + "/v1",
		History: 2,
		Logger:  zaptest.NewLogger(t),
	})
}

func TestOpenAIClassifier(t *testing.T) {
	history := []chat.Message{
		{Role: chat.RoleUser, Content: "hi"},
		{Role: chat.RoleAssistant, Content: "hello"},
		{Role: chat.RoleUser, Content: "what can you do"},
	}
	c := completionServer(t, `{"intent":"buy_token","amount":100,"token":"BONK","payWith":null,"fixingMode":null,"message":"Quoting 100 BONK"}`,
		func(req map[string]interface{}) {
			assert.Equal(t, DefaultModel, req["model"])
			format, _ := req["response_format"].(map[string]interface{})
			assert.Equal(t, "json_object", format["type"])
			msgs, _ := req["messages"].([]interface{})
			// system prompt, two history messages, the new message
			assert.Len(t, msgs, 4)
		})

	in, err := c.Classify(context.Background(), "buy 100 bonk", history)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentBuyToken, in.Kind)
	assert.Equal(t, "BONK", in.Token)
	assert.Equal(t, SourceOpenAI, in.Source)
	assert.Equal(t, "Quoting 100 BONK", in.Message)
}

func TestOpenAIClassifier_NonConforming(t *testing.T) {
	c := completionServer(t, `Sure! You want to buy BONK.`, nil)
	_, err := c.Classify(context.Background(), "buy 100 bonk", nil)
	assert.ErrorIs(t, err, ErrNonConforming)
}

type stubClassifier struct {
	intent domain.Intent
	err    error
	calls  int
}

func (s *stubClassifier) Classify(context.Context, string, []chat.Message) (domain.Intent, error) {
	s.calls++
	return s.intent, s.err
}

func TestFallback(t *testing.T) {
	amount := decimal.NewFromInt(3)
	good := &stubClassifier{intent: domain.Intent{Kind: domain.IntentSellToken, Amount: &amount, Token: "JUP", Source: SourceOpenAI}}
	f := &Fallback{Primary: good, Secondary: NewPatternClassifier(), Logger: zaptest.NewLogger(t)}
	in, err := f.Classify(context.Background(), "sell 1 wif", nil)
	require.NoError(t, err)
	assert.Equal(t, SourceOpenAI, in.Source)

	for name, primary := range map[string]*stubClassifier{
		"error":          {err: errors.New("503 service unavailable")},
		"unknown intent": {intent: domain.Intent{Kind: "dance"}},
		"missing amount": {intent: domain.Intent{Kind: domain.IntentBuyToken, Token: "BONK"}},
	} {
		t.Run(name, func(t *testing.T) {
			f := &Fallback{Primary: primary, Secondary: NewPatternClassifier()}
			in, err := f.Classify(context.Background(), "buy 100 BONK", nil)
			require.NoError(t, err)
			assert.Equal(t, SourcePattern, in.Source)
			assert.Equal(t, domain.IntentBuyToken, in.Kind)
			assert.Equal(t, 1, primary.calls)
		})
	}

	f = &Fallback{Secondary: NewPatternClassifier()}
	in, err = f.Classify(context.Background(), "write me a poem", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentOutOfScope, in.Kind)
}

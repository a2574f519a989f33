package intent

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"solana-swap-assistant/internal/chat"
	"solana-swap-assistant/internal/domain"
)

const (
	// DefaultModel is the completion model used when none is configured.
	DefaultModel = "gpt-4o-mini"

	// DefaultHistory is how many recent messages are sent as context.
	DefaultHistory = 6
)

const systemPrompt = `You classify messages sent to a Solana trading assistant.
Reply with one JSON object and nothing else:
{"intent": one of "buy_sol", "buy_token", "sell_token", "explore_yield", "view_portfolio", "out_of_scope",
 "amount": number or null,
 "token": token symbol, name or mint as the user wrote it, or null,
 "payWith": the counter token if the user named one, or null,
 "fixingMode": "EXACT_INPUT" when the amount is what the user spends, "EXACT_OUTPUT" when it is what they receive, or null,
 "message": a short reply to show the user}
Use buy_sol when the user wants SOL, buy_token for any other token bought, sell_token when they sell or swap a token away.
Trade intents need an amount and a token. Anything unrelated to trading, yield or the user's portfolio is out_of_scope.`

// OpenAIConfig configures an OpenAIClassifier.
type OpenAIConfig struct {
	APIKey     string
	Model      string
	BaseURL    string // optional, for compatible endpoints
	History    int    // recent messages sent as context; 0 uses DefaultHistory
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// OpenAIClassifier classifies with a chat completion in JSON mode.
type OpenAIClassifier struct {
	client  *openai.Client
	model   string
	history int
	logger  *zap.Logger
}

// NewOpenAIClassifier creates a completion-backed classifier.
func NewOpenAIClassifier(config *OpenAIConfig) *OpenAIClassifier {
	cfg := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		cfg.BaseURL = config.BaseURL
	}
	if config.HTTPClient != nil {
		cfg.HTTPClient = config.HTTPClient
	}
	model := config.Model
	if model == "" {
		model = DefaultModel
	}
	history := config.History
	if history <= 0 {
		history = DefaultHistory
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIClassifier{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		history: history,
		logger:  logger.Named("intent"),
	}
}

// Compile-time interface check.
var _ Classifier = (*OpenAIClassifier)(nil)

// Classify implements Classifier. Output that breaks the contract is
// reported as ErrNonConforming.
func (c *OpenAIClassifier) Classify(ctx context.Context, text string, history []chat.Message) (domain.Intent, error) {
	messages := []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: systemPrompt}}
	if len(history) > c.history {
		history = history[len(history)-c.history:]
	}
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == chat.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return domain.Intent{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.Intent{}, fmt.Errorf("%w: no choices", ErrNonConforming)
	}

	in, err := parseOutput(resp.Choices[0].Message.Content)
	if err != nil {
		c.logger.Debug("classifier output rejected",
			zap.String("content", resp.Choices[0].Message.Content),
			zap.Error(err))
		return domain.Intent{}, err
	}
	in.Source = SourceOpenAI
	return in, nil
}

package llm

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/ensemble/internal/chat"
)

// OpenAIProvider implements Provider over any OpenAI-compatible chat
// completion API. With a BaseURL override it also fronts compatible hosts
// (Cerebras, Ollama, vLLM), which is how the fast routing model is served.
type OpenAIProvider struct {
	client       *openai.Client
	name         string
	defaultModel string
}

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	// APIKey is required.
	APIKey string

	// BaseURL overrides the API host for OpenAI-compatible backends.
	BaseURL string

	// DefaultModel is used when a request does not name a model.
	DefaultModel string

	// Name overrides the provider identifier; defaults to "openai".
	Name string
}

// NewOpenAIProvider creates a provider from the given configuration.
func NewOpenAIProvider(config OpenAIConfig) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, chat.ErrConfig("openai: api key is required", nil)
	}
	if config.DefaultModel == "" {
		config.DefaultModel = openai.GPT4oMini
	}
	if config.Name == "" {
		config.Name = "openai"
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if strings.TrimSpace(config.BaseURL) != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(clientConfig),
		name:         config.Name,
		defaultModel: config.DefaultModel,
	}, nil
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Complete performs one chat completion round-trip.
func (p *OpenAIProvider) Complete(ctx context.Context, req *Request) (string, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, msg := range req.Messages {
		role := openai.ChatMessageRoleUser
		if msg.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if req.JSONOnly {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", chat.ErrUpstream("openai: completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", chat.ErrUpstream("openai: empty response", nil)
	}

	return resp.Choices[0].Message.Content, nil
}

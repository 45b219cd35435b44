package llm

import (
	"context"
	"errors"
	"fmt"
	"omnichat/core"
	"sync"

	"github.com/sashabaranov/go-openai"
)

const (
	DefaultModel        = openai.GPT3Dot5Turbo
	DefaultSystemPrompt = "I'm a Student using ChatGPT for learning"
	DefaultBaseURL      = "https://api.openai.com/v1"
)

// Config holds the configuration for OpenAI service
type Config struct {
	APIKey       string  `json:"api_key,omitempty"`
	BaseURL      string  `json:"base_url,omitempty"`
	Model        string  `json:"model,omitempty"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
	Temperature  float32 `json:"temperature,omitempty"`
}

// OpenAILLMService sends the whole conversation to an OpenAI-compatible
// chat completion endpoint and returns the first choice.
type OpenAILLMService struct {
	client       *openai.Client
	apiKey       string
	baseURL      string
	model        string
	systemPrompt string
	maxTokens    int
	temperature  float32
	logger       *core.Logger

	isInitialized bool
	mu            sync.RWMutex
}

// NewOpenAILLMService creates a new instance of OpenAILLMService
func NewOpenAILLMService(config Config, logger *core.Logger) *OpenAILLMService {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.SystemPrompt == "" {
		config.SystemPrompt = DefaultSystemPrompt
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &OpenAILLMService{
		apiKey:       config.APIKey,
		baseURL:      config.BaseURL,
		model:        config.Model,
		systemPrompt: config.SystemPrompt,
		maxTokens:    config.MaxTokens,
		temperature:  config.Temperature,
		logger:       logger.With(map[string]interface{}{"component": "openai"}),
	}
}

// Init creates the API client. Unlike a connectivity probe this never
// touches the network.
func (s *OpenAILLMService) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isInitialized {
		return nil
	}
	if s.apiKey == "" {
		return errors.New("OpenAI API key is required")
	}

	cfg := openai.DefaultConfig(s.apiKey)
	cfg.BaseURL = s.baseURL
	s.client = openai.NewClientWithConfig(cfg)
	s.isInitialized = true
	return nil
}

// Cleanup releases the client.
func (s *OpenAILLMService) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = nil
	s.isInitialized = false
	return nil
}

// Model returns the configured model name.
func (s *OpenAILLMService) Model() string {
	return s.model
}

// Complete sends the system prompt plus the mapped conversation and returns
// the content of the first choice. An empty string with a nil error means the
// response carried no choices.
func (s *OpenAILLMService) Complete(ctx context.Context, conversation []core.Message) (string, error) {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client == nil {
		return "", errors.New("OpenAI service not initialized")
	}

	req := s.BuildRequest(conversation)
	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		s.logger.With(map[string]interface{}{"model": req.Model}).Warn("completion returned no choices")
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// BuildRequest maps the conversation into a chat completion request. The
// system message always comes first; the rest keeps insertion order.
func (s *OpenAILLMService) BuildRequest(conversation []core.Message) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(conversation)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: s.systemPrompt,
	})
	for _, msg := range conversation {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    convertRole(msg.Origin()),
			Content: msg.Text(),
		})
	}

	return openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    messages,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	}
}

// convertRole maps an origin to a chat role. Anything that is not the
// assistant is treated as the user.
func convertRole(origin core.Origin) string {
	if origin == core.OriginAssistant {
		return openai.ChatMessageRoleAssistant
	}
	return openai.ChatMessageRoleUser
}

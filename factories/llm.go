package factories

import (
	"errors"
	"omnichat/core"
	llmhandler "omnichat/handlers/llm"
	openaillm "omnichat/services/openai/llm"
)

// LLMFactoryConfig selects the completion provider. Set one provider config;
// when several are set the first in field order wins. Every provider speaks
// the OpenAI chat protocol, so all of them are served by the OpenAI service.
type LLMFactoryConfig struct {
	OpenAIConfig     *openaillm.Config `json:"openai,omitempty"`
	TogetherConfig   *openaillm.Config `json:"together,omitempty"`
	GroqConfig       *openaillm.Config `json:"groq,omitempty"`
	DeepSeekConfig   *openaillm.Config `json:"deepseek,omitempty"`
	OpenRouterConfig *openaillm.Config `json:"openrouter,omitempty"`
	FireworksConfig  *openaillm.Config `json:"fireworks,omitempty"`
	CerebrasConfig   *openaillm.Config `json:"cerebras,omitempty"`
	XAIConfig        *openaillm.Config `json:"xai,omitempty"`
	MistralConfig    *openaillm.Config `json:"mistral,omitempty"`
	PerplexityConfig *openaillm.Config `json:"perplexity,omitempty"`
}

// DefaultLLMFactoryConfig selects OpenAI with the stock model and system prompt.
func DefaultLLMFactoryConfig() LLMFactoryConfig {
	return LLMFactoryConfig{
		OpenAIConfig: &openaillm.Config{
			Model:        openaillm.DefaultModel,
			SystemPrompt: openaillm.DefaultSystemPrompt,
		},
	}
}

// completionProvider names where a provider lives and what it runs when the
// settings leave those blank.
type completionProvider struct {
	name    string
	slot    func(*LLMFactoryConfig) **openaillm.Config
	baseURL string
	model   string
}

var completionProviders = []completionProvider{
	{"openai", func(c *LLMFactoryConfig) **openaillm.Config { return &c.OpenAIConfig }, openaillm.DefaultBaseURL, openaillm.DefaultModel},
	{"together", func(c *LLMFactoryConfig) **openaillm.Config { return &c.TogetherConfig }, "https://api.together.xyz/v1", "meta-llama/Llama-3.3-70B-Instruct-Turbo"},
	{"groq", func(c *LLMFactoryConfig) **openaillm.Config { return &c.GroqConfig }, "https://api.groq.com/openai/v1", "llama-3.3-70b-versatile"},
	{"deepseek", func(c *LLMFactoryConfig) **openaillm.Config { return &c.DeepSeekConfig }, "https://api.deepseek.com/v1", "deepseek-chat"},
	{"openrouter", func(c *LLMFactoryConfig) **openaillm.Config { return &c.OpenRouterConfig }, "https://openrouter.ai/api/v1", "openai/gpt-4o"},
	{"fireworks", func(c *LLMFactoryConfig) **openaillm.Config { return &c.FireworksConfig }, "https://api.fireworks.ai/inference/v1", "accounts/fireworks/models/llama-v3p3-70b-instruct"},
	{"cerebras", func(c *LLMFactoryConfig) **openaillm.Config { return &c.CerebrasConfig }, "https://api.cerebras.ai/v1", "llama-3.3-70b"},
	{"xai", func(c *LLMFactoryConfig) **openaillm.Config { return &c.XAIConfig }, "https://api.x.ai/v1", "grok-3"},
	{"mistral", func(c *LLMFactoryConfig) **openaillm.Config { return &c.MistralConfig }, "https://api.mistral.ai/v1", "mistral-large-latest"},
	{"perplexity", func(c *LLMFactoryConfig) **openaillm.Config { return &c.PerplexityConfig }, "https://api.perplexity.ai", "sonar-pro"},
}

// selected returns the first configured provider and a copy of its settings
// with the provider defaults filled in.
func (c LLMFactoryConfig) selected() (string, openaillm.Config, bool) {
	for _, p := range completionProviders {
		cfg := *p.slot(&c)
		if cfg == nil {
			continue
		}
		out := *cfg
		if out.BaseURL == "" {
			out.BaseURL = p.baseURL
		}
		if out.Model == "" {
			out.Model = p.model
		}
		return p.name, out, true
	}
	return "", openaillm.Config{}, false
}

// BuildLLMService constructs the completion service for the configured provider.
func BuildLLMService(config LLMFactoryConfig, logger *core.Logger) (*openaillm.OpenAILLMService, error) {
	name, cfg, ok := config.selected()
	if !ok {
		return nil, errors.New("LLMFactoryConfig: no provider config specified")
	}
	if logger != nil {
		logger = logger.With(map[string]any{"provider": name})
	}
	return openaillm.NewOpenAILLMService(cfg, logger), nil
}

func (c LLMFactoryConfig) clone() LLMFactoryConfig {
	var out LLMFactoryConfig
	for _, p := range completionProviders {
		*p.slot(&out) = clonePtr(*p.slot(&c))
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

var _ llmhandler.LLMService = (*openaillm.OpenAILLMService)(nil)

package factories

import (
	"context"
	"fmt"

	"omnichat/core"
	"omnichat/handlers/conversation"
	llmhandler "omnichat/handlers/llm"
	ttshandler "omnichat/handlers/tts"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// initializer is implemented by services that validate their configuration
// before first use.
type initializer interface {
	Init(ctx context.Context) error
}

// initService runs Init and logs a failure. The service stays wired so that
// its requests fail at call time and are reported like any other error.
func initService(ctx context.Context, service initializer, role string, logger *core.Logger) {
	if err := service.Init(ctx); err != nil {
		logger.With(map[string]any{"error": err, "service": role}).Warn("service not ready, requests will fail")
	}
}

// SessionTTSConfig bundles narrator config with primary and optional fallback service factory configs.
type SessionTTSConfig struct {
	// HandlerConfig controls narrator behaviour (normalization, length cap).
	HandlerConfig ttshandler.TTSConfig `json:"handler"`
	// ServiceConfig selects and configures the primary TTS provider.
	ServiceConfig TTSFactoryConfig `json:"service"`
	// FallbackServiceConfigs is an ordered list of fallback providers tried if the primary fails.
	FallbackServiceConfigs []TTSFactoryConfig `json:"fallbacks,omitempty"`
}

// DefaultSessionTTSConfig returns a SessionTTSConfig with sensible handler defaults.
func DefaultSessionTTSConfig() SessionTTSConfig {
	return SessionTTSConfig{
		HandlerConfig: ttshandler.DefaultConfig(),
	}
}

// BuildNarrator constructs a Narrator with primary and fallback services wired up.
func (c SessionTTSConfig) BuildNarrator(ctx context.Context, player core.AudioPlayer, logger *core.Logger) (*ttshandler.Narrator, error) {
	primary, err := BuildTTSService(c.ServiceConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("tts primary service: %w", err)
	}
	initService(ctx, primary, "tts", logger)
	narrator := ttshandler.NewNarrator(primary, player, c.HandlerConfig, logger)
	for i, fbCfg := range c.FallbackServiceConfigs {
		fb, err := BuildTTSService(fbCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("tts fallback[%d]: %w", i, err)
		}
		initService(ctx, fb, fmt.Sprintf("tts fallback[%d]", i), logger)
		narrator.WithBackupService(fb)
	}
	return narrator, nil
}

// SessionLLMConfig bundles LLM handler config with primary and fallback service factory configs.
type SessionLLMConfig struct {
	// HandlerConfig controls handler-level behaviour (per-attempt timeout).
	HandlerConfig llmhandler.LLMHandlerConfig `json:"handler"`
	// ServiceConfig selects and configures the primary LLM provider.
	// Set exactly one provider field inside LLMFactoryConfig.
	ServiceConfig LLMFactoryConfig `json:"service"`
	// FallbackServiceConfigs is an ordered list of fallback providers tried if the primary fails.
	FallbackServiceConfigs []LLMFactoryConfig `json:"fallbacks,omitempty"`
}

// DefaultSessionLLMConfig returns a SessionLLMConfig with sensible handler defaults.
func DefaultSessionLLMConfig() SessionLLMConfig {
	return SessionLLMConfig{
		HandlerConfig: llmhandler.DefaultConfig(),
	}
}

// BuildHandler constructs an LLMHandler with primary and fallback services wired up.
func (c SessionLLMConfig) BuildHandler(ctx context.Context, logger *core.Logger) (*llmhandler.LLMHandler, error) {
	primary, err := BuildLLMService(c.ServiceConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("llm primary service: %w", err)
	}
	initService(ctx, primary, "llm", logger)
	handler := llmhandler.NewLLMHandler(primary, c.HandlerConfig, logger)
	for i, fbCfg := range c.FallbackServiceConfigs {
		fb, err := BuildLLMService(fbCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("llm fallback[%d]: %w", i, err)
		}
		initService(ctx, fb, fmt.Sprintf("llm fallback[%d]", i), logger)
		handler.WithBackupService(fb)
	}
	return handler, nil
}

// SessionConfig is the top-level configuration of one chat session: the
// completion chain, the speech chain and the conversation seed.
type SessionConfig struct {
	TTS          SessionTTSConfig                `json:"tts"`
	LLM          SessionLLMConfig                `json:"llm"`
	Conversation conversation.ConversationConfig `json:"conversation"`
}

func baseSessionConfig() SessionConfig {
	return SessionConfig{
		TTS:          DefaultSessionTTSConfig(),
		LLM:          DefaultSessionLLMConfig(),
		Conversation: conversation.DefaultConfig(),
	}
}

// DefaultSessionConfig returns a SessionConfig that talks to OpenAI and
// ElevenLabs with the stock model, prompt, voice and greeting.
func DefaultSessionConfig() SessionConfig {
	cfg := baseSessionConfig()
	cfg.applyProviderDefaults()
	return cfg
}

// applyProviderDefaults selects the stock providers when none were configured.
func (c *SessionConfig) applyProviderDefaults() {
	if c.LLM.ServiceConfig == (LLMFactoryConfig{}) {
		c.LLM.ServiceConfig = DefaultLLMFactoryConfig()
	}
	if c.TTS.ServiceConfig == (TTSFactoryConfig{}) {
		c.TTS.ServiceConfig = DefaultTTSFactoryConfig()
	}
}

// SessionConfigFromJSON parses a JSON blob into a SessionConfig. Fields absent
// from the JSON keep their defaults. API keys should be injected after loading
// via env vars rather than stored in config files.
func SessionConfigFromJSON(data []byte) (SessionConfig, error) {
	cfg := baseSessionConfig()
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return SessionConfig{}, fmt.Errorf("session config: %w", err)
	}
	cfg.applyProviderDefaults()
	return cfg, nil
}

// Clone returns a copy that shares no provider config with c.
func (c SessionConfig) Clone() SessionConfig {
	out := c
	out.LLM.ServiceConfig = c.LLM.ServiceConfig.clone()
	out.LLM.FallbackServiceConfigs = nil
	for _, fb := range c.LLM.FallbackServiceConfigs {
		out.LLM.FallbackServiceConfigs = append(out.LLM.FallbackServiceConfigs, fb.clone())
	}
	out.TTS.ServiceConfig = c.TTS.ServiceConfig.clone()
	out.TTS.FallbackServiceConfigs = nil
	for _, fb := range c.TTS.FallbackServiceConfigs {
		out.TTS.FallbackServiceConfigs = append(out.TTS.FallbackServiceConfigs, fb.clone())
	}
	return out
}

// APIKeys holds API credentials for all supported service providers.
// Pass to SessionConfig.InjectAPIKeys after loading from JSON so that
// secrets are never stored in config files.
type APIKeys struct {
	OpenAI     string // Used for OpenAI LLM provider.
	Together   string // Used for Together AI LLM provider.
	Groq       string // Used for Groq LLM provider.
	DeepSeek   string // Used for DeepSeek LLM provider.
	OpenRouter string // Used for OpenRouter LLM provider.
	Fireworks  string // Used for Fireworks AI LLM provider.
	Cerebras   string // Used for Cerebras LLM provider.
	XAI        string // Used for xAI (Grok) LLM provider.
	Mistral    string // Used for Mistral AI LLM provider.
	Perplexity string // Used for Perplexity LLM provider.
	ElevenLabs string // Used for ElevenLabs TTS provider.
}

// InjectAPIKeys applies API credentials to all configured service providers
// (primary and fallbacks). Keys already present in the config win.
func (c *SessionConfig) InjectAPIKeys(keys APIKeys) {
	injectLLMKeys(&c.LLM.ServiceConfig, keys)
	for i := range c.LLM.FallbackServiceConfigs {
		injectLLMKeys(&c.LLM.FallbackServiceConfigs[i], keys)
	}

	injectTTSKeys(&c.TTS.ServiceConfig, keys)
	for i := range c.TTS.FallbackServiceConfigs {
		injectTTSKeys(&c.TTS.FallbackServiceConfigs[i], keys)
	}
}

// injectLLMKeys applies the relevant API key to a single LLMFactoryConfig.
func injectLLMKeys(cfg *LLMFactoryConfig, keys APIKeys) {
	if cfg.OpenAIConfig != nil && cfg.OpenAIConfig.APIKey == "" {
		cfg.OpenAIConfig.APIKey = keys.OpenAI
	}
	if cfg.TogetherConfig != nil && cfg.TogetherConfig.APIKey == "" {
		cfg.TogetherConfig.APIKey = keys.Together
	}
	if cfg.GroqConfig != nil && cfg.GroqConfig.APIKey == "" {
		cfg.GroqConfig.APIKey = keys.Groq
	}
	if cfg.DeepSeekConfig != nil && cfg.DeepSeekConfig.APIKey == "" {
		cfg.DeepSeekConfig.APIKey = keys.DeepSeek
	}
	if cfg.OpenRouterConfig != nil && cfg.OpenRouterConfig.APIKey == "" {
		cfg.OpenRouterConfig.APIKey = keys.OpenRouter
	}
	if cfg.FireworksConfig != nil && cfg.FireworksConfig.APIKey == "" {
		cfg.FireworksConfig.APIKey = keys.Fireworks
	}
	if cfg.CerebrasConfig != nil && cfg.CerebrasConfig.APIKey == "" {
		cfg.CerebrasConfig.APIKey = keys.Cerebras
	}
	if cfg.XAIConfig != nil && cfg.XAIConfig.APIKey == "" {
		cfg.XAIConfig.APIKey = keys.XAI
	}
	if cfg.MistralConfig != nil && cfg.MistralConfig.APIKey == "" {
		cfg.MistralConfig.APIKey = keys.Mistral
	}
	if cfg.PerplexityConfig != nil && cfg.PerplexityConfig.APIKey == "" {
		cfg.PerplexityConfig.APIKey = keys.Perplexity
	}
}

// injectTTSKeys applies the relevant API key to a single TTSFactoryConfig.
func injectTTSKeys(cfg *TTSFactoryConfig, keys APIKeys) {
	if cfg.ElevenLabsConfig != nil && cfg.ElevenLabsConfig.APIKey == "" {
		cfg.ElevenLabsConfig.APIKey = keys.ElevenLabs
	}
}

// BuildSession constructs the completion and speech chains and a session
// seeded with the configured greeting. State changes go to sink and clips to
// player. A nil logger falls back to the session logger carried by ctx.
func (c SessionConfig) BuildSession(ctx context.Context, id string, sink core.EventSink, player core.AudioPlayer, logger *core.Logger) (*conversation.Session, error) {
	if logger == nil {
		logger = core.SessionLoggerFromContext(ctx)
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	llm, err := c.LLM.BuildHandler(ctx, logger)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	narrator, err := c.TTS.BuildNarrator(ctx, player, logger)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	return conversation.NewSession(ctx, id, llm, narrator, c.Conversation, logger).WithSink(sink), nil
}

// NewSessionBuilder returns the per-view constructor handed to the server.
// Every view gets a fresh id, its own logger and freshly resolved config.
func NewSessionBuilder(settings SettingsConfig, keys APIKeys, logger *core.Logger) func(ctx context.Context, sink core.EventSink, player core.AudioPlayer) (*conversation.Session, error) {
	if logger == nil {
		logger = core.GetLogger()
	}
	return func(ctx context.Context, sink core.EventSink, player core.AudioPlayer) (*conversation.Session, error) {
		id := uuid.NewString()
		ctx = core.ContextWithSessionLogger(ctx, logger.With(map[string]any{"session_id": id}))

		cfg, err := settings.ResolveSession(ctx, keys)
		if err != nil {
			return nil, fmt.Errorf("resolve session config: %w", err)
		}
		return cfg.BuildSession(ctx, id, sink, player, nil)
	}
}

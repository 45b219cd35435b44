package factories

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"omnichat/core"
	"omnichat/server"

	"github.com/bytedance/sonic"
)

// SessionAPIConfig describes an HTTP endpoint that returns a SessionConfig JSON payload.
// Called once per page view to allow dynamic configuration per visitor.
type SessionAPIConfig struct {
	// URL is the endpoint to request.
	URL string `json:"url"`
	// Method is the HTTP method. Defaults to "POST" when Body is set, "GET" otherwise.
	Method string `json:"method,omitempty"`
	// Headers are additional HTTP headers to include in the request.
	Headers map[string]string `json:"headers,omitempty"`
	// Body is an optional JSON body to send with the request.
	Body json.RawMessage `json:"body,omitempty"`
}

var sessionAPIClient = &http.Client{Timeout: 10 * time.Second}

// Fetch calls the configured endpoint and parses the response as a SessionConfig.
func (c *SessionAPIConfig) Fetch(ctx context.Context) (SessionConfig, error) {
	method := c.Method
	if method == "" {
		if len(c.Body) > 0 {
			method = http.MethodPost
		} else {
			method = http.MethodGet
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL, bytes.NewReader(c.Body))
	if err != nil {
		return SessionConfig{}, fmt.Errorf("session api: %w", err)
	}
	if len(c.Body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}

	resp, err := sessionAPIClient.Do(req)
	if err != nil {
		return SessionConfig{}, fmt.Errorf("session api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SessionConfig{}, fmt.Errorf("session api: unexpected status %d from %s", resp.StatusCode, c.URL)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return SessionConfig{}, fmt.Errorf("session api: read response: %w", err)
	}

	return SessionConfigFromJSON(buf.Bytes())
}

// SettingsConfig is the top-level config loaded from settings.json.
// It bundles the HTTP server config with the session config, given inline or
// fetched per view from an HTTP endpoint.
type SettingsConfig struct {
	// Server configures the listener and the page.
	Server server.Config `json:"server"`
	// Logging configures the rotated JSON-lines log file.
	Logging LoggingConfig `json:"logging"`
	// SessionAPI, when set, is called per view to fetch the SessionConfig dynamically.
	SessionAPI *SessionAPIConfig `json:"session_api,omitempty"`
	// Session, when set, provides inline session config directly in settings.json.
	Session *SessionConfig `json:"session_config,omitempty"`
}

// LoggingConfig selects the optional file sinks.
type LoggingConfig struct {
	File         string              `json:"file,omitempty"`
	TelemetryDir string              `json:"telemetry_dir,omitempty"`
	Rotation     core.RotationConfig `json:"rotation"`
}

// DefaultSettingsConfig returns a SettingsConfig pre-filled with defaults.
func DefaultSettingsConfig() SettingsConfig {
	return SettingsConfig{
		Server:  server.DefaultConfig(),
		Logging: LoggingConfig{Rotation: core.DefaultRotationConfig()},
	}
}

// SettingsConfigFromJSON parses a JSON blob into a SettingsConfig. Fields
// absent from the JSON keep their defaults.
func SettingsConfigFromJSON(data []byte) (SettingsConfig, error) {
	var raw struct {
		Server        *server.Config    `json:"server,omitempty"`
		Logging       *LoggingConfig    `json:"logging,omitempty"`
		SessionAPI    *SessionAPIConfig `json:"session_api,omitempty"`
		SessionConfig json.RawMessage   `json:"session_config,omitempty"`
	}
	// Decode straight into the defaults so absent sections keep them.
	cfg := DefaultSettingsConfig()
	raw.Server = &cfg.Server
	raw.Logging = &cfg.Logging
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: %w", err)
	}
	cfg.SessionAPI = raw.SessionAPI

	if len(raw.SessionConfig) > 0 {
		sc, err := SessionConfigFromJSON(raw.SessionConfig)
		if err != nil {
			return SettingsConfig{}, fmt.Errorf("settings: %w", err)
		}
		cfg.Session = &sc
	}
	return cfg, nil
}

// SettingsConfigFromFile reads and parses a SettingsConfig from a JSON file.
func SettingsConfigFromFile(path string) (SettingsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultSettingsConfig(), fmt.Errorf("settings: read %q: %w", path, err)
	}
	return SettingsConfigFromJSON(data)
}

// SettingsConfigFromEnv loads settings from SETTINGS_JSON_B64 when set, else
// from the file at SETTINGS_PATH (default ./settings.json). A missing file is
// not an error; defaults are returned. LOG_FILE and TELEMETRY_DIR override
// the logging section.
func SettingsConfigFromEnv(logger *core.Logger) (SettingsConfig, error) {
	if logger == nil {
		logger = core.GetLogger()
	}
	var (
		settings SettingsConfig
		err      error
	)
	if b64 := os.Getenv("SETTINGS_JSON_B64"); b64 != "" {
		data, decErr := base64.StdEncoding.DecodeString(b64)
		if decErr != nil {
			return DefaultSettingsConfig(), fmt.Errorf("settings: decode SETTINGS_JSON_B64: %w", decErr)
		}
		if settings, err = SettingsConfigFromJSON(data); err != nil {
			return DefaultSettingsConfig(), err
		}
		logger.Info("loaded settings from SETTINGS_JSON_B64")
	} else {
		path := GetEnv("SETTINGS_PATH", "./settings.json")
		settings, err = SettingsConfigFromFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return DefaultSettingsConfig(), err
			}
			logger.With(map[string]any{"path": path}).Debug("no settings file, using defaults")
			settings = DefaultSettingsConfig()
		}
	}

	if f := os.Getenv("LOG_FILE"); f != "" {
		settings.Logging.File = f
	}
	if d := os.Getenv("TELEMETRY_DIR"); d != "" {
		settings.Logging.TelemetryDir = d
	}
	return settings, nil
}

// ResolveSession returns the session config for a new view: fetched from the
// session API when configured, else the inline config, else defaults. Keys
// are injected last so config files never need to carry them.
func (s SettingsConfig) ResolveSession(ctx context.Context, keys APIKeys) (SessionConfig, error) {
	var cfg SessionConfig
	switch {
	case s.SessionAPI != nil:
		fetched, err := s.SessionAPI.Fetch(ctx)
		if err != nil {
			return SessionConfig{}, err
		}
		cfg = fetched
	case s.Session != nil:
		// Key injection must never reach the shared settings.
		cfg = s.Session.Clone()
	default:
		cfg = DefaultSessionConfig()
	}
	cfg.InjectAPIKeys(keys)
	return cfg, nil
}

// APIKeysFromEnv reads provider credentials. The OpenAI and ElevenLabs keys
// also accept the VITE_OPENAI_KEY and VITE_API_KEY names.
func APIKeysFromEnv() APIKeys {
	return APIKeys{
		OpenAI:     firstEnv("OPENAI_API_KEY", "VITE_OPENAI_KEY"),
		Together:   GetEnv("TOGETHER_API_KEY", ""),
		Groq:       GetEnv("GROQ_API_KEY", ""),
		DeepSeek:   GetEnv("DEEPSEEK_API_KEY", ""),
		OpenRouter: GetEnv("OPENROUTER_API_KEY", ""),
		Fireworks:  GetEnv("FIREWORKS_API_KEY", ""),
		Cerebras:   GetEnv("CEREBRAS_API_KEY", ""),
		XAI:        GetEnv("XAI_API_KEY", ""),
		Mistral:    GetEnv("MISTRAL_API_KEY", ""),
		Perplexity: GetEnv("PERPLEXITY_API_KEY", ""),
		ElevenLabs: firstEnv("ELEVENLABS_API_KEY", "VITE_API_KEY"),
	}
}

// GetEnv returns the value of key or fallback when it is unset or empty.
func GetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

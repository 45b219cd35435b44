package factories

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"omnichat/core"
	openaillm "omnichat/services/openai/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsConfigFromJSON_Defaults(t *testing.T) {
	cfg, err := SettingsConfigFromJSON([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultSettingsConfig(), cfg)
	assert.Nil(t, cfg.Session)
	assert.Nil(t, cfg.SessionAPI)
}

func TestSettingsConfigFromJSON_PartialServerKeepsDefaults(t *testing.T) {
	cfg, err := SettingsConfigFromJSON([]byte(`{"server":{"addr":":9000"}}`))
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "Omni", cfg.Server.AssistantName)
	assert.Equal(t, core.DefaultClipCapacity, cfg.Server.ClipCapacity)
}

func TestSettingsConfigFromJSON_InlineSession(t *testing.T) {
	cfg, err := SettingsConfigFromJSON([]byte(`{
		"session_config": {
			"llm": {"service": {"groq": {"model": "llama-3.1-8b-instant"}}},
			"conversation": {"greeting": "Hey!"}
		}
	}`))
	require.NoError(t, err)
	require.NotNil(t, cfg.Session)
	assert.Nil(t, cfg.Session.LLM.ServiceConfig.OpenAIConfig)
	require.NotNil(t, cfg.Session.LLM.ServiceConfig.GroqConfig)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.Session.LLM.ServiceConfig.GroqConfig.Model)
	assert.Equal(t, "Hey!", cfg.Session.Conversation.Greeting)
	require.NotNil(t, cfg.Session.TTS.ServiceConfig.ElevenLabsConfig, "speech provider falls back to the default")
	assert.True(t, cfg.Session.TTS.HandlerConfig.Normalize)
}

func TestSettingsConfigFromJSON_Invalid(t *testing.T) {
	_, err := SettingsConfigFromJSON([]byte(`{"server":`))
	assert.Error(t, err)
}

func TestSettingsConfigFromEnv(t *testing.T) {
	t.Run("base64 settings", func(t *testing.T) {
		t.Setenv("SETTINGS_JSON_B64", base64.StdEncoding.EncodeToString([]byte(`{"server":{"assistant_name":"Nova"}}`)))
		cfg, err := SettingsConfigFromEnv(core.NewNopLogger())
		require.NoError(t, err)
		assert.Equal(t, "Nova", cfg.Server.AssistantName)
	})

	t.Run("bad base64", func(t *testing.T) {
		t.Setenv("SETTINGS_JSON_B64", "%%%")
		_, err := SettingsConfigFromEnv(core.NewNopLogger())
		assert.Error(t, err)
	})

	t.Run("missing file uses defaults", func(t *testing.T) {
		t.Setenv("SETTINGS_JSON_B64", "")
		t.Setenv("SETTINGS_PATH", filepath.Join(t.TempDir(), "absent.json"))
		cfg, err := SettingsConfigFromEnv(core.NewNopLogger())
		require.NoError(t, err)
		assert.Equal(t, DefaultSettingsConfig().Server, cfg.Server)
	})

	t.Run("file with env overrides", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "settings.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"logging":{"file":"from-file.log"}}`), 0o644))
		t.Setenv("SETTINGS_JSON_B64", "")
		t.Setenv("SETTINGS_PATH", path)
		t.Setenv("LOG_FILE", "")
		t.Setenv("TELEMETRY_DIR", "/tmp/telemetry")
		cfg, err := SettingsConfigFromEnv(core.NewNopLogger())
		require.NoError(t, err)
		assert.Equal(t, "from-file.log", cfg.Logging.File)
		assert.Equal(t, "/tmp/telemetry", cfg.Logging.TelemetryDir)
	})

	t.Run("broken file is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "settings.json")
		require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))
		t.Setenv("SETTINGS_JSON_B64", "")
		t.Setenv("SETTINGS_PATH", path)
		_, err := SettingsConfigFromEnv(core.NewNopLogger())
		assert.Error(t, err)
	})
}

func TestAPIKeysFromEnv_Fallbacks(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("VITE_OPENAI_KEY", "vite-openai")
	t.Setenv("ELEVENLABS_API_KEY", "primary-eleven")
	t.Setenv("VITE_API_KEY", "vite-eleven")

	keys := APIKeysFromEnv()
	assert.Equal(t, "vite-openai", keys.OpenAI)
	assert.Equal(t, "primary-eleven", keys.ElevenLabs)
}

func TestResolveSession(t *testing.T) {
	keys := APIKeys{OpenAI: "sk-test", ElevenLabs: "xi-test", Groq: "gsk-test"}

	t.Run("defaults", func(t *testing.T) {
		cfg, err := DefaultSettingsConfig().ResolveSession(context.Background(), keys)
		require.NoError(t, err)
		assert.Equal(t, "sk-test", cfg.LLM.ServiceConfig.OpenAIConfig.APIKey)
		assert.Equal(t, "xi-test", cfg.TTS.ServiceConfig.ElevenLabsConfig.APIKey)
	})

	t.Run("inline fallbacks are not shared", func(t *testing.T) {
		session := DefaultSessionConfig()
		session.LLM.FallbackServiceConfigs = []LLMFactoryConfig{{GroqConfig: &openaillm.Config{}}}
		settings := DefaultSettingsConfig()
		settings.Session = &session

		cfg, err := settings.ResolveSession(context.Background(), keys)
		require.NoError(t, err)
		assert.Equal(t, "gsk-test", cfg.LLM.FallbackServiceConfigs[0].GroqConfig.APIKey)
		assert.Equal(t, "sk-test", cfg.LLM.ServiceConfig.OpenAIConfig.APIKey)
		assert.Equal(t, "", session.LLM.FallbackServiceConfigs[0].GroqConfig.APIKey)
		assert.Equal(t, "", session.LLM.ServiceConfig.OpenAIConfig.APIKey)
	})

	t.Run("session api", func(t *testing.T) {
		var gotMethod, gotHeader string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotHeader = r.Header.Get("X-Tenant")
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"conversation":{"greeting":"Welcome back"}}`))
		}))
		defer srv.Close()

		settings := DefaultSettingsConfig()
		settings.SessionAPI = &SessionAPIConfig{URL: srv.URL, Headers: map[string]string{"X-Tenant": "acme"}}
		cfg, err := settings.ResolveSession(context.Background(), keys)
		require.NoError(t, err)
		assert.Equal(t, http.MethodGet, gotMethod)
		assert.Equal(t, "acme", gotHeader)
		assert.Equal(t, "Welcome back", cfg.Conversation.Greeting)
		assert.Equal(t, "sk-test", cfg.LLM.ServiceConfig.OpenAIConfig.APIKey)
	})

	t.Run("session api failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		settings := DefaultSettingsConfig()
		settings.SessionAPI = &SessionAPIConfig{URL: srv.URL, Body: []byte(`{"view":"home"}`)}
		_, err := settings.ResolveSession(context.Background(), keys)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected status 502")
	})
}

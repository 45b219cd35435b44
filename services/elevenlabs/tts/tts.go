package elevenlabs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"omnichat/core"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

const (
	DefaultBaseURL = "https://api.elevenlabs.io/v1"
	DefaultVoiceID = "HqwE5jJMybfLvDiyr0es"

	maxErrorBody = 4096
)

// ErrEmptyText is returned when there is nothing to synthesize.
var ErrEmptyText = errors.New("elevenlabs: text cannot be empty")

// ElevenLabsTTSConfig holds configuration for the ElevenLabs TTS service
type ElevenLabsTTSConfig struct {
	APIKey  string `json:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
	VoiceID string `json:"voice_id,omitempty"`
	ModelID string `json:"model_id,omitempty"`

	// Voice settings, sent only when at least one is set.
	Stability       float64 `json:"stability,omitempty"`
	SimilarityBoost float64 `json:"similarity_boost,omitempty"`

	// TimeoutSeconds bounds each request. Zero leaves it to the caller's context.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// APIError is a non-200 answer from the text-to-speech endpoint.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("elevenlabs: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("elevenlabs: unexpected status %d: %s", e.StatusCode, e.Detail)
}

// ElevenLabsTTS converts text into MPEG audio through the ElevenLabs REST API.
type ElevenLabsTTS struct {
	config ElevenLabsTTSConfig
	client *http.Client
	logger *core.Logger
}

type (
	elRequest struct {
		Text          string           `json:"text"`
		ModelID       string           `json:"model_id,omitempty"`
		VoiceSettings *elVoiceSettings `json:"voice_settings,omitempty"`
	}

	elVoiceSettings struct {
		Stability       float64 `json:"stability"`
		SimilarityBoost float64 `json:"similarity_boost"`
	}

	elErrorResponse struct {
		Detail struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"detail"`
	}
)

// NewElevenLabsTTS creates a new ElevenLabs TTS service with the provided config
func NewElevenLabsTTS(config ElevenLabsTTSConfig, logger *core.Logger) *ElevenLabsTTS {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.VoiceID == "" {
		config.VoiceID = DefaultVoiceID
	}
	client := &http.Client{}
	if config.TimeoutSeconds > 0 {
		client.Timeout = time.Duration(config.TimeoutSeconds) * time.Second
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &ElevenLabsTTS{
		config: config,
		client: client,
		logger: logger.With(map[string]interface{}{"component": "elevenlabs"}),
	}
}

// WithHTTPClient replaces the HTTP client. Returns the service to allow chaining.
func (e *ElevenLabsTTS) WithHTTPClient(client *http.Client) *ElevenLabsTTS {
	e.client = client
	return e
}

// Init validates the configuration.
func (e *ElevenLabsTTS) Init(ctx context.Context) error {
	if e.config.APIKey == "" {
		return errors.New("ElevenLabs API key is required")
	}
	return nil
}

// Cleanup is a no-op; the service holds no connection.
func (e *ElevenLabsTTS) Cleanup() error {
	return nil
}

// Endpoint returns the URL requests are sent to.
func (e *ElevenLabsTTS) Endpoint() string {
	return fmt.Sprintf("%s/text-to-speech/%s", e.config.BaseURL, e.config.VoiceID)
}

// Synthesize posts text and returns the full MPEG body as a clip.
func (e *ElevenLabsTTS) Synthesize(ctx context.Context, text string) (*core.AudioClip, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	body := elRequest{Text: text, ModelID: e.config.ModelID}
	if e.config.Stability != 0 || e.config.SimilarityBoost != 0 {
		body.VoiceSettings = &elVoiceSettings{
			Stability:       e.config.Stability,
			SimilarityBoost: e.config.SimilarityBoost,
		}
	}
	payload, err := sonic.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.Endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: create request: %w", err)
	}
	req.Header.Set("Accept", string(core.MediaTypeAudioMP3))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.config.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, e.handleError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read audio: %w", err)
	}

	e.logger.With(map[string]interface{}{"bytes": len(audio), "voice_id": e.config.VoiceID}).Debug("synthesized speech")
	return core.NewAudioClip(audio, core.MediaTypeAudioMP3), nil
}

func (e *ElevenLabsTTS) handleError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var parsed elErrorResponse
	if err := sonic.Unmarshal(raw, &parsed); err == nil && parsed.Detail.Message != "" {
		return &APIError{StatusCode: resp.StatusCode, Detail: parsed.Detail.Message}
	}
	return &APIError{StatusCode: resp.StatusCode, Detail: strings.TrimSpace(string(raw))}
}

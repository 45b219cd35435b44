package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"omnichat/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newTestService(t *testing.T, handler http.HandlerFunc) *OpenAILLMService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc := NewOpenAILLMService(Config{APIKey: "test-key", BaseURL: server.URL + "/v1"}, core.NewNopLogger())
	require.NoError(t, svc.Init(context.Background()))
	return svc
}

func conversation() []core.Message {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	return []core.Message{
		core.NewMessage("Hello, I'm Omni! Ask me anything!", core.OriginAssistant, core.GreetingTimestamp),
		core.NewUserMessage("Hello", now),
		core.NewAssistantMessage("Hi!", now),
		core.NewUserMessage("How are you?", now),
	}
}

func TestComplete_SendsSystemPromptAndMappedHistory(t *testing.T) {
	var got capturedRequest
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-3.5-turbo","choices":[{"index":0,"message":{"role":"assistant","content":"Hi there"},"finish_reason":"stop"}]}`)
	})

	content, err := svc.Complete(context.Background(), conversation())
	require.NoError(t, err)
	assert.Equal(t, "Hi there", content)

	assert.Equal(t, DefaultModel, got.Model)
	require.Len(t, got.Messages, 5)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, DefaultSystemPrompt, got.Messages[0].Content)

	wantRoles := []string{"assistant", "user", "assistant", "user"}
	for i, msg := range conversation() {
		assert.Equal(t, wantRoles[i], got.Messages[i+1].Role)
		assert.Equal(t, msg.Text(), got.Messages[i+1].Content)
	}
}

func TestComplete_NoChoices(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","choices":[]}`)
	})

	content, err := svc.Complete(context.Background(), conversation())
	require.NoError(t, err)
	assert.Empty(t, content)
}

func TestComplete_MalformedJSON(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":`)
	})

	_, err := svc.Complete(context.Background(), conversation())
	assert.Error(t, err)
}

func TestComplete_APIError(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	})

	_, err := svc.Complete(context.Background(), conversation())
	assert.Error(t, err)
}

func TestComplete_CancelledContext(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Complete(ctx, conversation())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComplete_NotInitialized(t *testing.T) {
	svc := NewOpenAILLMService(Config{APIKey: "k"}, core.NewNopLogger())
	_, err := svc.Complete(context.Background(), conversation())
	assert.Error(t, err)
}

func TestInit_RequiresAPIKey(t *testing.T) {
	svc := NewOpenAILLMService(Config{}, core.NewNopLogger())
	assert.Error(t, svc.Init(context.Background()))
}

func TestBuildRequest_CustomSettings(t *testing.T) {
	svc := NewOpenAILLMService(Config{
		APIKey:       "k",
		Model:        "gpt-4o-mini",
		SystemPrompt: "Be brief.",
		MaxTokens:    64,
		Temperature:  0.2,
	}, core.NewNopLogger())

	req := svc.BuildRequest(nil)
	assert.Equal(t, "gpt-4o-mini", req.Model)
	assert.Equal(t, 64, req.MaxTokens)
	assert.InDelta(t, 0.2, req.Temperature, 0.0001)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "Be brief.", req.Messages[0].Content)
}

func TestConvertRole(t *testing.T) {
	assert.Equal(t, "assistant", convertRole(core.OriginAssistant))
	assert.Equal(t, "user", convertRole(core.OriginUser))
	assert.Equal(t, "user", convertRole(core.Origin("anything")))
}

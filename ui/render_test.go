package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"omnichat/core"
	"omnichat/events/chat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMessages_BubblesByOrigin(t *testing.T) {
	r, err := NewRenderer("")
	require.NoError(t, err)

	now := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	html, err := r.RenderMessages(&chat.ConversationUpdatedEvent{Messages: []core.Message{
		core.NewMessage("Hello, I'm Omni!", core.OriginAssistant, core.GreetingTimestamp),
		core.NewUserMessage("Hi", now),
	}})
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(html, `class="bubble `))
	assistantAt := strings.Index(html, `class="bubble assistant"`)
	userAt := strings.Index(html, `class="bubble user"`)
	require.GreaterOrEqual(t, assistantAt, 0)
	require.GreaterOrEqual(t, userAt, 0)
	assert.Less(t, assistantAt, userAt, "bubbles keep insertion order")
	assert.Contains(t, html, "Omni &middot; just now")
	assert.Contains(t, html, "You &middot; 09:30")
}

func TestRenderMessages_EscapesText(t *testing.T) {
	r, err := NewRenderer("Omni")
	require.NoError(t, err)

	html, err := r.RenderMessages(&chat.ConversationUpdatedEvent{Messages: []core.Message{
		core.NewMessage(`<script>alert("x")</script>`, core.OriginUser, ""),
	}})
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.NotContains(t, html, `class="meta"`)
}

func TestRenderMessages_Empty(t *testing.T) {
	r, err := NewRenderer("")
	require.NoError(t, err)

	html, err := r.RenderMessages(&chat.ConversationUpdatedEvent{})
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(html))
}

func TestRender_IndexPage(t *testing.T) {
	r, err := NewRenderer("Nova")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, "index", r.Page(nil), nil))
	page := buf.String()
	assert.Contains(t, page, "<title>Nova</title>")
	assert.Contains(t, page, "Nova is thinking")
	assert.Contains(t, page, `id="form"`)
	assert.Contains(t, page, "Preparing Voice...")
}

// Package ui renders the chat widget: the page shell and the message list
// that is re-rendered on every state change.
package ui

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"omnichat/core"
	"omnichat/events/chat"

	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	DefaultAssistantName = "Omni"
	DefaultUserName      = "You"
)

// MessageView is the template model of one bubble.
type MessageView struct {
	Text      string
	Origin    string
	Sender    string
	Timestamp string
}

// PageData is the template model of the page shell.
type PageData struct {
	AssistantName string
	Messages      []MessageView
}

// Renderer renders templates for both the websocket state pushes and echo.
type Renderer struct {
	templates     *template.Template
	assistantName string
}

// NewRenderer parses the embedded templates.
func NewRenderer(assistantName string) (*Renderer, error) {
	if assistantName == "" {
		assistantName = DefaultAssistantName
	}
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("ui: parse templates: %w", err)
	}
	return &Renderer{templates: tmpl, assistantName: assistantName}, nil
}

// Render implements echo.Renderer.
func (r *Renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

// Page returns the data for the page shell.
func (r *Renderer) Page(messages []core.Message) PageData {
	return PageData{AssistantName: r.assistantName, Messages: r.views(messages)}
}

// RenderMessages renders the bubble list for a state snapshot.
func (r *Renderer) RenderMessages(state *chat.ConversationUpdatedEvent) (string, error) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, "messages", r.views(state.Messages)); err != nil {
		return "", fmt.Errorf("ui: render messages: %w", err)
	}
	return buf.String(), nil
}

func (r *Renderer) views(messages []core.Message) []MessageView {
	out := make([]MessageView, 0, len(messages))
	for _, m := range messages {
		sender := DefaultUserName
		if m.IsAssistant() {
			sender = r.assistantName
		}
		out = append(out, MessageView{
			Text:      m.Text(),
			Origin:    string(m.Origin()),
			Sender:    sender,
			Timestamp: m.Timestamp(),
		})
	}
	return out
}

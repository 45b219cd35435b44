package core

import (
	"sync"
	"time"
)

// Origin tags who authored a message.
type Origin string

const (
	OriginUser      Origin = "user"
	OriginAssistant Origin = "assistant"
)

// GreetingTimestamp labels the seeded greeting.
const GreetingTimestamp = "just now"

// DefaultTimestampLayout is the layout used for message time labels.
const DefaultTimestampLayout = "15:04"

// Message is a single entry of the conversation. Fields are unexported so the
// origin cannot change once the message exists.
type Message struct {
	text      string
	origin    Origin
	timestamp string
}

// NewMessage creates a message labelled with the given timestamp string.
func NewMessage(text string, origin Origin, timestamp string) Message {
	return Message{text: text, origin: origin, timestamp: timestamp}
}

// NewUserMessage labels the message with the current wall clock.
func NewUserMessage(text string, now time.Time) Message {
	return NewMessage(text, OriginUser, now.Format(DefaultTimestampLayout))
}

// NewAssistantMessage labels the message with the current wall clock.
func NewAssistantMessage(text string, now time.Time) Message {
	return NewMessage(text, OriginAssistant, now.Format(DefaultTimestampLayout))
}

func (m Message) Text() string      { return m.text }
func (m Message) Origin() Origin    { return m.origin }
func (m Message) Timestamp() string { return m.timestamp }

// IsAssistant reports whether the message was generated by the model.
func (m Message) IsAssistant() bool {
	return m.origin == OriginAssistant
}

// Conversation is the ordered, append-only message list of one session.
type Conversation struct {
	mu       sync.RWMutex
	messages []Message
}

// NewConversation returns a conversation seeded with the given messages.
func NewConversation(seed ...Message) *Conversation {
	c := &Conversation{}
	c.messages = append(c.messages, seed...)
	return c
}

// Append adds msg at the end and returns the new length.
func (c *Conversation) Append(msg Message) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return len(c.messages)
}

// Messages returns a copy of the messages in insertion order.
func (c *Conversation) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

package conversation

// DefaultGreeting seeds every new conversation.
const DefaultGreeting = "Hello, I'm Omni! Ask me anything!"

type ConversationConfig struct {
	Greeting string `json:"greeting"` // First assistant message of a new conversation. Empty seeds nothing.
}

// DefaultConfig returns a ConversationConfig with the stock greeting.
func DefaultConfig() ConversationConfig {
	return ConversationConfig{
		Greeting: DefaultGreeting,
	}
}

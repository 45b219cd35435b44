package chat

import "omnichat/core"

// ConversationUpdatedEvent carries a full snapshot after any change to the
// message list or the transient flags.
type ConversationUpdatedEvent struct {
	Messages           []core.Message
	AwaitingCompletion bool // A completion request is in flight.
	AwaitingSpeech     bool // A speech request is in flight.
}

func (e *ConversationUpdatedEvent) GetId() string {
	return "chat.conversation_updated"
}

// InputClearedEvent is emitted once a round trip has settled, successful or not.
type InputClearedEvent struct{}

func (e *InputClearedEvent) GetId() string {
	return "chat.input_cleared"
}

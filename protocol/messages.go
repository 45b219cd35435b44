package protocol

// MessageType enumerates all page <-> server message types.
type MessageType string

const (
	// Page -> Server
	MsgSubmit MessageType = "submit"

	// Server -> Page
	MsgState        MessageType = "state"
	MsgPlay         MessageType = "play"
	MsgInputCleared MessageType = "input_cleared"
	MsgError        MessageType = "error"
)

// Envelope is the outer JSON wrapper for all WebSocket messages.
type Envelope struct {
	Type    MessageType `json:"type"`
	Payload RawMessage  `json:"payload,omitempty"`
}

// --- Page -> Server payloads ---

// SubmitPayload carries the text typed into the form.
type SubmitPayload struct {
	Text string `json:"text"`
}

// --- Server -> Page payloads ---

// StatePayload is sent after every state change. HTML is the rendered
// message list; the page swaps it in and scrolls to the bottom.
type StatePayload struct {
	HTML               string `json:"html"`
	Count              int    `json:"count"`
	AwaitingCompletion bool   `json:"awaiting_completion"`
	AwaitingSpeech     bool   `json:"awaiting_speech"`
}

// PlayPayload tells the page to fetch and play a synthesized clip.
type PlayPayload struct {
	ClipID    string `json:"clip_id"`
	URL       string `json:"url"`
	MediaType string `json:"media_type"`
}

// ErrorPayload reports a message the server could not understand.
type ErrorPayload struct {
	Message string `json:"message"`
}

package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"omnichat/core"
	"omnichat/events/chat"
	"omnichat/handlers/conversation"
	"omnichat/protocol"
	"omnichat/ui"

	"github.com/gorilla/websocket"
)

// Config tunes a single page connection.
type Config struct {
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	MaxMessageSize int64
	SendBufferSize int
	AudioPath      string // URL prefix clips are served under.
}

// DefaultConfig returns connection settings suitable for a browser page.
func DefaultConfig() Config {
	return Config{
		PingInterval:   30 * time.Second,
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		MaxMessageSize: 65536,
		SendBufferSize: 64,
		AudioPath:      "/audio",
	}
}

// SessionBuilder creates the conversation session for a new connection. The
// connection is passed as both the event sink and the audio player.
type SessionBuilder func(ctx context.Context, sink core.EventSink, player core.AudioPlayer) (*conversation.Session, error)

// WebSocketService bridges one browser view and its conversation session.
// It implements core.EventSink and core.AudioPlayer.
type WebSocketService struct {
	conn     *websocket.Conn
	config   Config
	renderer *ui.Renderer
	clips    *core.ClipStore
	logger   *core.Logger

	send chan []byte
	done chan struct{}
	once sync.Once

	clipsMu sync.Mutex
	clipIDs []string
}

// NewWebSocketService wraps an upgraded connection.
func NewWebSocketService(conn *websocket.Conn, renderer *ui.Renderer, clips *core.ClipStore, config Config, logger *core.Logger) *WebSocketService {
	if logger == nil {
		logger = core.GetLogger()
	}
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = DefaultConfig().SendBufferSize
	}
	return &WebSocketService{
		conn:     conn,
		config:   config,
		renderer: renderer,
		clips:    clips,
		logger:   logger.With(map[string]any{"component": "websocket"}),
		send:     make(chan []byte, config.SendBufferSize),
		done:     make(chan struct{}),
	}
}

// Run builds the session, pushes the initial state and serves the
// connection until the page goes away. Disposal closes the session, which
// cancels any request still in flight.
func (ws *WebSocketService) Run(ctx context.Context, build SessionBuilder) error {
	session, err := build(ctx, ws, ws)
	if err != nil {
		// The write pump is not running yet, so this is the only writer.
		if data, mErr := protocol.Marshal(protocol.MsgError, protocol.ErrorPayload{Message: "session unavailable"}); mErr == nil {
			ws.setWriteDeadline()
			ws.conn.WriteMessage(websocket.TextMessage, data)
		}
		ws.Close()
		return fmt.Errorf("websocket: build session: %w", err)
	}
	go ws.writePump()

	logger := ws.logger.With(map[string]any{"session_id": session.ID()})
	logger.Info("view connected")

	state := session.Snapshot()
	ws.Emit(&state)

	ws.readLoop(session)

	// Close the socket first so pending emits unblock, then wait for the session.
	ws.Close()
	session.Close()
	ws.releaseClips()
	logger.Info("view disconnected")
	return nil
}

func (ws *WebSocketService) readLoop(session *conversation.Session) {
	if ws.config.MaxMessageSize > 0 {
		ws.conn.SetReadLimit(ws.config.MaxMessageSize)
	}
	ws.extendReadDeadline()
	ws.conn.SetPongHandler(func(string) error {
		ws.extendReadDeadline()
		return nil
	})

	for {
		_, data, err := ws.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.logger.With(map[string]any{"error": err}).Warn("websocket read failed")
			}
			return
		}
		ws.extendReadDeadline()
		ws.handleMessage(session, data)
	}
}

func (ws *WebSocketService) extendReadDeadline() {
	if ws.config.ReadTimeout > 0 {
		ws.conn.SetReadDeadline(time.Now().Add(ws.config.ReadTimeout))
	}
}

func (ws *WebSocketService) handleMessage(session *conversation.Session, data []byte) {
	msgType, payload, err := protocol.Unmarshal(data)
	if err != nil {
		ws.enqueue(protocol.MsgError, protocol.ErrorPayload{Message: "invalid message"})
		return
	}

	switch msgType {
	case protocol.MsgSubmit:
		p, err := protocol.UnmarshalPayload[protocol.SubmitPayload](payload)
		if err != nil {
			ws.enqueue(protocol.MsgError, protocol.ErrorPayload{Message: "invalid submit payload"})
			return
		}
		// Round trips may overlap; each runs on its own goroutine.
		go session.Submit(p.Text)
	default:
		ws.enqueue(protocol.MsgError, protocol.ErrorPayload{Message: "unknown message type: " + string(msgType)})
	}
}

// Emit renders session events into envelopes for the page.
func (ws *WebSocketService) Emit(event core.IEvent) {
	switch e := event.(type) {
	case *chat.ConversationUpdatedEvent:
		html, err := ws.renderer.RenderMessages(e)
		if err != nil {
			ws.logger.With(map[string]any{"error": err}).Error("failed to render messages")
			return
		}
		ws.enqueue(protocol.MsgState, protocol.StatePayload{
			HTML:               html,
			Count:              len(e.Messages),
			AwaitingCompletion: e.AwaitingCompletion,
			AwaitingSpeech:     e.AwaitingSpeech,
		})
	case *chat.InputClearedEvent:
		ws.enqueue(protocol.MsgInputCleared, nil)
	default:
		ws.logger.With(map[string]any{"event": event.GetId()}).Debug("ignoring event")
	}
}

// Play publishes clip and tells the page to start playback.
func (ws *WebSocketService) Play(clip *core.AudioClip) {
	if clip == nil {
		return
	}
	ws.clipsMu.Lock()
	if ws.isClosed() {
		ws.clipsMu.Unlock()
		return
	}
	ws.clips.Put(clip)
	ws.clipIDs = append(ws.clipIDs, clip.ID)
	ws.clipsMu.Unlock()

	ws.enqueue(protocol.MsgPlay, protocol.PlayPayload{
		ClipID:    clip.ID,
		URL:       ws.config.AudioPath + "/" + clip.ID,
		MediaType: string(clip.MediaType),
	})
}

func (ws *WebSocketService) releaseClips() {
	ws.clipsMu.Lock()
	ids := ws.clipIDs
	ws.clipIDs = nil
	ws.clipsMu.Unlock()
	ws.clips.Delete(ids...)
}

// enqueue blocks while the send buffer is full so states reach the page in
// order; it gives up once the connection is closed.
func (ws *WebSocketService) enqueue(msgType protocol.MessageType, payload interface{}) {
	data, err := protocol.Marshal(msgType, payload)
	if err != nil {
		ws.logger.With(map[string]any{"error": err, "type": string(msgType)}).Warn("failed to marshal message, dropping")
		return
	}
	if ws.isClosed() {
		return
	}
	select {
	case ws.send <- data:
	case <-ws.done:
	}
}

func (ws *WebSocketService) writePump() {
	var tick <-chan time.Time
	if ws.config.PingInterval > 0 {
		ticker := time.NewTicker(ws.config.PingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case data := <-ws.send:
			ws.setWriteDeadline()
			if err := ws.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				ws.logger.With(map[string]any{"error": err}).Debug("write to page failed")
				ws.Close()
				return
			}
		case <-tick:
			ws.setWriteDeadline()
			if err := ws.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				ws.Close()
				return
			}
		case <-ws.done:
			return
		}
	}
}

func (ws *WebSocketService) setWriteDeadline() {
	if ws.config.WriteTimeout > 0 {
		ws.conn.SetWriteDeadline(time.Now().Add(ws.config.WriteTimeout))
	}
}

func (ws *WebSocketService) isClosed() bool {
	select {
	case <-ws.done:
		return true
	default:
		return false
	}
}

// Close shuts down the WebSocket connection
func (ws *WebSocketService) Close() error {
	var err error
	ws.once.Do(func() {
		close(ws.done)
		err = ws.conn.Close()
	})
	return err
}

package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"omnichat/core"
	"omnichat/events/chat"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "omnichat/conversation"

// Completer turns the conversation so far into the assistant's next reply.
// An empty reply with a nil error means the endpoint had nothing to say.
type Completer interface {
	Complete(ctx context.Context, conversation []core.Message) (string, error)
}

// Speaker narrates a reply. It never fails loudly; a nil clip means no audio.
type Speaker interface {
	Speak(ctx context.Context, text string) *core.AudioClip
}

// Session owns one conversation and drives its round trips. It lives as long
// as the view that created it.
type Session struct {
	id        string
	completer Completer
	speaker   Speaker
	sink      core.EventSink
	logger    *core.Logger
	now       func() time.Time

	tracer      trace.Tracer
	submissions metric.Int64Counter
	failures    metric.Int64Counter

	conversation *core.Conversation

	mu                 sync.Mutex
	awaitingCompletion bool
	awaitingSpeech     bool
	closed             bool

	// held across snapshot+emit so the sink never sees states out of order
	emitMu sync.Mutex

	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
}

// NewSession creates a session seeded with the configured greeting. The
// session is bound to ctx; cancelling it aborts in-flight requests.
func NewSession(ctx context.Context, id string, completer Completer, speaker Speaker, config ConversationConfig, logger *core.Logger) *Session {
	if logger == nil {
		logger = core.GetLogger()
	}
	logger = logger.With(map[string]any{"component": "conversation", "session_id": id})

	var seed []core.Message
	if config.Greeting != "" {
		seed = append(seed, core.NewMessage(config.Greeting, core.OriginAssistant, core.GreetingTimestamp))
	}

	s := &Session{
		id:           id,
		completer:    completer,
		speaker:      speaker,
		sink:         core.NopSink,
		logger:       logger,
		now:          time.Now,
		tracer:       otel.Tracer(instrumentationName),
		conversation: core.NewConversation(seed...),
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.initMetrics()
	return s
}

func (s *Session) initMetrics() {
	meter := otel.Meter(instrumentationName)
	var err error
	if s.submissions, err = meter.Int64Counter("omnichat.submissions",
		metric.WithDescription("Accepted user submissions")); err != nil {
		s.logger.With(map[string]any{"error": err}).Warn("submissions counter unavailable")
		s.submissions, _ = noop.Meter{}.Int64Counter("omnichat.submissions")
	}
	if s.failures, err = meter.Int64Counter("omnichat.failures",
		metric.WithDescription("Round trips that failed at the completion step")); err != nil {
		s.logger.With(map[string]any{"error": err}).Warn("failures counter unavailable")
		s.failures, _ = noop.Meter{}.Int64Counter("omnichat.failures")
	}
}

// WithSink sets where state changes are published. Returns the session to allow chaining.
func (s *Session) WithSink(sink core.EventSink) *Session {
	if sink == nil {
		sink = core.NopSink
	}
	s.sink = sink
	return s
}

// WithClock overrides the clock used for message time labels. Returns the session to allow chaining.
func (s *Session) WithClock(now func() time.Time) *Session {
	s.now = now
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Snapshot returns the current messages and flags.
func (s *Session) Snapshot() chat.ConversationUpdatedEvent {
	messages := s.conversation.Messages()
	s.mu.Lock()
	defer s.mu.Unlock()
	return chat.ConversationUpdatedEvent{
		Messages:           messages,
		AwaitingCompletion: s.awaitingCompletion,
		AwaitingSpeech:     s.awaitingSpeech,
	}
}

// Submit runs one round trip for text: append the user message, ask for a
// completion, append the reply and narrate it. Blank text is ignored. Errors
// are logged and swallowed. Overlapping calls are allowed and are not
// ordered relative to each other.
func (s *Session) Submit(text string) {
	if strings.TrimSpace(text) == "" {
		s.logger.Debug("ignoring empty submission")
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Debug("submission after close ignored")
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	ctx, span := s.tracer.Start(s.ctx, "conversation.round_trip",
		trace.WithAttributes(attribute.String("session.id", s.id)))
	defer span.End()
	s.submissions.Add(ctx, 1)

	s.conversation.Append(core.NewUserMessage(text, s.now()))
	s.emitState()

	history := s.conversation.Messages()
	s.setFlags(true, false)

	defer func() {
		s.setFlags(false, false)
		s.emit(&chat.InputClearedEvent{})
	}()

	content, err := s.complete(ctx, history)
	if err != nil {
		s.failures.Add(ctx, 1)
		span.SetStatus(codes.Error, "completion failed")
		s.logger.With(map[string]any{"error": err}).Error("Error processing message")
		return
	}
	if content == "" {
		s.logger.Debug("completion returned no content")
		return
	}

	s.conversation.Append(core.NewAssistantMessage(content, s.now()))
	s.emitState()

	s.setFlags(false, true)
	s.speak(ctx, content)
}

func (s *Session) complete(ctx context.Context, history []core.Message) (string, error) {
	ctx, span := s.tracer.Start(ctx, "completion",
		trace.WithAttributes(attribute.Int("conversation.length", len(history))))
	defer span.End()

	content, err := s.completer.Complete(ctx, history)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return content, err
}

func (s *Session) speak(ctx context.Context, text string) {
	if s.speaker == nil {
		return
	}
	ctx, span := s.tracer.Start(ctx, "speech")
	defer span.End()

	clip := s.speaker.Speak(ctx, text)
	span.SetAttributes(attribute.Bool("speech.played", clip != nil), attribute.Int("speech.bytes", clip.Size()))
}

// setFlags updates both flags and publishes the new state.
func (s *Session) setFlags(awaitingCompletion, awaitingSpeech bool) {
	s.mu.Lock()
	s.awaitingCompletion = awaitingCompletion
	s.awaitingSpeech = awaitingSpeech
	s.mu.Unlock()
	s.emitState()
}

func (s *Session) emitState() {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	state := s.Snapshot()
	s.sink.Emit(&state)
}

func (s *Session) emit(event core.IEvent) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.sink.Emit(event)
}

// Close cancels in-flight requests and waits for running round trips to
// settle. Further submissions are ignored. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.inflight.Wait()
	s.logger.Debug("session closed")
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

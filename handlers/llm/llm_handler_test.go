package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"omnichat/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedService struct {
	content string
	err     error
	calls   int
	block   bool
	delay   time.Duration
}

func (s *scriptedService) Complete(ctx context.Context, conversation []core.Message) (string, error) {
	s.calls++
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.content, s.err
}

func TestLLMHandler_PrimarySucceeds(t *testing.T) {
	primary := &scriptedService{content: "hello"}
	backup := &scriptedService{content: "unused"}
	h := NewLLMHandler(primary, DefaultConfig(), core.NewNopLogger()).WithBackupService(backup)

	got, err := h.Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
	assert.Equal(t, 1, primary.calls)
	assert.Zero(t, backup.calls)
}

func TestLLMHandler_FallsBackInOrder(t *testing.T) {
	primary := &scriptedService{err: errors.New("primary down")}
	first := &scriptedService{err: errors.New("first down")}
	second := &scriptedService{content: "from second"}
	h := NewLLMHandler(primary, DefaultConfig(), core.NewNopLogger()).
		WithBackupService(first).
		WithBackupService(second)

	got, err := h.Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "from second", got)
	assert.Equal(t, 1, first.calls)
}

func TestLLMHandler_AllFail(t *testing.T) {
	primary := &scriptedService{err: errors.New("primary down")}
	backup := &scriptedService{err: errors.New("backup down")}
	h := NewLLMHandler(primary, DefaultConfig(), core.NewNopLogger()).WithBackupService(backup)

	_, err := h.Complete(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary down")
	assert.Contains(t, err.Error(), "backup down")
}

func TestLLMHandler_CancelStopsChain(t *testing.T) {
	primary := &scriptedService{block: true}
	backup := &scriptedService{content: "unused"}
	h := NewLLMHandler(primary, LLMHandlerConfig{}, core.NewNopLogger()).WithBackupService(backup)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Complete(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, backup.calls)
}

func TestLLMHandler_TimeoutMovesToBackup(t *testing.T) {
	primary := &scriptedService{block: true}
	backup := &scriptedService{content: "rescued"}
	h := NewLLMHandler(primary, LLMHandlerConfig{TimeoutSeconds: 1}, core.NewNopLogger()).WithBackupService(backup)

	start := time.Now()
	got, err := h.Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "rescued", got)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestLLMHandler_DefaultConfigDoesNotCutOffSlowPrimary(t *testing.T) {
	assert.Zero(t, DefaultConfig().TimeoutSeconds)

	primary := &scriptedService{content: "eventually", delay: 1500 * time.Millisecond}
	backup := &scriptedService{content: "unused"}
	h := NewLLMHandler(primary, DefaultConfig(), core.NewNopLogger()).WithBackupService(backup)

	got, err := h.Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "eventually", got)
	assert.Zero(t, backup.calls)
}

func TestLLMHandler_NoService(t *testing.T) {
	h := NewLLMHandler(nil, DefaultConfig(), core.NewNopLogger())
	_, err := h.Complete(context.Background(), nil)
	assert.EqualError(t, err, "llm handler: no service configured")
}

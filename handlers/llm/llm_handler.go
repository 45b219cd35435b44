package llm

import (
	"context"
	"errors"
	"fmt"

	"omnichat/core"
)

// LLMService produces one completion for the conversation so far.
type LLMService interface {
	Complete(ctx context.Context, conversation []core.Message) (string, error)
}

// LLMHandler asks the primary service for a completion and falls back to the
// backup services in order when it fails.
type LLMHandler struct {
	primary        LLMService
	BackupServices []LLMService
	config         LLMHandlerConfig
	logger         *core.Logger
}

// NewLLMHandler creates a new LLM handler.
// Use DefaultConfig() to get a config with sensible defaults and override only what you need.
func NewLLMHandler(service LLMService, config LLMHandlerConfig, logger *core.Logger) *LLMHandler {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &LLMHandler{
		primary: service,
		config:  config,
		logger:  logger.With(map[string]any{"component": "llm_handler"}),
	}
}

// WithBackupService registers a fallback service used when the primary fails.
// Returns the handler to allow chaining.
func (h *LLMHandler) WithBackupService(service LLMService) *LLMHandler {
	h.BackupServices = append(h.BackupServices, service)
	return h
}

// Complete returns the first successful completion. A cancelled context stops
// the chain immediately. When every service fails the errors are joined.
func (h *LLMHandler) Complete(ctx context.Context, conversation []core.Message) (string, error) {
	services := append([]LLMService{h.primary}, h.BackupServices...)

	var errs []error
	for i, service := range services {
		if service == nil {
			continue
		}
		content, err := h.attempt(ctx, service, conversation)
		if err == nil {
			if i > 0 {
				h.logger.With(map[string]any{"backup": i}).Info("completion served by backup service")
			}
			return content, nil
		}
		if ctx.Err() != nil {
			return "", err
		}
		errs = append(errs, fmt.Errorf("service %d: %w", i, err))
		if i < len(services)-1 {
			h.logger.With(map[string]any{"error": err, "attempt": i}).Warn("completion failed, trying backup service")
		}
	}
	if len(errs) == 0 {
		return "", errors.New("llm handler: no service configured")
	}
	return "", errors.Join(errs...)
}

func (h *LLMHandler) attempt(ctx context.Context, service LLMService, conversation []core.Message) (string, error) {
	if timeout := h.config.timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return service.Complete(ctx, conversation)
}

package llm

import "time"

type LLMHandlerConfig struct {
	// TimeoutSeconds bounds each attempt, primary and backups alike. Zero means no limit.
	TimeoutSeconds int `json:"timeout_seconds"`
}

// DefaultConfig leaves attempts unbounded; only the session context aborts them.
func DefaultConfig() LLMHandlerConfig {
	return LLMHandlerConfig{}
}

func (c LLMHandlerConfig) timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

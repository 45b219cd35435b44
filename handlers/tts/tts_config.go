package tts

type TTSConfig struct {
	Normalize     bool `json:"normalize"`       // Strip markdown and emoji before synthesis.
	MaxTextLength int  `json:"max_text_length"` // Longer replies are cut at a word boundary. Zero disables the limit.
}

// DefaultConfig returns a TTSConfig with sensible defaults.
func DefaultConfig() TTSConfig {
	return TTSConfig{
		Normalize:     true,
		MaxTextLength: 2500,
	}
}

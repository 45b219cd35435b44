package factories

import (
	"errors"
	"omnichat/core"
	ttshandler "omnichat/handlers/tts"
	elevenlabs "omnichat/services/elevenlabs/tts"
)

// TTSFactoryConfig holds provider-specific configs for TTS service construction.
// Set exactly one provider config; the rest should be left nil.
type TTSFactoryConfig struct {
	ElevenLabsConfig *elevenlabs.ElevenLabsTTSConfig `json:"elevenlabs,omitempty"`
}

// DefaultTTSFactoryConfig selects ElevenLabs with the stock voice.
func DefaultTTSFactoryConfig() TTSFactoryConfig {
	return TTSFactoryConfig{
		ElevenLabsConfig: &elevenlabs.ElevenLabsTTSConfig{VoiceID: elevenlabs.DefaultVoiceID},
	}
}

// BuildTTSService constructs a speech service from the given factory config.
// Exactly one provider config must be non-nil.
func BuildTTSService(config TTSFactoryConfig, logger *core.Logger) (*elevenlabs.ElevenLabsTTS, error) {
	if config.ElevenLabsConfig != nil {
		return elevenlabs.NewElevenLabsTTS(*config.ElevenLabsConfig, logger), nil
	}
	return nil, errors.New("TTSFactoryConfig: no provider config specified")
}

func (c TTSFactoryConfig) clone() TTSFactoryConfig {
	return TTSFactoryConfig{ElevenLabsConfig: clonePtr(c.ElevenLabsConfig)}
}

var _ ttshandler.TTSService = (*elevenlabs.ElevenLabsTTS)(nil)

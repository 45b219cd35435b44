package tts

import (
	"context"
	"errors"
	"omnichat/core"
	"strings"
	"unicode/utf8"
)

type TTSService interface {
	Synthesize(ctx context.Context, text string) (*core.AudioClip, error)
}

// Narrator turns assistant replies into audio and starts playback without
// waiting for it to finish.
type Narrator struct {
	service        TTSService
	BackupServices []TTSService
	player         core.AudioPlayer
	config         TTSConfig
	logger         *core.Logger
}

func NewNarrator(service TTSService, player core.AudioPlayer, config TTSConfig, logger *core.Logger) *Narrator {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Narrator{
		service: service,
		player:  player,
		config:  config,
		logger:  logger.With(map[string]any{"component": "narrator"}),
	}
}

// WithBackupService registers a fallback service used when the primary fails.
// Returns the narrator to allow chaining.
func (n *Narrator) WithBackupService(service TTSService) *Narrator {
	n.BackupServices = append(n.BackupServices, service)
	return n
}

// Speak fetches audio for text and hands it to the player. It returns nil
// when there is nothing to say or the fetch failed; failures are logged only.
func (n *Narrator) Speak(ctx context.Context, text string) *core.AudioClip {
	prepared := n.prepare(text)
	if prepared == "" {
		n.logger.Debug("nothing to speak after normalization")
		return nil
	}

	clip, err := n.synthesize(ctx, prepared)
	if err != nil {
		n.logger.With(map[string]any{"error": err}).Error("Error while fetching audio")
		return nil
	}
	if clip == nil {
		return nil
	}

	if n.player != nil {
		go n.player.Play(clip)
	}
	return clip
}

func (n *Narrator) synthesize(ctx context.Context, text string) (*core.AudioClip, error) {
	services := append([]TTSService{n.service}, n.BackupServices...)
	var lastErr error
	for i, service := range services {
		if service == nil {
			continue
		}
		clip, err := service.Synthesize(ctx, text)
		if err == nil {
			return clip, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if i < len(services)-1 {
			n.logger.With(map[string]any{"error": err, "attempt": i}).Warn("speech failed, trying backup service")
		}
	}
	if lastErr == nil {
		lastErr = errors.New("narrator: no speech service configured")
	}
	return nil, lastErr
}

func (n *Narrator) prepare(text string) string {
	if n.config.Normalize {
		text = normalizeTextForTTS(text)
	} else {
		text = strings.TrimSpace(text)
	}
	return truncateAtWord(text, n.config.MaxTextLength)
}

// truncateAtWord cuts text to at most limit runes, backing off to the last space.
func truncateAtWord(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)[:limit]
	cut := string(runes)
	if i := strings.LastIndexAny(cut, " \t\n"); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}

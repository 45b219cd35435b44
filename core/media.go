package core

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type MediaType string

const (
	MediaTypeAudioMP3 MediaType = "audio/mpeg"
	MediaTypeAudioWAV MediaType = "audio/wav"
)

// AudioClip is a synthesized reply ready for playback.
type AudioClip struct {
	ID        string    // Unique identifier used to fetch the clip.
	MediaType MediaType // Container/codec of Data.
	Data      []byte    // Raw encoded audio.
	CreatedAt time.Time // When the clip was synthesized.
}

// NewAudioClip wraps raw audio bytes with a fresh identifier.
func NewAudioClip(data []byte, mediaType MediaType) *AudioClip {
	return &AudioClip{
		ID:        uuid.New().String(),
		MediaType: mediaType,
		Data:      data,
		CreatedAt: time.Now(),
	}
}

// Size returns the encoded size in bytes.
func (c *AudioClip) Size() int {
	if c == nil {
		return 0
	}
	return len(c.Data)
}

// AudioPlayer starts playback of a clip. Play must not block on playback.
type AudioPlayer interface {
	Play(clip *AudioClip)
}

// AudioPlayerFunc adapts a function to AudioPlayer.
type AudioPlayerFunc func(clip *AudioClip)

func (f AudioPlayerFunc) Play(clip *AudioClip) { f(clip) }

// DefaultClipCapacity is the number of clips a ClipStore keeps when none is given.
const DefaultClipCapacity = 32

// ClipStore keeps the most recent clips in memory so a page can fetch them.
// The oldest clip is evicted once capacity is reached.
type ClipStore struct {
	mu       sync.RWMutex
	capacity int
	clips    map[string]*AudioClip
	order    []string
}

// NewClipStore creates a store holding at most capacity clips.
func NewClipStore(capacity int) *ClipStore {
	if capacity <= 0 {
		capacity = DefaultClipCapacity
	}
	return &ClipStore{
		capacity: capacity,
		clips:    make(map[string]*AudioClip, capacity),
	}
}

// Put stores clip, evicting the oldest entries if needed.
func (s *ClipStore) Put(clip *AudioClip) {
	if clip == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clips[clip.ID]; !exists {
		s.order = append(s.order, clip.ID)
	}
	s.clips[clip.ID] = clip

	for len(s.order) > s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.clips, oldest)
	}
}

// Get returns the clip with the given id.
func (s *ClipStore) Get(id string) (*AudioClip, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clip, ok := s.clips[id]
	return clip, ok
}

// Delete removes the clips with the given ids.
func (s *ClipStore) Delete(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if _, ok := s.clips[id]; !ok {
			continue
		}
		delete(s.clips, id)
		for i, v := range s.order {
			if v == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
}

// Len returns the number of stored clips.
func (s *ClipStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clips)
}

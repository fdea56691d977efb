// Package session owns streaming synthesis sessions: each couples a
// sentence segmenter with per-session voice and speed settings. The
// Registry is the sole owner of session lifetime.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/kittenml/speechcore/internal/segment"
)

var (
	// ErrInvalidParameter is returned for an out-of-range speed, an
	// unrecognized voice, or otherwise malformed request parameters.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrSessionNotFound is returned when an operation references an
	// unknown or already-ended session identifier.
	ErrSessionNotFound = errors.New("session not found")
)

// Session holds one producer's in-flight pending text and synthesis
// configuration. All access goes through the Registry, which serializes
// calls into the same session with the per-session mutex.
type Session struct {
	ID        string
	Voice     string
	Speed     float64
	CreatedAt time.Time

	mu         sync.Mutex
	seg        *segment.Segmenter
	nextSeq    int
	lastActive time.Time
}

func newSession(id, voice string, speed float64, now time.Time) *Session {
	return &Session{
		ID:         id,
		Voice:      voice,
		Speed:      speed,
		CreatedAt:  now,
		seg:        segment.New(),
		lastActive: now,
	}
}

// Info is an immutable snapshot of a session's configuration.
type Info struct {
	ID        string
	Voice     string
	Speed     float64
	CreatedAt time.Time
}

func (s *Session) info() Info {
	return Info{ID: s.ID, Voice: s.Voice, Speed: s.Speed, CreatedAt: s.CreatedAt}
}

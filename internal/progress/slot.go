package progress

import (
	"sync"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/domain"
)

// Slot holds the latest progress sample. Writes never block on readers and
// the last write wins.
type Slot struct {
	mu      sync.Mutex
	latest  domain.Progress
	version uint64
}

// Set stores p as the latest sample.
func (s *Slot) Set(p domain.Progress) {
	s.mu.Lock()
	s.latest = p
	s.version++
	s.mu.Unlock()
}

// Latest returns the newest sample and its version. Version 0 means no
// sample has been written yet.
func (s *Slot) Latest() (domain.Progress, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.version
}

// Callback returns an engine progress callback writing into the slot.
// The returned function fails once abort returns a non-nil error.
func (s *Slot) Callback(abort func() error) func(domain.Progress) error {
	return func(p domain.Progress) error {
		s.Set(p)
		if abort != nil {
			return abort()
		}
		return nil
	}
}

// Package session keeps one conversation per browser tab: its history, the
// intent of its last question, and a flag that rejects a second question
// while the first is still being answered.
package session

import (
	"sync"
	"time"

	"github.com/FJDaz/I-Am/internal/conversation"
	"github.com/FJDaz/I-Am/internal/intent"
	apperrors "github.com/FJDaz/I-Am/pkg/errors"
)

// Session is one conversation.
type Session struct {
	ID        string
	CreatedAt time.Time

	history *conversation.History

	mu         sync.Mutex
	lastIntent intent.Intent
	inFlight   bool
	lastSeen   time.Time
}

func newSession(id string, limits conversation.Limits, now time.Time) *Session {
	return &Session{
		ID:         id,
		CreatedAt:  now,
		history:    conversation.NewHistory(limits),
		lastIntent: intent.Intent{Label: intent.Unknown},
		lastSeen:   now,
	}
}

// History returns the conversation history. It is safe for concurrent use.
func (s *Session) History() *conversation.History {
	return s.history
}

// Begin marks a question in flight. It fails with ErrSessionBusy when one
// already is; every successful Begin must be paired with End.
func (s *Session) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return apperrors.ErrSessionBusy
	}
	s.inFlight = true
	return nil
}

// End clears the in-flight flag.
func (s *Session) End() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

func (s *Session) LastIntent() intent.Intent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastIntent
}

func (s *Session) SetLastIntent(in intent.Intent) {
	s.mu.Lock()
	s.lastIntent = in
	s.mu.Unlock()
}

// Reset forgets the conversation but keeps the session id.
func (s *Session) Reset() {
	s.history.Reset()
	s.SetLastIntent(intent.Intent{Label: intent.Unknown})
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// idle reports how long the session has been unused; busy sessions are
// never idle.
func (s *Session) idle(now time.Time) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return 0, false
	}
	return now.Sub(s.lastSeen), true
}

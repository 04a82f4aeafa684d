package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/FJDaz/I-Am/internal/conversation"
	"github.com/FJDaz/I-Am/pkg/config"
	apperrors "github.com/FJDaz/I-Am/pkg/errors"
)

// Store maps session ids to sessions. Sessions idle for longer than the
// configured TTL are dropped; when the store is full the least recently
// used idle session makes room.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	cfg      config.SessionConfig
	limits   conversation.Limits
	active   prometheus.Gauge
	now      func() time.Time
	logger   *slog.Logger
}

// NewStore creates an empty store. active may be nil.
func NewStore(cfg config.SessionConfig, limits conversation.Limits, active prometheus.Gauge) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		limits:   limits,
		active:   active,
		now:      time.Now,
		logger:   slog.Default().With("component", "session-store"),
	}
}

// Create starts a new session with a random id.
func (s *Store) Create() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if s.cfg.MaxSessions > 0 && len(s.sessions) >= s.cfg.MaxSessions {
		s.evictOldestLocked(now)
	}
	sess := newSession(uuid.NewString(), s.limits, now)
	s.sessions[sess.ID] = sess
	s.updateGaugeLocked()
	return sess
}

// Get returns the session with id and refreshes its idle timer. Unknown
// and expired ids fail with ErrSessionNotFound.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	now := s.now()
	if s.expired(sess, now) {
		delete(s.sessions, id)
		s.updateGaugeLocked()
		return nil, apperrors.ErrSessionNotFound
	}
	sess.touch(now)
	return sess, nil
}

// GetOrCreate returns the session with id, or a new one when id is empty,
// unknown or expired.
func (s *Store) GetOrCreate(id string) *Session {
	if id != "" {
		if sess, err := s.Get(id); err == nil {
			return sess
		}
	}
	return s.Create()
}

// Delete removes the session and reports whether it existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	s.updateGaugeLocked()
	return true
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// EvictIdle drops every expired session and returns how many went.
func (s *Store) EvictIdle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	evicted := 0
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		s.updateGaugeLocked()
	}
	return evicted
}

// Run evicts idle sessions every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.EvictIdle(); n > 0 {
				s.logger.Debug("evicted idle sessions", "count", n, "remaining", s.Len())
			}
		}
	}
}

func (s *Store) expired(sess *Session, now time.Time) bool {
	if s.cfg.IdleTTL <= 0 {
		return false
	}
	idle, ok := sess.idle(now)
	return ok && idle > s.cfg.IdleTTL
}

func (s *Store) evictOldestLocked(now time.Time) {
	var oldestID string
	oldestIdle := time.Duration(-1)
	for id, sess := range s.sessions {
		idle, ok := sess.idle(now)
		if ok && idle > oldestIdle {
			oldestID, oldestIdle = id, idle
		}
	}
	if oldestID == "" {
		s.logger.Warn("session store full and every session busy", "max_sessions", s.cfg.MaxSessions)
		return
	}
	delete(s.sessions, oldestID)
}

func (s *Store) updateGaugeLocked() {
	if s.active != nil {
		s.active.Set(float64(len(s.sessions)))
	}
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"csvmapper/internal/infrastructure"
)

// SessionStore keeps live sessions in memory. Idle sessions expire after the
// TTL and are evicted lazily whenever the store is accessed.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	max      int
	now      func() time.Time
	metrics  *infrastructure.MappingMetrics
	logger   *slog.Logger
}

// NewSessionStore creates a store. A non-positive ttl disables expiry and a
// non-positive max disables the cap.
func NewSessionStore(ttl time.Duration, max int, metrics *infrastructure.MappingMetrics, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = infrastructure.NewNoopMetrics()
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		max:      max,
		now:      time.Now,
		metrics:  metrics,
		logger:   logger.With(slog.String("component", "session_store")),
	}
}

// Create registers a new empty session
func (s *SessionStore) Create(ctx context.Context) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpiredLocked(ctx)
	if s.max > 0 && len(s.sessions) >= s.max {
		s.logger.WarnContext(ctx, "session limit reached", slog.Int("max_sessions", s.max))
		return nil, conflict(fmt.Sprintf("create session: %d sessions are open", len(s.sessions)), ErrSessionLimit)
	}

	session := newSession(uuid.New().String(), s.now())
	s.sessions[session.ID] = session
	s.metrics.ActiveSessions.Add(ctx, 1)

	s.logger.InfoContext(ctx, "session created", slog.String("session_id", session.ID))
	return session, nil
}

// Get returns a live session and marks it active
func (s *SessionStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpiredLocked(ctx)
	session, ok := s.sessions[id]
	if !ok {
		return nil, sessionNotFound(id)
	}

	session.mu.Lock()
	session.updatedAt = s.now()
	session.mu.Unlock()
	return session, nil
}

// Delete removes a session
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return sessionNotFound(id)
	}
	delete(s.sessions, id)
	s.metrics.ActiveSessions.Add(ctx, -1)

	s.logger.InfoContext(ctx, "session deleted", slog.String("session_id", id))
	return nil
}

// Len returns the number of live sessions
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// EvictExpired drops every session idle for longer than the TTL
func (s *SessionStore) EvictExpired(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictExpiredLocked(ctx)
}

func (s *SessionStore) evictExpiredLocked(ctx context.Context) int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl)
	evicted := 0
	for id, session := range s.sessions {
		session.mu.Lock()
		idle := session.updatedAt.Before(cutoff)
		session.mu.Unlock()
		if !idle {
			continue
		}
		delete(s.sessions, id)
		evicted++
		s.logger.DebugContext(ctx, "session expired", slog.String("session_id", id))
	}
	if evicted > 0 {
		s.metrics.ActiveSessions.Add(ctx, int64(-evicted))
		s.logger.InfoContext(ctx, "expired sessions evicted", slog.Int("count", evicted))
	}
	return evicted
}

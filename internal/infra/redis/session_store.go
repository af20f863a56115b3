package redis

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"live-quiz-service/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Sessions themselves live in a local map; broadcasting stays in-process.
//   - Redis carries a liveness marker per session so other instances (and operators) can
//     see which sessions are hosted. Touch refreshes the markers of sessions still running.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		log:      logger,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Put(session *app.Session) {
	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()
	// best-effort liveness marker
	if err := s.client.Set(context.Background(), s.key(session.ID()), "1", s.ttl).Err(); err != nil {
		s.log.Warn("set session marker failed", "session_id", session.ID(), "err", err)
	}
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if err := s.client.Del(context.Background(), s.key(sessionID)).Err(); err != nil {
		s.log.Warn("delete session marker failed", "session_id", sessionID, "err", err)
	}
}

func (s *SessionStore) List() []*app.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*app.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Touch extends the liveness markers of every session that has not ended.
func (s *SessionStore) Touch(ctx context.Context) error {
	if s.ttl <= 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	queued := 0
	for _, session := range s.List() {
		if _, ended := session.EndedAt(); ended {
			continue
		}
		pipe.Set(ctx, s.key(session.ID()), "1", s.ttl)
		queued++
	}
	if queued == 0 {
		return nil
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *SessionStore) key(sessionID string) string {
	return "quiz:session:" + sessionID
}

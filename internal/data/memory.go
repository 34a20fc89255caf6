package data

import (
	"context"
	"sync"
	"time"

	"workspace-portal/internal/auth"
)

// memorySessionRepo keeps sessions in process memory. Sessions do not
// survive a restart.
type memorySessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*memorySession
	now      func() time.Time
}

type memorySession struct {
	items     map[string]string
	updatedAt time.Time
}

// NewMemorySessionRepo creates an in-memory session repo.
func NewMemorySessionRepo() SessionRepo {
	return &memorySessionRepo{
		sessions: make(map[string]*memorySession),
		now:      time.Now,
	}
}

func (r *memorySessionRepo) Bind(_ context.Context, sessionID string) auth.Storage {
	return &memoryStorage{repo: r, sessionID: sessionID}
}

func (r *memorySessionRepo) PurgeIdle(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, sess := range r.sessions {
		if sess.updatedAt.Before(before) {
			n += int64(len(sess.items))
			delete(r.sessions, id)
		}
	}
	return n, nil
}

func (r *memorySessionRepo) Ping(context.Context) error {
	return nil
}

func (r *memorySessionRepo) Close() error {
	return nil
}

type memoryStorage struct {
	repo      *memorySessionRepo
	sessionID string
}

func (s *memoryStorage) GetItem(key string) (string, bool) {
	s.repo.mu.Lock()
	defer s.repo.mu.Unlock()

	sess, ok := s.repo.sessions[s.sessionID]
	if !ok {
		return "", false
	}
	value, ok := sess.items[key]
	return value, ok
}

func (s *memoryStorage) SetItem(key, value string) {
	s.repo.mu.Lock()
	defer s.repo.mu.Unlock()

	sess, ok := s.repo.sessions[s.sessionID]
	if !ok {
		sess = &memorySession{items: make(map[string]string)}
		s.repo.sessions[s.sessionID] = sess
	}
	sess.items[key] = value
	sess.updatedAt = s.repo.now()
}

func (s *memoryStorage) RemoveItem(key string) {
	s.repo.mu.Lock()
	defer s.repo.mu.Unlock()

	sess, ok := s.repo.sessions[s.sessionID]
	if !ok {
		return
	}
	delete(sess.items, key)
	if len(sess.items) == 0 {
		delete(s.repo.sessions, s.sessionID)
	}
}

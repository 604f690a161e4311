package session

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

type MemoryRepository struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]Session
}

func NewMemoryRepository(ttl time.Duration) *MemoryRepository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryRepository{ttl: ttl, sessions: make(map[string]Session)}
}

func (m *MemoryRepository) Create(ctx context.Context, userID uuid.UUID) (*Session, error) {
	session, err := newSession(userID, m.ttl)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.Token] = *session
	return session, nil
}

func (m *MemoryRepository) GetByToken(ctx context.Context, token string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[token]
	if !ok {
		return nil, ErrInvalidSession
	}
	if session.Expired(time.Now()) {
		return nil, ErrExpiredSession
	}
	return &session, nil
}

func (m *MemoryRepository) Delete(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *MemoryRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	maps.DeleteFunc(m.sessions, func(_ string, s Session) bool { return s.UserID == userID })
	return nil
}

var _ Repository = (*MemoryRepository)(nil)

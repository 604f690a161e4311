package user

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type MemoryRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]User
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[uuid.UUID]User)}
}

func (m *MemoryRepository) Register(ctx context.Context, username, email, password, locale string) (*User, error) {
	user, err := New(username, email, password, locale)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == user.Username {
			return nil, ErrUsernameExists
		}
		if u.Email == user.Email {
			return nil, ErrEmailExists
		}
	}
	m.users[user.ID] = *user
	return user, nil
}

func (m *MemoryRepository) find(match func(User) bool) *User {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if match(u) {
			return &u
		}
	}
	return nil
}

func (m *MemoryRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return m.find(func(u User) bool { return u.Username == username }), nil
}

func (m *MemoryRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.ToLower(email)
	return m.find(func(u User) bool { return u.Email == email }), nil
}

func (m *MemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return m.find(func(u User) bool { return u.ID == id }), nil
}

var _ Repository = (*MemoryRepository)(nil)

package store

import (
	"context"
	"strings"
	"sync"
	"time"
)

// InMemoryUserStore is a development-only UserStore.
type InMemoryUserStore struct {
	mu         sync.RWMutex
	nextID     int64
	byID       map[int64]User
	byUsername map[string]int64
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{
		byID:       make(map[int64]User),
		byUsername: make(map[string]int64),
	}
}

func (s *InMemoryUserStore) CreateUser(_ context.Context, username, passwordHash string) (User, error) {
	key := strings.ToLower(strings.TrimSpace(username))
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byUsername[key]; ok {
		return User{}, ErrConflict
	}
	s.nextID++
	u := User{ID: s.nextID, Username: strings.TrimSpace(username), PasswordHash: passwordHash, CreatedAt: time.Now().UTC()}
	s.byID[u.ID] = u
	s.byUsername[key] = u.ID
	return u, nil
}

func (s *InMemoryUserStore) FindByUsername(_ context.Context, username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUsername[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return User{}, ErrNotFound
	}
	return s.byID[id], nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, id int64) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

// Package memory provides the in-memory user directory backend.
package memory

import (
	"context"
	"sync"

	"github.com/yndnr/credgate/internal/core/domain"
)

// Store provides in-memory storage for directory accounts.
//
// Accounts are indexed by ID and by username. All reads and writes
// clone, so callers never share memory with the store.
type Store struct {
	mu     sync.RWMutex
	users  map[string]*domain.User // id -> user
	byName map[string]string       // username -> id
}

// NewStore creates a new in-memory directory store.
func NewStore() *Store {
	return &Store{
		users:  make(map[string]*domain.User),
		byName: make(map[string]string),
	}
}

// Create creates a new account.
func (s *Store) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[user.Username]; exists {
		return domain.ErrUserConflict
	}
	if _, exists := s.users[user.ID]; exists {
		return domain.ErrUserConflict
	}

	s.users[user.ID] = user.Clone()
	s.byName[user.Username] = user.ID
	return nil
}

// Get retrieves an account by ID.
func (s *Store) Get(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}

	return user.Clone(), nil
}

// GetByUsername retrieves an account by its lowercase login name.
func (s *Store) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}

	return s.users[id].Clone(), nil
}

// Update updates an existing account.
func (s *Store) Update(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return domain.ErrUserNotFound
	}

	// Keep the username index in sync if the login name changed
	if existing.Username != user.Username {
		if _, taken := s.byName[user.Username]; taken {
			return domain.ErrUserConflict
		}
		delete(s.byName, existing.Username)
		s.byName[user.Username] = user.ID
	}

	s.users[user.ID] = user.Clone()
	return nil
}

// List retrieves all accounts.
func (s *Store) List(_ context.Context) ([]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*domain.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user.Clone())
	}

	return users, nil
}

// Count returns the number of accounts.
func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

// Close is a no-op for the in-memory backend.
func (s *Store) Close() error {
	return nil
}

package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"verigate/internal/auth/models"
	"verigate/pkg/platform/sentinel"
)

// InMemoryUserStore keeps users in a map. It backs unit tests and favors
// clarity over performance.
type InMemoryUserStore struct {
	mu    sync.RWMutex
	users map[uuid.UUID]models.User
}

func NewInMemory() *InMemoryUserStore {
	return &InMemoryUserStore{users: make(map[uuid.UUID]models.User)}
}

func (s *InMemoryUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.WalletAddress, user.WalletAddress) {
			return sentinel.ErrConflict
		}
		if user.Email != "" && existing.Email == user.Email {
			return sentinel.ErrConflict
		}
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = *user
	return nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[id]; ok {
		return &user, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryUserStore) FindByWallet(_ context.Context, walletAddress string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if strings.EqualFold(user.WalletAddress, walletAddress) {
			u := user
			return &u, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryUserStore) Update(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return sentinel.ErrNotFound
	}
	for id, existing := range s.users {
		if id != user.ID && user.Email != "" && existing.Email == user.Email {
			return sentinel.ErrConflict
		}
	}
	user.UpdatedAt = time.Now()
	s.users[user.ID] = *user
	return nil
}

func (s *InMemoryUserStore) SetVerified(_ context.Context, id uuid.UUID, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	user.Verified = verified
	user.UpdatedAt = time.Now()
	s.users[id] = user
	return nil
}

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"verigate/internal/verification/models"
	"verigate/pkg/platform/sentinel"
)

// InMemoryRequestStore keeps verification requests in a map for unit tests.
type InMemoryRequestStore struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]models.Request
}

func NewInMemory() *InMemoryRequestStore {
	return &InMemoryRequestStore{requests: make(map[uuid.UUID]models.Request)}
}

func (s *InMemoryRequestStore) Create(_ context.Context, req *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	req.CreatedAt = now
	req.UpdatedAt = now
	s.requests[req.ID] = *req
	return nil
}

func (s *InMemoryRequestStore) FindByID(_ context.Context, id uuid.UUID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if req, ok := s.requests[id]; ok {
		return &req, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryRequestStore) FindPendingByUser(_ context.Context, userID uuid.UUID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, req := range s.requests {
		if req.UserID == userID && req.Status == models.StatusPending {
			r := req
			return &r, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryRequestStore) FindByStorageID(_ context.Context, storageID string) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, req := range s.requests {
		if req.StorageID == storageID {
			r := req
			return &r, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryRequestStore) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Request
	for _, req := range s.requests {
		if req.UserID == userID {
			r := req
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryRequestStore) Update(_ context.Context, req *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.ID]; !ok {
		return sentinel.ErrNotFound
	}
	req.UpdatedAt = time.Now()
	s.requests[req.ID] = *req
	return nil
}

package store

import (
	"context"

	"github.com/google/uuid"

	"verigate/internal/verification/models"
)

// RequestStore persists verification requests. Implementations return
// sentinel.ErrNotFound for missing records.
type RequestStore interface {
	Create(ctx context.Context, req *models.Request) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Request, error)
	// FindPendingByUser returns the user's pending request, if any.
	FindPendingByUser(ctx context.Context, userID uuid.UUID) (*models.Request, error)
	// FindByStorageID resolves a request by its storage content identifier.
	FindByStorageID(ctx context.Context, storageID string) (*models.Request, error)
	// ListByUser returns all of the user's requests, most recent first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Request, error)
	Update(ctx context.Context, req *models.Request) error
}

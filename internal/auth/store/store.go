package store

import (
	"context"

	"github.com/google/uuid"

	"verigate/internal/auth/models"
)

// UserStore persists user records. Implementations return sentinel errors
// (pkg/platform/sentinel): ErrNotFound for missing users, ErrConflict for
// wallet address or email uniqueness violations.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByWallet(ctx context.Context, walletAddress string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	SetVerified(ctx context.Context, id uuid.UUID, verified bool) error
}

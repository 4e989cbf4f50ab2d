package port

import (
	"context"
	"github.com/google/uuid"
	"github.com/marketlab/marketplace/internal/domain"
)

type UserRepository interface {
	// Save upserts by id, rewriting email and name.
	Save(ctx context.Context, user domain.User) error

	// FindByID and FindByEmail return domain.ErrUserNotFound when absent.
	FindByID(ctx context.Context, userID uuid.UUID) (domain.User, error)
	FindByEmail(ctx context.Context, email string) (domain.User, error)

	FindAll(ctx context.Context) ([]domain.User, error)
}

package port

import (
	"context"
	"github.com/google/uuid"
	"github.com/marketlab/marketplace/internal/domain"
)

type OrderRepository interface {
	// Save upserts the order header and fully replaces its item and
	// history sets. Not safe for concurrent writers of the same order.
	Save(ctx context.Context, order domain.Order) error

	// FindByID reconstructs the aggregate through the trusted restore
	// path. Returns domain.ErrOrderNotFound when absent.
	FindByID(ctx context.Context, orderID uuid.UUID) (domain.Order, error)

	FindByUser(ctx context.Context, userID uuid.UUID) ([]domain.Order, error)
	FindAll(ctx context.Context) ([]domain.Order, error)
}

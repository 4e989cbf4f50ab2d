package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketlab/marketplace/internal/domain"
	"github.com/marketlab/marketplace/internal/port"
)

type Users interface {
	// Register rejects duplicate emails with domain.ErrEmailExists.
	// Email format is validated by the entity, not here.
	Register(ctx context.Context, email, name string) (domain.User, error)

	GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}

type userService struct {
	users  port.UserRepository
	logger *zap.Logger
}

func NewUsers(users port.UserRepository, logger *zap.Logger) Users {
	return &userService{users: users, logger: logger}
}

func (s *userService) Register(ctx context.Context, email, name string) (domain.User, error) {
	var zero domain.User

	_, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return zero, fmt.Errorf("email[%s]: %w", email, domain.ErrEmailExists)
	case !errors.Is(err, domain.ErrUserNotFound):
		return zero, fmt.Errorf("users.FindByEmail: %w", err)
	}

	user, err := domain.NewUser(email, name)
	if err != nil {
		return zero, fmt.Errorf("domain.NewUser: %w", err)
	}

	if err := s.users.Save(ctx, user); err != nil {
		return zero, fmt.Errorf("users.Save: %w", err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID.String()))

	return user, nil
}

func (s *userService) GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error) {
	return s.users.FindByID(ctx, userID)
}

func (s *userService) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.users.FindByEmail(ctx, email)
}

func (s *userService) List(ctx context.Context) ([]domain.User, error) {
	return s.users.FindAll(ctx)
}

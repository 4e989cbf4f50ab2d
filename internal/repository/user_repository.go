package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marketlab/marketplace/internal/domain"
	"github.com/marketlab/marketplace/internal/port"
)

type userRepository struct {
	pool *pgxpool.Pool
}

func NewUser(pool *pgxpool.Pool) port.UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) Save(ctx context.Context, user domain.User) error {
	if user.ID == uuid.Nil {
		return fmt.Errorf("userID is empty")
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, email, name, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email, name = EXCLUDED.name`,
		user.ID, user.Email, user.Name, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	return nil
}

func (r *userRepository) FindByID(ctx context.Context, userID uuid.UUID) (domain.User, error) {
	return r.findOne(ctx, `SELECT id, email, name, created_at FROM users WHERE id = $1`, userID)
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.findOne(ctx, `SELECT id, email, name, created_at FROM users WHERE email = $1`, email)
}

func (r *userRepository) FindAll(ctx context.Context) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, email, name, created_at FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("pool.Query: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanUser: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

func (r *userRepository) findOne(ctx context.Context, query string, arg any) (domain.User, error) {
	var u domain.User

	user, err := scanUser(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return u, fmt.Errorf("user[%v]: %w", arg, domain.ErrUserNotFound)
		}
		return u, fmt.Errorf("scanUser: %w", err)
	}

	return user, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		id        uuid.UUID
		email     string
		name      string
		createdAt time.Time
	)

	if err := row.Scan(&id, &email, &name, &createdAt); err != nil {
		return domain.User{}, err
	}

	return domain.RestoreUser(id, email, name, createdAt), nil
}

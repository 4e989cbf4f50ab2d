package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)

type User struct {
	ID        uuid.UUID
	Email     string
	Name      string
	CreatedAt time.Time
}

func NewUser(email, name string) (User, error) {
	var u User

	if strings.TrimSpace(email) == "" || !emailRegex.MatchString(email) {
		return u, fmt.Errorf("email[%s]: %w", email, ErrInvalidEmail)
	}

	return User{
		ID:        uuid.New(),
		Email:     email,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// RestoreUser rebuilds a persisted user without re-running validation.
// Trusted input only.
func RestoreUser(id uuid.UUID, email, name string, createdAt time.Time) User {
	return User{
		ID:        id,
		Email:     email,
		Name:      name,
		CreatedAt: createdAt,
	}
}

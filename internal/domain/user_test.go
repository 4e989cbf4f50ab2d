package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketlab/marketplace/internal/domain"
)

func TestNewUser(t *testing.T) {
	tests := []struct {
		name      string
		email     string
		wantError bool
	}{
		{name: "valid email: ok", email: "test@example.com"},
		{name: "plus addressing: ok", email: "test+tag@example.com"},
		{name: "empty email: invalid", email: "", wantError: true},
		{name: "whitespace email: invalid", email: "   ", wantError: true},
		{name: "no at sign: invalid", email: "invalid", wantError: true},
		{name: "no domain: invalid", email: "invalid@", wantError: true},
		{name: "no local part: invalid", email: "@example.com", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := domain.NewUser(tt.email, "John Doe")
			if tt.wantError {
				require.ErrorIs(t, err, domain.ErrInvalidEmail)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, tt.email, user.Email)
			assert.Equal(t, "John Doe", user.Name)
			assert.NotEqual(t, uuid.Nil, user.ID)
			assert.False(t, user.CreatedAt.IsZero())
		})
	}
}

func TestRestoreUser(t *testing.T) {
	original, err := domain.NewUser("test@example.com", "John Doe")
	require.NoError(t, err)

	restored := domain.RestoreUser(original.ID, original.Email, original.Name, original.CreatedAt)
	assert.Equal(t, original, restored)
}

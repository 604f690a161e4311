package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name                      string
		username, email, password string
		want                      error
	}{
		{"valid", "alice", "Alice@Example.com", "secret", nil},
		{"blank username", " ", "alice@example.com", "secret", ErrInvalidUsername},
		{"bad email", "alice", "not-an-email", "secret", ErrInvalidEmail},
		{"blank password", "alice", "alice@example.com", "", ErrBlankPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := New(tt.username, tt.email, tt.password, "")
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "alice@example.com", u.Email)
			assert.Equal(t, DefaultLocale, u.Locale)
			assert.NotEqual(t, tt.password, u.PasswordHash)
			assert.NoError(t, CheckPassword(u.PasswordHash, tt.password))
			assert.Error(t, CheckPassword(u.PasswordHash, "wrong"))
		})
	}
}

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	alice, err := repo.Register(ctx, "alice", "alice@example.com", "secret", "de")
	require.NoError(t, err)

	_, err = repo.Register(ctx, "alice", "other@example.com", "secret", "")
	assert.ErrorIs(t, err, ErrUsernameExists)
	_, err = repo.Register(ctx, "bob", "ALICE@example.com", "secret", "")
	assert.ErrorIs(t, err, ErrEmailExists)

	byName, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byName.ID)
	assert.Equal(t, "de", byName.Locale)

	byID, err := repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	missing, err := repo.GetByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

package accounts_test

import (
	"testing"

	"github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{
			name:     "Valid password",
			password: "securePassword123!",
		},
		{
			name:     "Empty password",
			password: "",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := accounts.HashPasswordWithCost(tt.password, bcrypt.MinCost)

			if tt.wantErr {
				assert.ErrorIs(t, err, accounts.ErrNoEmptyString)
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, hash)
			assert.NoError(t, accounts.ComparePasswordAndHash(tt.password, hash))
		})
	}
}

func TestComparePasswordAndHashMismatch(t *testing.T) {
	hash, err := accounts.HashPasswordWithCost("correct-horse", bcrypt.MinCost)
	require.NoError(t, err)

	err = accounts.ComparePasswordAndHash("battery-staple", hash)
	assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)
}

func TestHashPasswordWithCostOutOfRange(t *testing.T) {
	hash, err := accounts.HashPasswordWithCost("secret-password", 99)
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, accounts.DefaultBcryptCost, cost)
}

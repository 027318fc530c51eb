package accounts_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/goliatone/go-accounts"
)

func TestParseRole(t *testing.T) {
	role, ok := accounts.ParseRole(" Admin ")
	assert.True(t, ok)
	assert.Equal(t, accounts.RoleAdmin, role)

	_, ok = accounts.ParseRole("owner")
	assert.False(t, ok)
}

func TestUserRoleIsAtLeast(t *testing.T) {
	assert.True(t, accounts.RoleAdmin.IsAtLeast(accounts.RoleUser))
	assert.True(t, accounts.RoleUser.IsAtLeast(accounts.RoleUser))
	assert.False(t, accounts.RoleUser.IsAtLeast(accounts.RoleAdmin))
	assert.False(t, accounts.UserRole("guest").IsAtLeast(accounts.RoleUser))
}

package accounts_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/goliatone/go-accounts"
)

func TestListUsersQueryNormalize(t *testing.T) {
	q := accounts.ListUsersQuery{}.Normalize()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, accounts.DefaultPageSize, q.Limit)

	q = accounts.ListUsersQuery{Page: 3, Limit: 500}.Normalize()
	assert.Equal(t, 3, q.Page)
	assert.Equal(t, accounts.MaxPageSize, q.Limit)
}

func TestListUsersQueryFilter(t *testing.T) {
	filter := accounts.ListUsersQuery{
		Page:      3,
		Limit:     20,
		Search:    "jamie",
		Status:    "banned",
		Role:      "user",
		SortBy:    "name",
		SortOrder: "asc",
	}.Filter()

	assert.Equal(t, accounts.UserFilter{
		Search:    "jamie",
		Status:    accounts.UserStatusBanned,
		Role:      accounts.RoleUser,
		SortBy:    "name",
		SortOrder: "asc",
		Limit:     20,
		Offset:    40,
	}, filter)
}

func TestListUsersQueryValidate(t *testing.T) {
	assert.NoError(t, accounts.ListUsersQuery{}.Validate())
	assert.Error(t, accounts.ListUsersQuery{Limit: 101}.Validate())
	assert.Error(t, accounts.ListUsersQuery{Status: "deleted"}.Validate())
	assert.Error(t, accounts.ListUsersQuery{Role: "owner"}.Validate())
	assert.Error(t, accounts.ListUsersQuery{SortOrder: "sideways"}.Validate())
}

func TestBanRequestReasonOrDefault(t *testing.T) {
	assert.Equal(t, accounts.DefaultBanReason, accounts.BanRequest{}.ReasonOrDefault())
	assert.Equal(t, accounts.DefaultBanReason, accounts.BanRequest{Reason: "   "}.ReasonOrDefault())
	assert.Equal(t, "spam", accounts.BanRequest{Reason: " spam "}.ReasonOrDefault())
}

func TestUpdateProfileRequestPhone(t *testing.T) {
	cases := map[string]bool{
		"+44 20 7946 0958": true,
		"(415) 555-2671":   true,
		"":                 true,
		"12":               false,
		"not a phone":      false,
	}
	for phone, valid := range cases {
		err := accounts.UpdateProfileRequest{Phone: ptr(phone)}.Validate()
		if valid {
			assert.NoError(t, err, phone)
		} else {
			assert.Error(t, err, phone)
		}
	}
}

func TestUpdateProfileRequestFields(t *testing.T) {
	assert.NoError(t, accounts.UpdateProfileRequest{}.Validate())
	assert.Error(t, accounts.UpdateProfileRequest{Name: ptr("J")}.Validate())
	assert.Error(t, accounts.UpdateProfileRequest{Avatar: ptr("not a url")}.Validate())
	assert.NoError(t, accounts.UpdateProfileRequest{Avatar: ptr("https://example.com/a.png")}.Validate())
}

func TestChangePasswordRequestConfirmation(t *testing.T) {
	req := accounts.ChangePasswordRequest{
		CurrentPassword: "old-password",
		NewPassword:     "new-password",
		ConfirmPassword: "new-password",
	}
	assert.NoError(t, req.Validate())

	req.ConfirmPassword = "other-password"
	assert.Error(t, req.Validate())

	req.ConfirmPassword = req.NewPassword
	req.NewPassword, req.ConfirmPassword = "short", "short"
	assert.Error(t, req.Validate())
}

func TestStatusAndUpdateUserRequests(t *testing.T) {
	assert.NoError(t, accounts.StatusRequest{Status: "inactive"}.Validate())
	assert.Error(t, accounts.StatusRequest{}.Validate())

	assert.NoError(t, accounts.UpdateUserRequest{}.Validate())
	assert.Error(t, accounts.UpdateUserRequest{Role: ptr("owner")}.Validate())
	assert.Error(t, accounts.UpdateUserRequest{Email: ptr("nope")}.Validate())
}

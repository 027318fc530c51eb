package accounts

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"
)

const (
	DefaultPageSize   = 10
	MaxPageSize       = 100
	DefaultBanReason  = "Violation of terms"
	minPasswordLength = 8
	maxPasswordLength = 128
)

// DefaultPhoneRegion is used for numbers given without a country code.
const DefaultPhoneRegion = "US"

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(2, 100)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(minPasswordLength, maxPasswordLength)),
	)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// UpdateProfileRequest changes the fields that are set.
type UpdateProfileRequest struct {
	Name   *string `json:"name"`
	Phone  *string `json:"phone"`
	Bio    *string `json:"bio"`
	Avatar *string `json:"avatar"`
}

func (r UpdateProfileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(2, 100)),
		validation.Field(&r.Phone, validation.By(possiblePhone)),
		validation.Field(&r.Bio, validation.Length(0, 500)),
		validation.Field(&r.Avatar, is.URL),
	)
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (r ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(minPasswordLength, maxPasswordLength)),
		validation.Field(&r.ConfirmPassword, validation.Required, validation.By(equals(r.NewPassword, "passwords do not match"))),
	)
}

type BanRequest struct {
	Reason string `json:"reason"`
}

func (r BanRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Reason, validation.Length(0, 500)),
	)
}

// ReasonOrDefault returns the ban reason, or the default one when empty.
func (r BanRequest) ReasonOrDefault() string {
	if reason := strings.TrimSpace(r.Reason); reason != "" {
		return reason
	}
	return DefaultBanReason
}

type StatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (r StatusRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.Required, validation.In(
			string(UserStatusActive), string(UserStatusInactive), string(UserStatusBanned),
		)),
	)
}

// UpdateUserRequest is an admin edit of an account. Only set fields change.
type UpdateUserRequest struct {
	Name   *string `json:"name"`
	Email  *string `json:"email"`
	Role   *string `json:"role"`
	Status *string `json:"status"`
}

func (r UpdateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(2, 100)),
		validation.Field(&r.Email, validation.NilOrNotEmpty, is.Email),
		validation.Field(&r.Role, validation.NilOrNotEmpty, validation.In(roleValues()...)),
		validation.Field(&r.Status, validation.NilOrNotEmpty, validation.In(
			string(UserStatusActive), string(UserStatusInactive), string(UserStatusBanned),
		)),
	)
}

type MessageRequest struct {
	Message string `json:"message"`
}

func (r MessageRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Message, validation.Required, validation.Length(1, 1000)),
	)
}

// ListUsersQuery is the query string of the user listing.
type ListUsersQuery struct {
	Page      int    `query:"page"`
	Limit     int    `query:"limit"`
	Search    string `query:"search"`
	Status    string `query:"status"`
	Role      string `query:"role"`
	SortBy    string `query:"sortBy"`
	SortOrder string `query:"sortOrder"`
}

func (q ListUsersQuery) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Page, validation.Min(0)),
		validation.Field(&q.Limit, validation.Min(0), validation.Max(MaxPageSize)),
		validation.Field(&q.Status, validation.In(
			string(UserStatusActive), string(UserStatusInactive), string(UserStatusBanned),
		)),
		validation.Field(&q.Role, validation.In(roleValues()...)),
		validation.Field(&q.SortOrder, validation.In("asc", "desc", "ASC", "DESC")),
	)
}

// Normalize fills in paging defaults.
func (q ListUsersQuery) Normalize() ListUsersQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	return q
}

// Filter converts the query into a repository filter.
func (q ListUsersQuery) Filter() UserFilter {
	q = q.Normalize()
	return UserFilter{
		Search:    q.Search,
		Status:    UserStatus(q.Status),
		Role:      UserRole(q.Role),
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
		Limit:     q.Limit,
		Offset:    (q.Page - 1) * q.Limit,
	}
}

func equals(expected, message string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != expected {
			return errors.New(message)
		}
		return nil
	}
}

func possiblePhone(value any) error {
	v, _ := validation.Indirect(value)
	raw, _ := v.(string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	num, err := phonenumbers.Parse(raw, DefaultPhoneRegion)
	if err != nil || !phonenumbers.IsPossibleNumber(num) {
		return errors.New("must be a valid phone number")
	}
	return nil
}

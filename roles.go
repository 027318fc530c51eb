package accounts

import "strings"

// UserRole is the global role of an account.
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

var roleRank = map[UserRole]int{
	RoleUser:  0,
	RoleAdmin: 1,
}

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// IsAtLeast reports whether r ranks at or above min.
func (r UserRole) IsAtLeast(min UserRole) bool {
	current, ok := roleRank[r]
	if !ok {
		return false
	}
	required, ok := roleRank[min]
	if !ok {
		return false
	}
	return current >= required
}

// AllRoles returns the known roles, lowest first.
func AllRoles() []UserRole {
	return []UserRole{RoleUser, RoleAdmin}
}

// ParseRole parses a role name, ignoring case and surrounding space.
func ParseRole(raw string) (UserRole, bool) {
	role := UserRole(strings.ToLower(strings.TrimSpace(raw)))
	return role, role.Valid()
}

func roleValues() []any {
	values := make([]any, 0, len(roleRank))
	for _, role := range AllRoles() {
		values = append(values, string(role))
	}
	return values
}

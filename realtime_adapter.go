package accounts

import (
	"github.com/goliatone/go-accounts/realtime"
)

// RealtimeValidator exposes a TokenService as a realtime keyspace validator.
func RealtimeValidator(ts TokenService) realtime.TokenValidator {
	return realtime.TokenValidatorFunc(func(token string) (realtime.Claims, error) {
		claims, err := ts.Validate(token)
		if err != nil {
			return nil, err
		}
		return claims, nil
	})
}

// NewCredentialVerifier checks credentials against the user keyspace first
// and the admin keyspace second.
func NewCredentialVerifier(user, admin TokenService) *realtime.Verifier {
	return realtime.NewVerifier(RealtimeValidator(user), RealtimeValidator(admin))
}

// RealtimeIdentity returns the registry identity of user.
func RealtimeIdentity(user *User) realtime.Identity {
	if user == nil {
		return realtime.Identity{}
	}
	role := realtime.RoleUser
	if user.IsAdmin() {
		role = realtime.RoleAdmin
	}
	return realtime.Identity{ID: user.ID.String(), Role: role}
}

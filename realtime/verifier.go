package realtime

import (
	"errors"
	"strings"
)

// Keyspace names the secret a credential was verified with.
type Keyspace string

const (
	KeyspaceUser  Keyspace = "user"
	KeyspaceAdmin Keyspace = "admin"
)

// Claims mirrors the subset of the accounts claims the verifier reads.
type Claims interface {
	UserID() string
}

// TokenValidator validates a credential against one keyspace.
type TokenValidator interface {
	Validate(token string) (Claims, error)
}

// TokenValidatorFunc adapts a function to TokenValidator.
type TokenValidatorFunc func(token string) (Claims, error)

// Validate implements TokenValidator.
func (f TokenValidatorFunc) Validate(token string) (Claims, error) {
	return f(token)
}

// Verdict is the outcome of a verification: either an accepted identity or a
// rejection carrying the reason.
type Verdict struct {
	Identity Identity
	Keyspace Keyspace
	Err      error
}

// Accepted reports whether the credential resolved to an identity.
func (v Verdict) Accepted() bool {
	return v.Err == nil && v.Identity.Valid()
}

// CredentialVerifier resolves a credential to an identity.
type CredentialVerifier interface {
	Verify(token string) Verdict
}

// Verifier checks credentials against the user keyspace first and the admin
// keyspace second. The keyspace that accepted the token decides the role.
type Verifier struct {
	user  TokenValidator
	admin TokenValidator
}

var _ CredentialVerifier = (*Verifier)(nil)

// NewVerifier returns a Verifier for the two keyspaces. Either validator may
// be nil, in which case that keyspace rejects everything.
func NewVerifier(user, admin TokenValidator) *Verifier {
	return &Verifier{user: user, admin: admin}
}

// Verify resolves token to an identity. It has no side effects.
func (v *Verifier) Verify(token string) Verdict {
	token = strings.TrimSpace(token)
	if token == "" {
		return Verdict{Err: ErrMissingCredential}
	}

	identity, userErr := v.try(v.user, token, RoleUser)
	if userErr == nil {
		return Verdict{Identity: identity, Keyspace: KeyspaceUser}
	}

	identity, adminErr := v.try(v.admin, token, RoleAdmin)
	if adminErr == nil {
		return Verdict{Identity: identity, Keyspace: KeyspaceAdmin}
	}

	return Verdict{Err: authenticationRejected(errors.Join(userErr, adminErr))}
}

// Subject returns the user id behind token, in either keyspace.
func (v *Verifier) Subject(token string) (string, error) {
	verdict := v.Verify(token)
	if !verdict.Accepted() {
		return "", verdict.Err
	}
	return verdict.Identity.ID, nil
}

func (v *Verifier) try(validator TokenValidator, token string, role Role) (Identity, error) {
	if validator == nil {
		return Identity{}, errors.New(string(role) + " keyspace not configured")
	}

	claims, err := validator.Validate(token)
	if err != nil {
		return Identity{}, err
	}
	if claims == nil || strings.TrimSpace(claims.UserID()) == "" {
		return Identity{}, errors.New("token carries no subject")
	}

	return Identity{ID: claims.UserID(), Role: role}, nil
}

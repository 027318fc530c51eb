package realtime

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeAuthenticationRejected = "AUTHENTICATION_REJECTED"
	TextCodeMissingCredential      = "MISSING_CREDENTIAL"
	TextCodeRegistryRace           = "REGISTRY_RACE"
)

// ErrAuthenticationRejected is returned when a credential is valid in neither
// keyspace.
var ErrAuthenticationRejected = goerrors.New("authentication rejected", goerrors.CategoryAuth).
	WithTextCode(TextCodeAuthenticationRejected).
	WithCode(goerrors.CodeUnauthorized)

// ErrMissingCredential is returned when a handshake carries no token.
var ErrMissingCredential = goerrors.New("missing credential", goerrors.CategoryAuth).
	WithTextCode(TextCodeMissingCredential).
	WithCode(goerrors.CodeUnauthorized)

// ErrRegistryRace marks an unregister that lost to a newer registration. It is
// logged and otherwise ignored.
var ErrRegistryRace = goerrors.New("stale connection unregister ignored", goerrors.CategoryConflict).
	WithTextCode(TextCodeRegistryRace).
	WithCode(goerrors.CodeConflict)

func authenticationRejected(cause error) error {
	if cause == nil {
		return ErrAuthenticationRejected
	}
	return goerrors.Wrap(cause, goerrors.CategoryAuth, ErrAuthenticationRejected.Message).
		WithTextCode(TextCodeAuthenticationRejected).
		WithCode(goerrors.CodeUnauthorized)
}

// IsAuthenticationRejected reports whether err refused a credential.
func IsAuthenticationRejected(err error) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == TextCodeAuthenticationRejected || rich.TextCode == TextCodeMissingCredential
}

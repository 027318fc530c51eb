package accounts

import (
	"context"
	"sync"

	"github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
)

// UserTracker is a store we can use to retrieve users
type UserTracker interface {
	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error)
	TrackSuccessfulLogin(ctx context.Context, user *User) error
}

// UserProvider checks email and password pairs against the users store.
type UserProvider struct {
	store     UserTracker
	Validator func(*User) error
	logger    Logger
}

var _ IdentityProvider = (*UserProvider)(nil)

// NewUserProvider will create a new UserProvider
func NewUserProvider(store UserTracker) *UserProvider {
	return &UserProvider{
		store:     store,
		logger:    defLogger,
		Validator: defaultValidator,
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	u.logger = ResolveLogger(l)
	return u
}

func (u *UserProvider) validate(user *User) error {
	if u.Validator != nil {
		return u.Validator(user)
	}
	return defaultValidator(user)
}

// Authenticate returns the user owning email when password matches. Unknown
// emails and wrong passwords both yield ErrInvalidCredentials. The account
// status is not checked here.
func (u *UserProvider) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := u.store.GetByIdentifier(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			// keep unknown emails as slow as wrong passwords
			_ = ComparePasswordAndHash(password, decoyHash())
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user during verification")
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := u.validate(user); err != nil {
		return nil, err
	}

	return user, nil
}

// TrackLogin stamps the last login time of user.
func (u *UserProvider) TrackLogin(ctx context.Context, user *User) {
	if err := u.store.TrackSuccessfulLogin(ctx, user); err != nil {
		u.logger.Error("failed to track successful login", "user_id", user.ID.String(), "error", err)
	}
}

// VerifyIdentity will find the user, compare to the password, and return identity
func (u *UserProvider) VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error) {
	user, err := u.Authenticate(ctx, identifier, password)
	if err != nil {
		return nil, err
	}
	return NewIdentityFromUser(user), nil
}

func (u *UserProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error) {
	user, err := u.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if err := u.validate(user); err != nil {
		return nil, err
	}

	return NewIdentityFromUser(user), nil
}

var decoyHash = sync.OnceValue(RandomPasswordHash)

func defaultValidator(u *User) error {
	if u == nil {
		return ErrIdentityNotFound
	}
	if !u.Role.Valid() {
		return errors.New("user has an unknown or invalid role", errors.CategoryAuth).
			WithTextCode("INVALID_ROLE").
			WithCode(errors.CodeForbidden).
			WithMetadata(map[string]any{"role": u.Role, "user_id": u.ID.String()})
	}
	return nil
}

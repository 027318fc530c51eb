package accounts

// UserIdentity adapts a User to Identity.
type UserIdentity struct {
	user *User
}

// NewIdentityFromUser wraps user as an Identity.
func NewIdentityFromUser(user *User) Identity {
	if user == nil {
		return nil
	}
	return UserIdentity{user: user}
}

func (u UserIdentity) ID() string {
	if u.user == nil {
		return ""
	}
	return u.user.ID.String()
}

func (u UserIdentity) Username() string {
	if u.user == nil {
		return ""
	}
	return u.user.Name
}

func (u UserIdentity) Email() string {
	if u.user == nil {
		return ""
	}
	return u.user.Email
}

func (u UserIdentity) Role() string {
	if u.user == nil {
		return ""
	}
	return string(u.user.Role)
}

func (u UserIdentity) Status() UserStatus {
	if u.user == nil {
		return ""
	}
	u.user.EnsureStatus()
	return u.user.Status
}

// User returns the wrapped user.
func (u UserIdentity) User() *User {
	return u.user
}

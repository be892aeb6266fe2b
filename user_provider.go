package account

import (
	"context"
	"errors"
	"sync"
)

// UserFinder is a store we can use to retrieve users
type UserFinder interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// UserProvider verifies credentials against the credential store
type UserProvider struct {
	store  UserFinder
	hasher PasswordAuthenticator
	logger Logger

	dummyOnce sync.Once
	dummyHash string
}

var _ IdentityProvider = (*UserProvider)(nil)

// NewUserProvider will create a new UserProvider
func NewUserProvider(store UserFinder, hasher PasswordAuthenticator) *UserProvider {
	return &UserProvider{
		store:  store,
		hasher: hasher,
		logger: defLogger{},
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	u.logger = resolveLogger(l)
	return u
}

// VerifyIdentity will find the user, compare the password and check the
// account is active. Every credential failure is ErrInvalidCredentials.
func (u *UserProvider) VerifyIdentity(ctx context.Context, email, password string) (*User, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := u.store.GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			// spend the same time as a real comparison
			_ = u.hasher.ComparePasswordAndHash(password, u.dummy())
			return nil, ErrInvalidCredentials
		}
		return nil, richError(err, "failed to retrieve user during verification")
	}

	if err := u.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if errors.Is(err, ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		u.logger.Error("stored password hash could not be verified", "user_id", user.ID, "error", err)
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func (u *UserProvider) dummy() string {
	u.dummyOnce.Do(func() {
		hash, err := u.hasher.HashPassword(randomPassword())
		if err != nil {
			u.logger.Error("failed to build dummy password hash", "error", err)
			return
		}
		u.dummyHash = hash
	})
	return u.dummyHash
}

package account_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/goliatone/go-account"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"golang.org/x/crypto/bcrypt"
)

func newTestHasher(t *testing.T) *account.PasswordHasher {
	t.Helper()
	hasher, err := account.NewPasswordHasher(account.HasherBcrypt, account.WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)
	return hasher
}

func TestUserProviderVerifyIdentity(t *testing.T) {
	ctx := context.Background()
	hasher := newTestHasher(t)

	hash, err := hasher.HashPassword("password123")
	require.NoError(t, err)

	active := &account.User{ID: 1, Email: "test@example.com", PasswordHash: hash, IsActive: true}
	inactive := &account.User{ID: 2, Email: "pending@example.com", PasswordHash: hash}

	t.Run("Successful verification", func(t *testing.T) {
		finder := new(MockUserFinder)
		finder.On("GetByEmail", ctx, "test@example.com").Return(active, nil).Once()

		user, err := account.NewUserProvider(finder, hasher).VerifyIdentity(ctx, "test@example.com", "password123")

		require.NoError(t, err)
		assert.Equal(t, int64(1), user.ID)
		finder.AssertExpectations(t)
	})

	tests := []struct {
		name     string
		email    string
		password string
		setup    func(f *MockUserFinder)
	}{
		{
			name:     "wrong password",
			email:    "test@example.com",
			password: "wrong-password",
			setup: func(f *MockUserFinder) {
				f.On("GetByEmail", ctx, "test@example.com").Return(active, nil).Once()
			},
		},
		{
			name:     "unknown email",
			email:    "nobody@example.com",
			password: "password123",
			setup: func(f *MockUserFinder) {
				f.On("GetByEmail", ctx, "nobody@example.com").Return(nil, account.ErrIdentityNotFound).Once()
			},
		},
		{
			name:     "inactive account with correct password",
			email:    "pending@example.com",
			password: "password123",
			setup: func(f *MockUserFinder) {
				f.On("GetByEmail", ctx, "pending@example.com").Return(inactive, nil).Once()
			},
		},
		{
			name:     "corrupt stored hash",
			email:    "test@example.com",
			password: "password123",
			setup: func(f *MockUserFinder) {
				broken := *active
				broken.PasswordHash = "not-a-hash"
				f.On("GetByEmail", ctx, "test@example.com").Return(&broken, nil).Once()
			},
		},
		{
			name:     "empty credentials",
			email:    "",
			password: "",
			setup:    func(f *MockUserFinder) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			finder := new(MockUserFinder)
			tt.setup(finder)

			provider := account.NewUserProvider(finder, hasher).WithLogger(account.NopLogger{})
			user, err := provider.VerifyIdentity(ctx, tt.email, tt.password)

			assert.Nil(t, user)
			require.ErrorIs(t, err, account.ErrInvalidCredentials)
			assert.Equal(t, account.ErrInvalidCredentials.Error(), err.Error())
			finder.AssertExpectations(t)
		})
	}

	t.Run("storage failure is not a credential failure", func(t *testing.T) {
		finder := new(MockUserFinder)
		finder.On("GetByEmail", ctx, mock.Anything).Return(nil, errors.New("connection reset")).Once()

		_, err := account.NewUserProvider(finder, hasher).VerifyIdentity(ctx, "test@example.com", "password123")
		require.Error(t, err)
		assert.False(t, errors.Is(err, account.ErrInvalidCredentials))
	})
}

func TestUserProviderStorageFailureFromDatabase(t *testing.T) {
	sqldb, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { _ = db.Close() })

	dbMock.ExpectQuery("SELECT").WillReturnError(errors.New("connection refused"))

	users := account.NewUsersRepository(db)
	provider := account.NewUserProvider(users, newTestHasher(t)).WithLogger(account.NopLogger{})

	_, err = provider.VerifyIdentity(context.Background(), "test@example.com", "password123")
	require.Error(t, err)
	assert.False(t, errors.Is(err, account.ErrInvalidCredentials))
	assert.Contains(t, err.Error(), "failed to retrieve user")
	require.NoError(t, dbMock.ExpectationsWereMet())
}

package account_test

import (
	"context"
	"time"

	"github.com/goliatone/go-account"
	"github.com/stretchr/testify/mock"
)

// MockUserFinder implements account.UserFinder
type MockUserFinder struct {
	mock.Mock
}

func (m *MockUserFinder) GetByEmail(ctx context.Context, email string) (*account.User, error) {
	args := m.Called(ctx, email)
	if user := args.Get(0); user != nil {
		return user.(*account.User), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockSessionManager implements account.SessionManager
type MockSessionManager struct {
	mock.Mock
}

func (m *MockSessionManager) Login(ctx context.Context, email, password string, meta account.SessionMeta) (*account.Session, *account.User, error) {
	args := m.Called(ctx, email, password, meta)
	session, _ := args.Get(0).(*account.Session)
	user, _ := args.Get(1).(*account.User)
	return session, user, args.Error(2)
}

func (m *MockSessionManager) Logout(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *MockSessionManager) Authenticate(ctx context.Context, sessionID string) (*account.Session, *account.User, error) {
	args := m.Called(ctx, sessionID)
	session, _ := args.Get(0).(*account.Session)
	user, _ := args.Get(1).(*account.User)
	return session, user, args.Error(2)
}

func (m *MockSessionManager) SessionTTL() time.Duration {
	return time.Hour
}

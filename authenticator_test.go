package account_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-account"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthenticator(f *fixture) *account.SessionAuthenticator {
	provider := account.NewUserProvider(f.deps.Repo.Users(), f.deps.Hasher).WithLogger(account.NopLogger{})
	return account.NewSessionAuthenticator(provider, f.deps.Repo, testConfig{}.GetSessionTTL()).
		WithLogger(account.NopLogger{}).
		WithActivitySink(f.sink).
		WithClock(f.clock.Now)
}

func TestSessionAuthenticatorLogin(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "pepe@example.com", strongPassword, true)
	auther := newTestAuthenticator(f)
	ctx := context.Background()

	session, loggedIn, err := auther.Login(ctx, "PEPE@example.com", strongPassword, account.SessionMeta{
		IP:        "10.0.0.1",
		UserAgent: "test-agent",
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
	assert.Equal(t, user.ID, session.UserID)
	assert.Equal(t, "10.0.0.1", session.IP)
	assert.WithinDuration(t, f.clock.Now().Add(2*time.Hour), session.ExpiresAt, time.Second)

	stored, err := f.deps.Repo.Users().GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)

	gotSession, gotUser, err := auther.Authenticate(ctx, session.ID.String())
	require.NoError(t, err)
	assert.Equal(t, session.ID, gotSession.ID)
	assert.Equal(t, user.ID, gotUser.ID)

	assert.Contains(t, f.sink.Types(), account.ActivityEventLoginSuccess)
}

func TestSessionAuthenticatorLoginFailuresAreUniform(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "active@example.com", strongPassword, true)
	f.createUser(t, "pending@example.com", strongPassword, false)
	auther := newTestAuthenticator(f)

	attempts := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: "active@example.com", password: "wrong-password"},
		{name: "unknown email", email: "nobody@example.com", password: strongPassword},
		{name: "inactive account", email: "pending@example.com", password: strongPassword},
	}

	var messages []string
	for _, tt := range attempts {
		t.Run(tt.name, func(t *testing.T) {
			session, user, err := auther.Login(context.Background(), tt.email, tt.password, account.SessionMeta{})
			require.ErrorIs(t, err, account.ErrInvalidCredentials)
			assert.Nil(t, session)
			assert.Nil(t, user)
			messages = append(messages, err.Error())
		})
	}

	require.Len(t, messages, len(attempts))
	for _, msg := range messages {
		assert.Equal(t, messages[0], msg)
	}
}

func TestSessionAuthenticatorAuthenticate(t *testing.T) {
	f := newFixture(t)
	auther := newTestAuthenticator(f)
	ctx := context.Background()

	t.Run("garbage and unknown ids", func(t *testing.T) {
		for _, id := range []string{"", "not-a-uuid", uuid.NewString()} {
			_, _, err := auther.Authenticate(ctx, id)
			require.ErrorIs(t, err, account.ErrUnauthenticated, id)
		}
	})

	t.Run("expired session", func(t *testing.T) {
		f.createUser(t, "expired@example.com", strongPassword, true)
		session, _, err := auther.Login(ctx, "expired@example.com", strongPassword, account.SessionMeta{})
		require.NoError(t, err)

		f.clock.Advance(3 * time.Hour)

		_, _, err = auther.Authenticate(ctx, session.ID.String())
		require.ErrorIs(t, err, account.ErrUnauthenticated)
	})

	t.Run("deactivated user", func(t *testing.T) {
		user := f.createUser(t, "gone@example.com", strongPassword, true)
		session, _, err := auther.Login(ctx, "gone@example.com", strongPassword, account.SessionMeta{})
		require.NoError(t, err)

		_, err = f.db.NewUpdate().
			Model((*account.User)(nil)).
			Set("is_active = ?", false).
			Where("id = ?", user.ID).
			Exec(ctx)
		require.NoError(t, err)

		_, _, err = auther.Authenticate(ctx, session.ID.String())
		require.ErrorIs(t, err, account.ErrUnauthenticated)
	})
}

type brokenDeleteSessions struct {
	account.Sessions
}

func (brokenDeleteSessions) Delete(context.Context, uuid.UUID) error {
	return errors.New("database is locked")
}

type sessionsOverride struct {
	account.RepositoryManager
	sessions account.Sessions
}

func (m sessionsOverride) Sessions() account.Sessions {
	return m.sessions
}

func TestSessionAuthenticatorOrphanedSession(t *testing.T) {
	ctx := context.Background()

	deleteUser := func(t *testing.T, f *fixture, id int64) {
		t.Helper()
		_, err := f.db.NewDelete().
			Model((*account.User)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		require.NoError(t, err)
	}

	t.Run("session is dropped", func(t *testing.T) {
		f := newFixture(t)
		user := f.createUser(t, "pepe@example.com", strongPassword, true)
		logger := &warnLogger{}
		auther := newTestAuthenticator(f).WithLogger(logger)

		session, _, err := auther.Login(ctx, "pepe@example.com", strongPassword, account.SessionMeta{})
		require.NoError(t, err)
		deleteUser(t, f, user.ID)

		_, _, err = auther.Authenticate(ctx, session.ID.String())
		require.ErrorIs(t, err, account.ErrUnauthenticated)

		_, err = f.deps.Repo.Sessions().GetActive(ctx, session.ID, f.clock.Now())
		assert.ErrorIs(t, err, account.ErrSessionNotFound)
		assert.Empty(t, logger.Warnings())
	})

	t.Run("failed drop is logged", func(t *testing.T) {
		f := newFixture(t)
		user := f.createUser(t, "pepe@example.com", strongPassword, true)
		logger := &warnLogger{}

		repo := sessionsOverride{
			RepositoryManager: f.deps.Repo,
			sessions:          brokenDeleteSessions{Sessions: f.deps.Repo.Sessions()},
		}
		provider := account.NewUserProvider(repo.Users(), f.deps.Hasher).WithLogger(account.NopLogger{})
		auther := account.NewSessionAuthenticator(provider, repo, testConfig{}.GetSessionTTL()).
			WithLogger(logger).
			WithActivitySink(f.sink).
			WithClock(f.clock.Now)

		session, _, err := auther.Login(ctx, "pepe@example.com", strongPassword, account.SessionMeta{})
		require.NoError(t, err)
		deleteUser(t, f, user.ID)

		_, _, err = auther.Authenticate(ctx, session.ID.String())
		require.ErrorIs(t, err, account.ErrUnauthenticated)
		assert.Equal(t, []string{"failed to drop orphaned session"}, logger.Warnings())
	})
}

func TestSessionAuthenticatorLogoutIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "pepe@example.com", strongPassword, true)
	auther := newTestAuthenticator(f)
	ctx := context.Background()

	session, _, err := auther.Login(ctx, "pepe@example.com", strongPassword, account.SessionMeta{})
	require.NoError(t, err)

	require.NoError(t, auther.Logout(ctx, session.ID.String()))
	require.NoError(t, auther.Logout(ctx, session.ID.String()))
	require.NoError(t, auther.Logout(ctx, ""))
	require.NoError(t, auther.Logout(ctx, "not-a-uuid"))

	_, _, err = auther.Authenticate(ctx, session.ID.String())
	require.ErrorIs(t, err, account.ErrUnauthenticated)
}

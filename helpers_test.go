package account_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-account"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, account.CreateSchema(context.Background(), db))
	return db
}

type testConfig struct {
	secret string
}

func (c testConfig) GetSecretKey() string {
	if c.secret != "" {
		return c.secret
	}
	return testSecret
}
func (c testConfig) GetIssuer() string                       { return "test-issuer" }
func (c testConfig) GetActivationTokenTTL() time.Duration    { return 72 * time.Hour }
func (c testConfig) GetPasswordResetTokenTTL() time.Duration { return 24 * time.Hour }
func (c testConfig) GetSessionTTL() time.Duration            { return 2 * time.Hour }
func (c testConfig) GetSessionCookieName() string            { return "sessionid" }
func (c testConfig) GetCookieSecure() bool                   { return true }
func (c testConfig) GetSiteDomain() string                   { return "https://example.com" }
func (c testConfig) GetActivationPath() string               { return "/account/activate/{uid}/{token}/" }
func (c testConfig) GetPasswordResetPath() string            { return "/account/reset_password/{uid}/{token}/" }
func (c testConfig) GetPasswordHasher() string               { return account.HasherBcrypt }
func (c testConfig) GetIdentityAlphabet() string             { return "" }
func (c testConfig) GetIdentityMinLength() int               { return account.DefaultIdentityMinLength }

type sentMail struct {
	kind  string
	email string
	link  string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *recordingNotifier) SendActivation(_ context.Context, email, link string) error {
	return n.record("activation", email, link)
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, email, link string) error {
	return n.record("reset", email, link)
}

func (n *recordingNotifier) record(kind, email, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMail{kind: kind, email: email, link: link})
	return nil
}

func (n *recordingNotifier) Last(t *testing.T) sentMail {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sent, "expected a notification")
	return n.sent[len(n.sent)-1]
}

func (n *recordingNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type recordingSink struct {
	mu     sync.Mutex
	events []account.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event account.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Types() []account.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]account.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

// warnLogger keeps warning messages and drops everything else
type warnLogger struct {
	account.NopLogger
	mu    sync.Mutex
	warns []string
}

func (l *warnLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *warnLogger) Warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}

type fixture struct {
	db       *bun.DB
	clock    *clock
	deps     account.Dependencies
	notifier *recordingNotifier
	sink     *recordingSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newTestDB(t)
	c := &clock{now: time.Now().UTC().Truncate(time.Second)}

	hasher, err := account.NewPasswordHasher(account.HasherBcrypt, account.WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)

	tokens, err := account.NewTokenServiceFromConfig(testConfig{}, account.WithTokenClock(c.Now))
	require.NoError(t, err)

	ids, err := account.NewIdentityEncoder("", account.DefaultIdentityMinLength)
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	sink := &recordingSink{}

	deps := account.Dependencies{
		Repo:       account.NewRepositoryManager(db, account.WithUsersClock(c.Now)),
		Hasher:     hasher,
		Tokens:     tokens,
		Identities: ids,
		Links:      account.NewLinkBuilderFromConfig(testConfig{}),
		Notifier:   notifier,
		Activity:   sink,
		Logger:     account.NopLogger{},
		Now:        c.Now,
	}

	return &fixture{
		db:       db,
		clock:    c,
		deps:     deps,
		notifier: notifier,
		sink:     sink,
	}
}

// createUser inserts a user directly through the credential store
func (f *fixture) createUser(t *testing.T, email, password string, active bool) *account.User {
	t.Helper()
	ctx := context.Background()

	hash, err := f.deps.Hasher.HashPassword(password)
	require.NoError(t, err)

	user, err := f.deps.Repo.Users().Create(ctx, &account.User{
		Email:        email,
		Name:         "Test User",
		PasswordHash: hash,
	})
	require.NoError(t, err)

	if active {
		ok, err := f.deps.Repo.Users().Activate(ctx, user.ID)
		require.NoError(t, err)
		require.True(t, ok)
		user, err = f.deps.Repo.Users().GetByID(ctx, user.ID)
		require.NoError(t, err)
	}

	return user
}

package account_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-account"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestTokenService(t *testing.T, c *clock, opts ...account.TokenServiceOption) *account.JWTTokenService {
	t.Helper()
	opts = append([]account.TokenServiceOption{account.WithTokenClock(c.Now)}, opts...)
	svc, err := account.NewTokenService(testSecret, "test-issuer", opts...)
	require.NoError(t, err)
	return svc
}

func TestNewTokenService_RejectsShortSecret(t *testing.T) {
	_, err := account.NewTokenService("short", "issuer")
	assert.Error(t, err)
}

func TestTokenService_IssueAndVerify(t *testing.T) {
	c := &clock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestTokenService(t, c)

	user := &account.User{ID: 42, Email: "pepe@example.com", PasswordHash: "$2a$hash"}

	tests := []struct {
		name    string
		mutate  func(u *account.User)
		purpose account.TokenPurpose
		token   func(t *testing.T) string
		advance time.Duration
		want    bool
	}{
		{
			name:    "valid activation token",
			purpose: account.PurposeActivation,
			want:    true,
		},
		{
			name:    "valid reset token",
			purpose: account.PurposePasswordReset,
			want:    true,
		},
		{
			name:    "activation token after activation",
			purpose: account.PurposeActivation,
			mutate:  func(u *account.User) { u.IsActive = true },
			want:    false,
		},
		{
			name:    "reset token after password change",
			purpose: account.PurposePasswordReset,
			mutate:  func(u *account.User) { u.PasswordHash = "$2a$other" },
			want:    false,
		},
		{
			name:    "reset token after login",
			purpose: account.PurposePasswordReset,
			mutate: func(u *account.User) {
				at := time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC)
				u.LastLoginAt = &at
			},
			want: false,
		},
		{
			name:    "different user",
			purpose: account.PurposeActivation,
			mutate:  func(u *account.User) { u.ID = 43 },
			want:    false,
		},
		{
			name:    "expired",
			purpose: account.PurposeActivation,
			advance: 73 * time.Hour,
			want:    false,
		},
		{
			name:    "just before expiry",
			purpose: account.PurposeActivation,
			advance: 71 * time.Hour,
			want:    true,
		},
		{
			name:    "empty token",
			purpose: account.PurposeActivation,
			token:   func(t *testing.T) string { return "" },
			want:    false,
		},
		{
			name:    "garbage token",
			purpose: account.PurposeActivation,
			token:   func(t *testing.T) string { return "not.a.token" },
			want:    false,
		},
		{
			name:    "token for another purpose",
			purpose: account.PurposePasswordReset,
			token: func(t *testing.T) string {
				tok, err := svc.Issue(user, account.PurposeActivation)
				require.NoError(t, err)
				return tok
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

			var token string
			if tt.token != nil {
				token = tt.token(t)
			} else {
				var err error
				token, err = svc.Issue(user, tt.purpose)
				require.NoError(t, err)
			}

			current := user.Snapshot()
			if tt.mutate != nil {
				tt.mutate(current)
			}
			c.Advance(tt.advance)

			assert.Equal(t, tt.want, svc.Verify(current, tt.purpose, token))
		})
	}
}

func TestTokenService_ResetTokenIssuedAfterChangeVerifies(t *testing.T) {
	c := &clock{now: time.Now()}
	svc := newTestTokenService(t, c)

	user := &account.User{ID: 7, Email: "a@example.com", PasswordHash: "old"}
	before, err := svc.Issue(user, account.PurposePasswordReset)
	require.NoError(t, err)

	user.PasswordHash = "new"
	after, err := svc.Issue(user, account.PurposePasswordReset)
	require.NoError(t, err)

	assert.False(t, svc.Verify(user, account.PurposePasswordReset, before))
	assert.True(t, svc.Verify(user, account.PurposePasswordReset, after))
}

func TestTokenService_DoesNotLeakFingerprint(t *testing.T) {
	c := &clock{now: time.Now()}
	svc := newTestTokenService(t, c)

	user := &account.User{ID: 7, Email: "a@example.com", PasswordHash: "$2a$12$secrethash"}
	token, err := svc.Issue(user, account.PurposePasswordReset)
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)

	assert.Equal(t, "7", claims["sub"])
	assert.Equal(t, "password_reset", claims["pur"])
	assert.NotContains(t, claims["fph"], "secrethash")
	assert.False(t, strings.Contains(token, "secrethash"))
}

func TestTokenService_RejectsOtherSigners(t *testing.T) {
	c := &clock{now: time.Now()}
	svc := newTestTokenService(t, c)

	other, err := account.NewTokenService("ffffffffffffffffffffffffffffffff", "test-issuer", account.WithTokenClock(c.Now))
	require.NoError(t, err)

	user := &account.User{ID: 1, Email: "a@example.com"}
	token, err := other.Issue(user, account.PurposeActivation)
	require.NoError(t, err)

	assert.False(t, svc.Verify(user, account.PurposeActivation, token))

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "1",
		"iss": "test-issuer",
		"pur": "activation",
		"exp": c.now.Add(time.Hour).Unix(),
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	assert.False(t, svc.Verify(user, account.PurposeActivation, unsigned))
}

func TestTokenService_CustomPurpose(t *testing.T) {
	c := &clock{now: time.Now()}
	purpose := account.TokenPurpose("email_change")
	svc := newTestTokenService(t, c,
		account.WithFingerprinter(purpose, func(u *account.User) string { return u.Email }),
		account.WithTokenTTL(purpose, time.Minute),
	)

	user := &account.User{ID: 3, Email: "old@example.com"}
	token, err := svc.Issue(user, purpose)
	require.NoError(t, err)
	assert.True(t, svc.Verify(user, purpose, token))

	c.Advance(2 * time.Minute)
	assert.False(t, svc.Verify(user, purpose, token))

	_, err = svc.Issue(user, account.TokenPurpose("unknown"))
	assert.Error(t, err)
}

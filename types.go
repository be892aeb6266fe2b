package account

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Logger is the structured logger used across the package. Arguments
// after msg are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds account options
type Config interface {
	GetSecretKey() string
	GetIssuer() string
	GetActivationTokenTTL() time.Duration
	GetPasswordResetTokenTTL() time.Duration
	GetSessionTTL() time.Duration
	GetSessionCookieName() string
	GetCookieSecure() bool
	GetSiteDomain() string
	GetActivationPath() string
	GetPasswordResetPath() string
	GetPasswordHasher() string
	GetIdentityAlphabet() string
	GetIdentityMinLength() int
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// IdentityProvider verifies login credentials
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, email, password string) (*User, error)
}

// Notifier delivers account links to users
type Notifier interface {
	SendActivation(ctx context.Context, email, link string) error
	SendPasswordReset(ctx context.Context, email, link string) error
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print("[ERR] ACCOUNT " + format(msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print("[WRN] ACCOUNT " + format(msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print("[INF] ACCOUNT " + format(msg, args...))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Print("[DBG] ACCOUNT " + format(msg, args...))
}

func format(msg string, args ...any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
			continue
		}
		fmt.Fprintf(&b, " %v", args[i])
	}
	return newline(b.String())
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

func resolveLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}

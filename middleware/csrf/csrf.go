package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-router"
)

var (
	ErrTokenMismatch    = errors.New("CSRF token incorrect")
	ErrTokenMissing     = errors.New("CSRF cookie not set")
	ErrTokenExpired     = errors.New("CSRF token expired")
	ErrSecureKeyMissing = errors.New("CSRF secure key required")
)

// DefaultTokenLength is the default nonce length for CSRF tokens
const DefaultTokenLength = 32

// DefaultContextKey is the default key for storing CSRF tokens in context
const DefaultContextKey = "csrf_token"

// DefaultCookieName is the cookie carrying the token
const DefaultCookieName = "csrftoken"

// DefaultHeaderName is the header clients echo the cookie value in
const DefaultHeaderName = "X-CSRFToken"

// Config defines the configuration for CSRF middleware
type Config struct {
	// Skip defines a function to skip middleware
	Skip func(router.Context) bool

	// TokenLength defines the length of the random nonce
	TokenLength int

	// ContextKey defines the key for storing the token in context
	ContextKey string

	// CookieName is the name of the cookie that carries the token
	CookieName string

	// CookiePath scopes the token cookie
	CookiePath string

	// CookieSecure marks the cookie as Secure
	CookieSecure bool

	// HeaderName defines the header name for the token
	HeaderName string

	// ErrorHandler defines the error handler
	ErrorHandler router.ErrorHandler

	// SuccessHandler defines the success handler
	SuccessHandler router.HandlerFunc

	// SafeMethods defines HTTP methods that don't require CSRF protection
	SafeMethods []string

	// Expiration defines how long tokens are valid
	Expiration time.Duration

	// SecureKey signs tokens. A random key is generated when empty.
	SecureKey []byte

	// Now is the clock used for expiry checks
	Now func() time.Time
}

// New creates a double submit cookie CSRF middleware. Safe requests get a
// signed token cookie, unsafe requests must echo the cookie value in the
// configured header.
// The configuration is resolved once, every route shares the same key.
func New(config ...Config) router.MiddlewareFunc {
	cfg := configDefault(config...)

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return ctx.Next()
			}

			cookieToken := ctx.Cookies(cfg.CookieName)
			cookieErr := validateToken(cfg, cookieToken)

			method := strings.ToUpper(ctx.Method())
			if slices.Contains(cfg.SafeMethods, method) {
				token := cookieToken
				if cookieErr != nil {
					var err error
					if token, err = generateToken(cfg); err != nil {
						return cfg.ErrorHandler(ctx, err)
					}
					setCookie(ctx, cfg, token)
				}
				ctx.Locals(cfg.ContextKey, token)
				ctx.Locals(cfg.ContextKey+"_header", cfg.HeaderName)
				return cfg.SuccessHandler(ctx)
			}

			if cookieToken == "" {
				return cfg.ErrorHandler(ctx, ErrTokenMissing)
			}

			if cookieErr != nil {
				return cfg.ErrorHandler(ctx, cookieErr)
			}

			received := ctx.GetString(cfg.HeaderName, "")
			if received == "" {
				return cfg.ErrorHandler(ctx, ErrTokenMismatch)
			}

			if subtle.ConstantTimeCompare([]byte(received), []byte(cookieToken)) != 1 {
				return cfg.ErrorHandler(ctx, ErrTokenMismatch)
			}

			ctx.Locals(cfg.ContextKey, cookieToken)
			return cfg.SuccessHandler(ctx)
		}
	}
}

func setCookie(ctx router.Context, cfg Config, token string) {
	ctx.Cookie(&router.Cookie{
		Name:     cfg.CookieName,
		Value:    token,
		Path:     cfg.CookiePath,
		Expires:  cfg.Now().Add(cfg.Expiration),
		HTTPOnly: false,
		Secure:   cfg.CookieSecure,
		SameSite: "Lax",
	})
}

// generateToken returns base64url(timestamp:nonce:signature)
func generateToken(cfg Config) (string, error) {
	if len(cfg.SecureKey) == 0 {
		return "", ErrSecureKeyMissing
	}

	nonce := make([]byte, cfg.TokenLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	payload := fmt.Sprintf("%d:%s", cfg.Now().UTC().Unix(), hex.EncodeToString(nonce))
	token := fmt.Sprintf("%s:%s", payload, hex.EncodeToString(sign(cfg.SecureKey, payload)))
	return base64.RawURLEncoding.EncodeToString([]byte(token)), nil
}

func validateToken(cfg Config, token string) error {
	if token == "" {
		return ErrTokenMissing
	}

	if len(cfg.SecureKey) == 0 {
		return ErrSecureKeyMissing
	}

	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return ErrTokenMismatch
	}

	parts := strings.Split(string(decoded), ":")
	if len(parts) != 3 {
		return ErrTokenMismatch
	}

	timestamp, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return ErrTokenMismatch
	}

	if _, err := hex.DecodeString(parts[1]); err != nil {
		return ErrTokenMismatch
	}

	signature, err := hex.DecodeString(parts[2])
	if err != nil {
		return ErrTokenMismatch
	}

	if !hmac.Equal(signature, sign(cfg.SecureKey, parts[0]+":"+parts[1])) {
		return ErrTokenMismatch
	}

	if cfg.Expiration > 0 {
		expiresAt := time.Unix(timestamp, 0).Add(cfg.Expiration)
		if cfg.Now().UTC().After(expiresAt) {
			return ErrTokenExpired
		}
	}

	return nil
}

func sign(key []byte, payload string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}

// configDefault returns a default config
func configDefault(config ...Config) Config {
	cfg := Config{}
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.TokenLength == 0 {
		cfg.TokenLength = DefaultTokenLength
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}

	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}

	if cfg.CookiePath == "" {
		cfg.CookiePath = "/"
	}

	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}

	if cfg.SafeMethods == nil {
		cfg.SafeMethods = []string{"GET", "HEAD", "OPTIONS", "TRACE"}
	}

	if cfg.Expiration == 0 {
		cfg.Expiration = 365 * 24 * time.Hour
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	cfg.SecureKey = initializeSecureKey(cfg.SecureKey)

	return cfg
}

func defaultErrorHandler(ctx router.Context, err error) error {
	switch err {
	case ErrTokenMissing, ErrTokenMismatch, ErrTokenExpired:
		return ctx.JSON(router.StatusForbidden, map[string]string{
			"detail": "CSRF Failed: " + err.Error() + ".",
		})
	default:
		return ctx.JSON(router.StatusInternalServerError, map[string]string{
			"detail": "CSRF configuration error.",
		})
	}
}

func initializeSecureKey(current []byte) []byte {
	if len(current) > 0 {
		if len(current) < 32 {
			panic(fmt.Errorf("csrf: secure key must be at least 32 bytes, got %d", len(current)))
		}
		return current
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		panic(fmt.Errorf("csrf: unable to initialize secure key: %w", err))
	}
	return key
}

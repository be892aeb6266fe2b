package account

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenPurpose scopes a token to a single state transition
type TokenPurpose string

const (
	PurposeActivation    TokenPurpose = "activation"
	PurposePasswordReset TokenPurpose = "password_reset"
)

const defaultTokenTTL = 72 * time.Hour

// Fingerprinter derives the state a token is bound to. Any change in the
// returned value invalidates outstanding tokens for the purpose.
type Fingerprinter func(user *User) string

// ActivationFingerprint binds activation tokens to the activation flag
func ActivationFingerprint(user *User) string {
	return fmt.Sprintf("%d|%s|%t", user.ID, user.Email, user.IsActive)
}

// PasswordResetFingerprint binds reset tokens to the password hash and
// the last login, second precision.
func PasswordResetFingerprint(user *User) string {
	var login int64
	if user.LastLoginAt != nil {
		login = user.LastLoginAt.UTC().Unix()
	}
	return fmt.Sprintf("%d|%s|%s|%d", user.ID, user.Email, user.PasswordHash, login)
}

// TokenService issues and verifies single purpose user tokens
type TokenService interface {
	Issue(user *User, purpose TokenPurpose) (string, error)
	Verify(user *User, purpose TokenPurpose, token string) bool
}

type purposeClaims struct {
	Purpose     string `json:"pur"`
	Fingerprint string `json:"fph"`
	jwt.RegisteredClaims
}

// JWTTokenService signs tokens as HS256 JWTs. The fingerprint travels
// as an HMAC so hashes never leave the server.
type JWTTokenService struct {
	signingKey     []byte
	fingerprintKey []byte
	issuer         string
	ttls           map[TokenPurpose]time.Duration
	fingerprints   map[TokenPurpose]Fingerprinter
	now            func() time.Time
	logger         Logger
}

var _ TokenService = (*JWTTokenService)(nil)

type TokenServiceOption func(*JWTTokenService)

// WithTokenTTL sets the validity window for purpose
func WithTokenTTL(purpose TokenPurpose, ttl time.Duration) TokenServiceOption {
	return func(s *JWTTokenService) {
		if ttl > 0 {
			s.ttls[purpose] = ttl
		}
	}
}

// WithFingerprinter registers a fingerprinter for a custom purpose
func WithFingerprinter(purpose TokenPurpose, fp Fingerprinter) TokenServiceOption {
	return func(s *JWTTokenService) {
		if fp != nil {
			s.fingerprints[purpose] = fp
		}
	}
}

// WithTokenClock overrides the clock, used in tests
func WithTokenClock(now func() time.Time) TokenServiceOption {
	return func(s *JWTTokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(l Logger) TokenServiceOption {
	return func(s *JWTTokenService) {
		s.logger = resolveLogger(l)
	}
}

// NewTokenService creates a token service keyed from secret
func NewTokenService(secret, issuer string, opts ...TokenServiceOption) (*JWTTokenService, error) {
	if len(secret) < 32 {
		return nil, goerrors.New("token secret must be at least 32 bytes", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"length": len(secret)})
	}

	if issuer == "" {
		issuer = "go-account"
	}

	s := &JWTTokenService{
		signingKey:     deriveKey(secret, "account.token.signing"),
		fingerprintKey: deriveKey(secret, "account.token.fingerprint"),
		issuer:         issuer,
		ttls: map[TokenPurpose]time.Duration{
			PurposeActivation:    defaultTokenTTL,
			PurposePasswordReset: defaultTokenTTL,
		},
		fingerprints: map[TokenPurpose]Fingerprinter{
			PurposeActivation:    ActivationFingerprint,
			PurposePasswordReset: PasswordResetFingerprint,
		},
		now:    time.Now,
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s, nil
}

// NewTokenServiceFromConfig creates a token service using cfg
func NewTokenServiceFromConfig(cfg Config, opts ...TokenServiceOption) (*JWTTokenService, error) {
	base := []TokenServiceOption{
		WithTokenTTL(PurposeActivation, cfg.GetActivationTokenTTL()),
		WithTokenTTL(PurposePasswordReset, cfg.GetPasswordResetTokenTTL()),
	}
	return NewTokenService(cfg.GetSecretKey(), cfg.GetIssuer(), append(base, opts...)...)
}

// Issue creates a token for user bound to the current state fingerprint
func (s *JWTTokenService) Issue(user *User, purpose TokenPurpose) (string, error) {
	if user == nil || user.ID <= 0 {
		return "", goerrors.New("token requires a persisted user", goerrors.CategoryInternal)
	}

	fp, ok := s.fingerprints[purpose]
	if !ok {
		return "", goerrors.New("unknown token purpose", goerrors.CategoryInternal).
			WithMetadata(map[string]any{"purpose": purpose})
	}

	ttl := s.ttls[purpose]
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	now := s.now()
	claims := &purposeClaims{
		Purpose:     string(purpose),
		Fingerprint: s.sign(purpose, user, fp),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign token")
	}
	return token, nil
}

// Verify checks token against the user's current state. It never fails,
// any problem with the token reports false.
func (s *JWTTokenService) Verify(user *User, purpose TokenPurpose, token string) bool {
	if user == nil || user.ID <= 0 || strings.TrimSpace(token) == "" {
		return false
	}

	fp, ok := s.fingerprints[purpose]
	if !ok {
		return false
	}

	claims := &purposeClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithSubject(strconv.FormatInt(user.ID, 10)),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || parsed == nil || !parsed.Valid {
		s.logger.Debug("token rejected", "purpose", purpose, "user_id", user.ID, "error", err)
		return false
	}

	if claims.Purpose != string(purpose) {
		return false
	}

	expected := s.sign(purpose, user, fp)
	return hmac.Equal([]byte(claims.Fingerprint), []byte(expected))
}

func (s *JWTTokenService) sign(purpose TokenPurpose, user *User, fp Fingerprinter) string {
	mac := hmac.New(sha256.New, s.fingerprintKey)
	mac.Write([]byte(string(purpose) + "|" + fp(user)))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func deriveKey(secret, label string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(label))
	return mac.Sum(nil)
}

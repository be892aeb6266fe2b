package account

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	HasherBcrypt   = "bcrypt"
	HasherArgon2id = "argon2id"
)

const argon2idPrefix = "$argon2id$"

// Argon2Params are the argon2id cost parameters
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params follow the RFC 9106 second recommended option
var DefaultArgon2Params = Argon2Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// PasswordHasher hashes new passwords with the configured algorithm
// and verifies any hash format it knows about.
type PasswordHasher struct {
	algorithm  string
	bcryptCost int
	argon      Argon2Params
}

var _ PasswordAuthenticator = (*PasswordHasher)(nil)

type PasswordHasherOption func(*PasswordHasher)

// WithBcryptCost overrides the bcrypt cost
func WithBcryptCost(cost int) PasswordHasherOption {
	return func(h *PasswordHasher) {
		h.bcryptCost = cost
	}
}

// WithArgon2Params overrides the argon2id parameters
func WithArgon2Params(p Argon2Params) PasswordHasherOption {
	return func(h *PasswordHasher) {
		h.argon = p
	}
}

// NewPasswordHasher returns a hasher for algorithm, bcrypt when empty
func NewPasswordHasher(algorithm string, opts ...PasswordHasherOption) (*PasswordHasher, error) {
	if algorithm == "" {
		algorithm = HasherBcrypt
	}

	switch algorithm {
	case HasherBcrypt, HasherArgon2id:
	default:
		return nil, goerrors.New("unknown password hasher", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"algorithm": algorithm})
	}

	h := &PasswordHasher{
		algorithm:  algorithm,
		bcryptCost: passwordHashCost(),
		argon:      DefaultArgon2Params,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	return h, nil
}

// Algorithm returns the algorithm used for new hashes
func (h *PasswordHasher) Algorithm() string {
	return h.algorithm
}

// HashPassword will generate a password hash
func (h *PasswordHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	if h.algorithm == HasherArgon2id {
		return h.hashArgon2id(password)
	}

	out, err := bcrypt.GenerateFromPassword([]byte(password), h.bcryptCost)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}
	return string(out), nil
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func (h *PasswordHasher) ComparePasswordAndHash(password, hash string) error {
	if strings.HasPrefix(hash, argon2idPrefix) {
		return compareArgon2id(password, hash)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return ErrUnknownHashFormat
	}
	return nil
}

func (h *PasswordHasher) hashArgon2id(password string) (string, error) {
	salt := make([]byte, h.argon.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate salt")
	}

	key := argon2.IDKey([]byte(password), salt, h.argon.Iterations, h.argon.Memory, h.argon.Parallelism, h.argon.KeyLength)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.argon.Memory,
		h.argon.Iterations,
		h.argon.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func compareArgon2id(password, hash string) error {
	// $argon2id$v=19$m=65536,t=3,p=2$salt$key
	parts := strings.Split(hash, "$")
	if len(parts) != 6 {
		return ErrUnknownHashFormat
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return ErrUnknownHashFormat
	}

	var p Argon2Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return ErrUnknownHashFormat
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return ErrUnknownHashFormat
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return ErrUnknownHashFormat
	}

	other := argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, uint32(len(key)))
	if subtle.ConstantTimeCompare(key, other) != 1 {
		return ErrMismatchedHashAndPassword
	}
	return nil
}

// randomPassword returns a throwaway secret used to build dummy hashes
func randomPassword() string {
	b := make([]byte, 24)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

package account

import (
	"math"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/sqids/sqids-go"
)

// DefaultIdentityAlphabet is URL safe and avoids look-alike characters
const DefaultIdentityAlphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// DefaultIdentityMinLength pads short ids
const DefaultIdentityMinLength = 8

// IdentityEncoder is a reversible, URL safe transport encoding for user ids.
// It is not a secret.
type IdentityEncoder interface {
	Encode(id int64) (string, error)
	Decode(s string) (int64, error)
}

// SqidsEncoder encodes ids with sqids
type SqidsEncoder struct {
	s *sqids.Sqids
}

var _ IdentityEncoder = (*SqidsEncoder)(nil)

// NewIdentityEncoder creates a sqids backed encoder
func NewIdentityEncoder(alphabet string, minLength int) (*SqidsEncoder, error) {
	if alphabet == "" {
		alphabet = DefaultIdentityAlphabet
	}

	if minLength < 0 || minLength > 255 {
		return nil, goerrors.New("identity min length must be between 0 and 255", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"min_length": minLength})
	}

	if strings.ContainsAny(alphabet, "/?#%&+ ") {
		return nil, goerrors.New("identity alphabet must be URL safe", goerrors.CategoryBadInput)
	}

	s, err := sqids.New(sqids.Options{
		Alphabet:  alphabet,
		MinLength: uint8(minLength),
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid identity encoder options")
	}

	return &SqidsEncoder{s: s}, nil
}

// Encode returns the opaque string for id
func (e *SqidsEncoder) Encode(id int64) (string, error) {
	if id <= 0 {
		return "", goerrors.New("identity must be a positive number", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"id": id})
	}

	out, err := e.s.Encode([]uint64{uint64(id)})
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode identity")
	}
	return out, nil
}

// Decode returns the id for s or ErrDecode. Only the canonical
// encoding of a single id is accepted.
func (e *SqidsEncoder) Decode(s string) (int64, error) {
	if s == "" {
		return 0, ErrDecode
	}

	nums := e.s.Decode(s)
	if len(nums) != 1 || nums[0] == 0 || nums[0] > math.MaxInt64 {
		return 0, ErrDecode
	}

	canonical, err := e.s.Encode(nums)
	if err != nil || canonical != s {
		return 0, ErrDecode
	}

	return int64(nums[0]), nil
}

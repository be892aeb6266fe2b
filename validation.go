package account

import (
	"errors"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

const (
	MinPasswordLength = 8
	// bcrypt ignores anything past 72 bytes
	MaxPasswordLength = 72
)

// DefaultPhoneRegion is used to parse numbers without a country prefix
var DefaultPhoneRegion = "US"

var commonPasswords = map[string]struct{}{
	"password":    {},
	"password1":   {},
	"password123": {},
	"12345678":    {},
	"123456789":   {},
	"1234567890":  {},
	"qwerty123":   {},
	"qwertyuiop":  {},
	"iloveyou":    {},
	"admin123":    {},
	"letmein123":  {},
	"welcome123":  {},
	"11111111":    {},
	"abc12345":    {},
	"football":    {},
	"baseball":    {},
	"sunshine":    {},
	"princess":    {},
}

// PasswordRules returns the rules applied to new passwords. The email is
// used to reject passwords too similar to it.
func PasswordRules(email string) []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Length(MinPasswordLength, MaxPasswordLength).
			Error("must be between 8 and 72 characters long"),
		validation.By(passwordStrength(email)),
	}
}

func passwordStrength(email string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}

		if isNumeric(s) {
			return errors.New("this password is entirely numeric")
		}

		if _, ok := commonPasswords[strings.ToLower(s)]; ok {
			return errors.New("this password is too common")
		}

		local, _, _ := strings.Cut(NormalizeEmail(email), "@")
		if len(local) >= 3 && strings.Contains(strings.ToLower(s), local) {
			return errors.New("the password is too similar to the email")
		}

		return nil
	}
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// NormalizePhone parses a phone number and returns it in E.164.
// Empty input returns an empty string.
func NormalizePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", nil
	}

	num, err := phonenumbers.Parse(phone, DefaultPhoneRegion)
	if err != nil {
		return "", errors.New("enter a valid phone number")
	}

	if !phonenumbers.IsValidNumber(num) {
		return "", errors.New("enter a valid phone number")
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func phoneRule(value any) error {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case *string:
		if v == nil {
			return nil
		}
		s = *v
	}
	_, err := NormalizePhone(s)
	return err
}

// ValidationErrorFromOzzo converts ozzo validation errors into a
// ValidationError keyed by field name.
func ValidationErrorFromOzzo(err error) error {
	if err == nil {
		return nil
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for field, ferr := range verrs {
			if ferr != nil {
				fields[field] = ferr.Error()
			}
		}
		return NewValidationError(fields)
	}

	return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to validate payload")
}

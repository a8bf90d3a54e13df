package valueobject

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/agrovia/agrovia-api/internal/domain/apperror"
)

const (
	// PasswordMinLength is the minimum accepted plaintext length.
	PasswordMinLength = 8
	// PasswordMaxLength matches the bcrypt input limit.
	PasswordMaxLength = 72

	passwordSpecials = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`
)

// bcryptPattern matches the modular crypt format produced by
// golang.org/x/crypto/bcrypt ($2a$, $2b$ or $2y$, two-digit cost).
var bcryptPattern = regexp.MustCompile(`^\$2[aby]\$\d{2}\$[./A-Za-z0-9]{53}$`)

// PasswordHash is a bcrypt-formatted hash. Plaintext passwords never pass
// through this type.
type PasswordHash string

// NewPasswordHash validates that the given string is a well-formed bcrypt
// hash. It does not verify the hash against anything.
func NewPasswordHash(hash string) (PasswordHash, error) {
	if !bcryptPattern.MatchString(hash) {
		return "", &apperror.ValidationError{Field: "password_hash", Reason: "must be a bcrypt hash"}
	}
	return PasswordHash(hash), nil
}

func (h PasswordHash) String() string { return string(h) }

// ValidatePlaintext checks a plaintext password against the complexity
// policy before hashing: length bounds, upper, lower, digit and special
// character. It is never applied to hashes.
func ValidatePlaintext(plain string) error {
	if len(plain) < PasswordMinLength {
		return &apperror.ValidationError{Field: "password", Reason: "must be at least 8 characters long"}
	}
	if len(plain) > PasswordMaxLength {
		return &apperror.ValidationError{Field: "password", Reason: "must be at most 72 characters long"}
	}
	var upper, lower, digit, special bool
	for _, r := range plain {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return &apperror.ValidationError{
			Field:  "password",
			Reason: "must contain uppercase, lowercase, number and special character",
		}
	}
	return nil
}

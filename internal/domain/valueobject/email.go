package valueobject

import (
	"regexp"
	"strings"

	"github.com/agrovia/agrovia-api/internal/domain/apperror"
)

// emailPattern is intentionally permissive; the authoritative uniqueness
// check lives in the credential store.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Email is a normalized (trimmed, lowercased) email address.
type Email string

// NewEmail validates and normalizes a raw email address.
func NewEmail(raw string) (Email, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return "", &apperror.ValidationError{Field: "email", Reason: "is required"}
	}
	if !emailPattern.MatchString(normalized) {
		return "", &apperror.ValidationError{Field: "email", Reason: "must be a valid email"}
	}
	return Email(normalized), nil
}

func (e Email) String() string { return string(e) }

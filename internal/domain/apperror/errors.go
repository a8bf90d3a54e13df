package apperror

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed input value (email, password, token
// structure).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// AuthenticationError is deliberately generic: it never reveals whether the
// email or the password was wrong, to avoid account enumeration.
type AuthenticationError struct{}

func (e *AuthenticationError) Error() string { return "invalid credentials" }

// AuthorizationError reports an inactive or deleted account.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	if e.Reason == "" {
		return "not authorized"
	}
	return "not authorized: " + e.Reason
}

// TokenError reports a token that failed verification. Expired distinguishes
// retry-worthy expiry from a malformed/forged/wrong-type token.
type TokenError struct {
	Expired bool
	Err     error
}

func (e *TokenError) Error() string {
	if e.Expired {
		return "token expired"
	}
	return "invalid token"
}

func (e *TokenError) Unwrap() error { return e.Err }

// ConflictError reports a uniqueness violation (duplicate email).
type ConflictError struct {
	Resource string
}

func (e *ConflictError) Error() string { return e.Resource + " already exists" }

// NotFoundError reports a missing record.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

// InfrastructureError wraps a cache/store/broker transport failure.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *InfrastructureError) Unwrap() error { return e.Err }

// IsTokenExpired reports whether err is a TokenError caused by expiry.
func IsTokenExpired(err error) bool {
	var te *TokenError
	return errors.As(err, &te) && te.Expired
}

// IsInfrastructure reports whether err is a transport failure.
func IsInfrastructure(err error) bool {
	var ie *InfrastructureError
	return errors.As(err, &ie)
}

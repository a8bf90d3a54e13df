package event

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is an immutable record of something that happened on the
// credential aggregate, queued at transition time and drained once per
// successful command.
type DomainEvent interface {
	EventID() string
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
	EventVersion() int
}

// Base carries the envelope fields shared by every domain event.
type Base struct {
	ID        string    `json:"event_id"`
	Aggregate string    `json:"aggregate_id"`
	At        time.Time `json:"occurred_at"`
	Version   int       `json:"version"`
}

func NewBase(aggregateID string) Base {
	return Base{
		ID:        uuid.NewString(),
		Aggregate: aggregateID,
		At:        time.Now().UTC(),
		Version:   1,
	}
}

func (b Base) EventID() string       { return b.ID }
func (b Base) AggregateID() string   { return b.Aggregate }
func (b Base) OccurredAt() time.Time { return b.At }
func (b Base) EventVersion() int     { return b.Version }

// UserRegistered is emitted when a credential record is created.
type UserRegistered struct {
	Base
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Source    string `json:"source"`
}

func (UserRegistered) EventName() string { return "UserRegistered" }

// UserLoggedIn is emitted on a successful credential check.
type UserLoggedIn struct {
	Base
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

func (UserLoggedIn) EventName() string { return "UserLoggedIn" }

// UserLoggedOut is emitted on logout; it changes no persisted field.
type UserLoggedOut struct {
	Base
	UserID       string `json:"user_id"`
	SessionID    string `json:"session_id,omitempty"`
	IPAddress    string `json:"ip_address,omitempty"`
	UserAgent    string `json:"user_agent,omitempty"`
	LogoutMethod string `json:"logout_method"`
	Reason       string `json:"reason,omitempty"`
}

func (UserLoggedOut) EventName() string { return "UserLoggedOut" }

// PasswordChanged is emitted when the stored hash is replaced.
type PasswordChanged struct {
	Base
	UserID              string `json:"user_id"`
	IPAddress           string `json:"ip_address,omitempty"`
	UserAgent           string `json:"user_agent,omitempty"`
	ChangeMethod        string `json:"change_method"`
	OldPasswordVerified bool   `json:"old_password_verified"`
	IsPasswordReset     bool   `json:"is_password_reset"`
}

func (PasswordChanged) EventName() string { return "PasswordChanged" }

// TokenRefreshed is emitted when a refresh token is exchanged for a new pair.
type TokenRefreshed struct {
	Base
	UserID              string    `json:"user_id"`
	PreviousTokenExpiry time.Time `json:"previous_token_expiry"`
	NewTokenExpiry      time.Time `json:"new_token_expiry"`
	RefreshTokenID      string    `json:"refresh_token_id,omitempty"`
	IsAutomatic         bool      `json:"is_automatic"`
	IPAddress           string    `json:"ip_address,omitempty"`
	UserAgent           string    `json:"user_agent,omitempty"`
}

func (TokenRefreshed) EventName() string { return "TokenRefreshed" }

package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/agrovia/agrovia-api/internal/domain/event"
	"github.com/agrovia/agrovia-api/internal/domain/valueobject"
)

// Credential is the aggregate root for the authentication domain.
// Transitions never mutate the receiver: each returns a new snapshot with the
// resulting domain event appended to its queue. The queue is drained exactly
// once via PullDomainEvents; there is no persistent outbox, so events pulled
// but never published are lost.
type Credential struct {
	ID           string
	UserID       string
	Email        valueobject.Email
	PasswordHash valueobject.PasswordHash
	Phone        string
	IsVerified   bool
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time

	events []event.DomainEvent
}

// NewCredential builds an unverified credential record, validating the email
// and the hash format. Plaintext password policy is enforced by the caller
// before hashing.
func NewCredential(userID, email, passwordHash, phone string) (Credential, error) {
	e, err := valueobject.NewEmail(email)
	if err != nil {
		return Credential{}, err
	}
	h, err := valueobject.NewPasswordHash(passwordHash)
	if err != nil {
		return Credential{}, err
	}
	now := time.Now().UTC()
	return Credential{
		ID:           uuid.NewString(),
		UserID:       userID,
		Email:        e,
		PasswordHash: h,
		Phone:        phone,
		IsVerified:   false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// RegistrationMeta carries request context for the UserRegistered event.
type RegistrationMeta struct {
	Name      string
	IPAddress string
	UserAgent string
	Source    string
}

// LoginMeta carries request context for the UserLoggedIn event.
type LoginMeta struct {
	IPAddress string
	UserAgent string
	SessionID string
}

// LogoutMeta carries request context for the UserLoggedOut event.
type LogoutMeta struct {
	SessionID    string
	IPAddress    string
	UserAgent    string
	LogoutMethod string
	Reason       string
}

// PasswordChangeMeta carries request context for the PasswordChanged event.
type PasswordChangeMeta struct {
	IPAddress           string
	UserAgent           string
	ChangeMethod        string
	OldPasswordVerified bool
	IsPasswordReset     bool
}

// TokenRefreshMeta carries request context for the TokenRefreshed event.
type TokenRefreshMeta struct {
	PreviousTokenExpiry time.Time
	NewTokenExpiry      time.Time
	RefreshTokenID      string
	IsAutomatic         bool
	IPAddress           string
	UserAgent           string
}

// RecordRegistration queues the UserRegistered event for a freshly created
// credential.
func (c Credential) RecordRegistration(meta RegistrationMeta) Credential {
	next := c
	next.events = appendEvent(c.events, event.UserRegistered{
		Base:      event.NewBase(c.ID),
		UserID:    c.UserID,
		Email:     c.Email.String(),
		Name:      meta.Name,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Source:    meta.Source,
	})
	return next
}

// RecordLogin returns a snapshot with LastLogin and UpdatedAt set to now and
// the UserLoggedIn event queued.
func (c Credential) RecordLogin(meta LoginMeta) Credential {
	now := time.Now().UTC()
	next := c
	next.LastLogin = &now
	next.UpdatedAt = now
	next.events = appendEvent(c.events, event.UserLoggedIn{
		Base:      event.NewBase(c.ID),
		UserID:    c.UserID,
		Email:     c.Email.String(),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		SessionID: meta.SessionID,
	})
	return next
}

// ChangePassword returns a snapshot carrying the new hash with the
// PasswordChanged event queued.
func (c Credential) ChangePassword(newHash valueobject.PasswordHash, meta PasswordChangeMeta) Credential {
	next := c
	next.PasswordHash = newHash
	next.UpdatedAt = time.Now().UTC()
	next.events = appendEvent(c.events, event.PasswordChanged{
		Base:                event.NewBase(c.ID),
		UserID:              c.UserID,
		IPAddress:           meta.IPAddress,
		UserAgent:           meta.UserAgent,
		ChangeMethod:        meta.ChangeMethod,
		OldPasswordVerified: meta.OldPasswordVerified,
		IsPasswordReset:     meta.IsPasswordReset,
	})
	return next
}

// RecordLogout queues the UserLoggedOut event; no persisted field changes.
func (c Credential) RecordLogout(meta LogoutMeta) Credential {
	next := c
	next.events = appendEvent(c.events, event.UserLoggedOut{
		Base:         event.NewBase(c.ID),
		UserID:       c.UserID,
		SessionID:    meta.SessionID,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		LogoutMethod: meta.LogoutMethod,
		Reason:       meta.Reason,
	})
	return next
}

// RecordTokenRefresh queues the TokenRefreshed event; no persisted field
// changes.
func (c Credential) RecordTokenRefresh(meta TokenRefreshMeta) Credential {
	next := c
	next.events = appendEvent(c.events, event.TokenRefreshed{
		Base:                event.NewBase(c.ID),
		UserID:              c.UserID,
		PreviousTokenExpiry: meta.PreviousTokenExpiry,
		NewTokenExpiry:      meta.NewTokenExpiry,
		RefreshTokenID:      meta.RefreshTokenID,
		IsAutomatic:         meta.IsAutomatic,
		IPAddress:           meta.IPAddress,
		UserAgent:           meta.UserAgent,
	})
	return next
}

// PullDomainEvents returns the queued events in emission order and clears the
// queue. A second call immediately after returns an empty slice.
func (c *Credential) PullDomainEvents() []event.DomainEvent {
	evs := c.events
	c.events = nil
	return evs
}

// appendEvent copies the queue so sibling snapshots never share backing
// storage.
func appendEvent(evs []event.DomainEvent, ev event.DomainEvent) []event.DomainEvent {
	out := make([]event.DomainEvent, 0, len(evs)+1)
	out = append(out, evs...)
	return append(out, ev)
}

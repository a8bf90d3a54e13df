package application

import (
	"context"
	"time"

	"github.com/agrovia/agrovia-api/internal/domain/entity"
	"github.com/agrovia/agrovia-api/internal/domain/event"
	"github.com/agrovia/agrovia-api/internal/domain/valueobject"
	"github.com/agrovia/agrovia-api/pkg/helpers"
)

// AuthCache is the multi-index cache-aside port. Satisfied by
// cache.AuthCache.
type AuthCache interface {
	CacheAuth(ctx context.Context, c *entity.Credential, ttl time.Duration) error
	GetByUserID(ctx context.Context, userID string) (*entity.Credential, error)
	GetByEmail(ctx context.Context, email valueobject.Email) (*entity.Credential, error)
	DeleteAuth(ctx context.Context, userID string, email valueobject.Email) error
	SetSession(ctx context.Context, sessionID string, payload any, ttl time.Duration) error
	GetSession(ctx context.Context, sessionID string, dest any) (bool, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// EventDispatcher is the dual-channel publish port. Satisfied by
// messaging.Dispatcher.
type EventDispatcher interface {
	PublishAll(ctx context.Context, evs []event.DomainEvent) error
}

// TokenIssuer issues and verifies signed token pairs. Satisfied by
// helpers.JWTManager.
type TokenIssuer interface {
	GenerateTokenPair(userID, email, sessionID string) (helpers.TokenPair, error)
	Verify(token string, expected helpers.TokenType) (*helpers.AuthClaims, error)
	Refresh(refreshToken string) (helpers.TokenPair, *helpers.AuthClaims, error)
	ExtractUnverifiedSubject(token string) string
}

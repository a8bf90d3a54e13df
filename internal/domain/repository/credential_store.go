package repository

import (
	"context"

	"github.com/agrovia/agrovia-api/internal/domain/entity"
	"github.com/agrovia/agrovia-api/internal/domain/valueobject"
)

// CredentialStore is the system of record for credential snapshots. It is
// always authoritative over the cache.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email valueobject.Email) (*entity.Credential, error)
	FindByUserID(ctx context.Context, userID string) (*entity.Credential, error)
	Save(ctx context.Context, c *entity.Credential) error
	Update(ctx context.Context, c *entity.Credential) error
	EmailExists(ctx context.Context, email valueobject.Email) (bool, error)
}

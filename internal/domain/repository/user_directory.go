package repository

import (
	"context"

	"github.com/agrovia/agrovia-api/internal/domain/entity"
)

// UserDirectory exposes the externally-owned user aggregate. Commands must
// treat an inactive or deleted directory user as an authorization failure
// even when the credential record itself is valid.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*entity.User, error)
	Create(ctx context.Context, u *entity.User) error
}

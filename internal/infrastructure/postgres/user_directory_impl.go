package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agrovia/agrovia-api/internal/domain/apperror"
	"github.com/agrovia/agrovia-api/internal/domain/entity"
	"github.com/agrovia/agrovia-api/internal/domain/repository"
)

// UserDirectory reads and creates records in the externally-owned users
// table.
type UserDirectory struct {
	pool *pgxpool.Pool
}

func NewUserDirectory(pool *pgxpool.Pool) *UserDirectory {
	return &UserDirectory{pool: pool}
}

func (d *UserDirectory) FindByID(ctx context.Context, id string) (*entity.User, error) {
	u := &entity.User{}
	row := d.pool.QueryRow(ctx, `
		SELECT id, email, name, status, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &apperror.NotFoundError{Resource: "user"}
		}
		return nil, err
	}
	return u, nil
}

func (d *UserDirectory) Create(ctx context.Context, u *entity.User) error {
	row := d.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, name, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, u.ID, u.Email, u.Name, u.Status)
	return row.Scan(&u.CreatedAt, &u.UpdatedAt)
}

var _ repository.UserDirectory = (*UserDirectory)(nil)

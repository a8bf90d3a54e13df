package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agrovia/agrovia-api/internal/domain/apperror"
	"github.com/agrovia/agrovia-api/internal/domain/entity"
	"github.com/agrovia/agrovia-api/internal/domain/repository"
	"github.com/agrovia/agrovia-api/internal/domain/valueobject"
)

const uniqueViolation = "23505"

// CredentialStore persists credential snapshots in Postgres. Snapshots are
// written last-write-wins; there is no optimistic concurrency token.
type CredentialStore struct {
	pool *pgxpool.Pool
}

func NewCredentialStore(pool *pgxpool.Pool) *CredentialStore {
	return &CredentialStore{pool: pool}
}

const credentialColumns = `id, user_id, email, password_hash, phone, is_verified, last_login, created_at, updated_at, deleted_at`

func scanCredential(row pgx.Row) (*entity.Credential, error) {
	c := &entity.Credential{}
	var email, hash string
	if err := row.Scan(&c.ID, &c.UserID, &email, &hash, &c.Phone, &c.IsVerified,
		&c.LastLogin, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &apperror.NotFoundError{Resource: "credential"}
		}
		return nil, err
	}
	c.Email = valueobject.Email(email)
	c.PasswordHash = valueobject.PasswordHash(hash)
	return c, nil
}

func (s *CredentialStore) FindByEmail(ctx context.Context, email valueobject.Email) (*entity.Credential, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+credentialColumns+`
		FROM credentials
		WHERE email = $1 AND deleted_at IS NULL
	`, email.String())
	return scanCredential(row)
}

func (s *CredentialStore) FindByUserID(ctx context.Context, userID string) (*entity.Credential, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+credentialColumns+`
		FROM credentials
		WHERE user_id = $1 AND deleted_at IS NULL
	`, userID)
	return scanCredential(row)
}

func (s *CredentialStore) Save(ctx context.Context, c *entity.Credential) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO credentials (id, user_id, email, password_hash, phone, is_verified, last_login, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, c.ID, c.UserID, c.Email.String(), c.PasswordHash.String(), c.Phone, c.IsVerified,
		c.LastLogin, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return &apperror.ConflictError{Resource: "email"}
		}
		return err
	}
	return nil
}

func (s *CredentialStore) Update(ctx context.Context, c *entity.Credential) error {
	res, err := s.pool.Exec(ctx, `
		UPDATE credentials
		SET email = $1, password_hash = $2, phone = $3, is_verified = $4,
		    last_login = $5, updated_at = $6
		WHERE id = $7 AND deleted_at IS NULL
	`, c.Email.String(), c.PasswordHash.String(), c.Phone, c.IsVerified,
		c.LastLogin, c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return &apperror.NotFoundError{Resource: "credential"}
	}
	return nil
}

func (s *CredentialStore) EmailExists(ctx context.Context, email valueobject.Email) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM credentials WHERE email = $1 AND deleted_at IS NULL)
	`, email.String()).Scan(&exists)
	return exists, err
}

var _ repository.CredentialStore = (*CredentialStore)(nil)

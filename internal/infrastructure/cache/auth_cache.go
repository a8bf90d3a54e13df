package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/agrovia/agrovia-api/internal/domain/entity"
	"github.com/agrovia/agrovia-api/internal/domain/valueobject"
)

// Key grammar: auth:{user|email|session}:<key>
const (
	userKeyPrefix    = "auth:user:"
	emailKeyPrefix   = "auth:email:"
	sessionKeyPrefix = "auth:session:"

	// DefaultAuthTTL applies to the two credential indices.
	DefaultAuthTTL = time.Hour
	// DefaultSessionTTL applies to session payloads.
	DefaultSessionTTL = 15 * time.Minute
)

// KV is the minimal key-value surface the cache needs. Production uses the
// go-redis adapter in redis_kv.go.
type KV interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Del(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// AuthCache accelerates credential reads by user id and by email, and holds
// short-lived session payloads. It is never authoritative: on miss or
// corruption the caller falls back to the credential store. Transport errors
// are not masked here; callers decide whether to fail open.
type AuthCache struct {
	kv     KV
	logger *logrus.Logger
}

func NewAuthCache(kv KV, logger *logrus.Logger) *AuthCache {
	return &AuthCache{kv: kv, logger: logger}
}

// credentialPayload is the serialized snapshot stored under both indices.
type credentialPayload struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"password_hash"`
	Phone        string     `json:"phone,omitempty"`
	IsVerified   bool       `json:"is_verified"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

func toPayload(c *entity.Credential) credentialPayload {
	return credentialPayload{
		ID:           c.ID,
		UserID:       c.UserID,
		Email:        c.Email.String(),
		PasswordHash: c.PasswordHash.String(),
		Phone:        c.Phone,
		IsVerified:   c.IsVerified,
		LastLogin:    c.LastLogin,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		DeletedAt:    c.DeletedAt,
	}
}

func fromPayload(p credentialPayload) *entity.Credential {
	return &entity.Credential{
		ID:           p.ID,
		UserID:       p.UserID,
		Email:        valueobject.Email(p.Email),
		PasswordHash: valueobject.PasswordHash(p.PasswordHash),
		Phone:        p.Phone,
		IsVerified:   p.IsVerified,
		LastLogin:    p.LastLogin,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
		DeletedAt:    p.DeletedAt,
	}
}

// CacheAuth writes the serialized record under both the user and the email
// index with the same TTL. The two SETs are independent: a crash between them
// leaves one index stale until TTL expiry or the next read-repair.
func (a *AuthCache) CacheAuth(ctx context.Context, c *entity.Credential, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultAuthTTL
	}
	b, err := json.Marshal(toPayload(c))
	if err != nil {
		return err
	}
	if err := a.kv.Set(ctx, userKeyPrefix+c.UserID, b, ttl); err != nil {
		return err
	}
	return a.kv.Set(ctx, emailKeyPrefix+c.Email.String(), b, ttl)
}

// GetByUserID returns the cached record or nil on miss. A corrupted entry is
// deleted and treated as a miss.
func (a *AuthCache) GetByUserID(ctx context.Context, userID string) (*entity.Credential, error) {
	return a.getCredential(ctx, userKeyPrefix+userID)
}

// GetByEmail returns the cached record or nil on miss, with the same
// read-repair behavior as GetByUserID.
func (a *AuthCache) GetByEmail(ctx context.Context, email valueobject.Email) (*entity.Credential, error) {
	return a.getCredential(ctx, emailKeyPrefix+email.String())
}

func (a *AuthCache) getCredential(ctx context.Context, key string) (*entity.Credential, error) {
	b, found, err := a.kv.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	var p credentialPayload
	if err := json.Unmarshal(b, &p); err != nil {
		// read-repair: drop the corrupted entry and report a miss
		if delErr := a.kv.Del(ctx, key); delErr != nil && a.logger != nil {
			a.logger.WithError(delErr).WithField("key", key).Warn("failed to drop corrupted cache entry")
		}
		return nil, nil
	}
	return fromPayload(p), nil
}

// DeleteAuth removes both credential indices together. Session entries are
// untouched; they expire on their own TTL.
func (a *AuthCache) DeleteAuth(ctx context.Context, userID string, email valueobject.Email) error {
	return a.kv.Del(ctx, userKeyPrefix+userID, emailKeyPrefix+email.String())
}

// SetSession stores an arbitrary JSON payload under auth:session:<id>.
func (a *AuthCache) SetSession(ctx context.Context, sessionID string, payload any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return a.kv.Set(ctx, sessionKeyPrefix+sessionID, b, ttl)
}

// GetSession unmarshals the session payload into dest, reporting whether the
// session exists. Corrupted payloads are dropped and treated as a miss.
func (a *AuthCache) GetSession(ctx context.Context, sessionID string, dest any) (bool, error) {
	key := sessionKeyPrefix + sessionID
	b, found, err := a.kv.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(b, dest); err != nil {
		if delErr := a.kv.Del(ctx, key); delErr != nil && a.logger != nil {
			a.logger.WithError(delErr).WithField("key", key).Warn("failed to drop corrupted session entry")
		}
		return false, nil
	}
	return true, nil
}

func (a *AuthCache) DeleteSession(ctx context.Context, sessionID string) error {
	return a.kv.Del(ctx, sessionKeyPrefix+sessionID)
}

// GetKeys lists keys matching the given pattern. Administrative use only.
func (a *AuthCache) GetKeys(ctx context.Context, pattern string) ([]string, error) {
	return a.kv.Keys(ctx, pattern)
}

// Expire overrides the TTL of a single key.
func (a *AuthCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return a.kv.Expire(ctx, key, ttl)
}

// Clear removes all three auth namespaces.
func (a *AuthCache) Clear(ctx context.Context) error {
	keys, err := a.kv.Keys(ctx, "auth:*")
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return a.kv.Del(ctx, keys...)
}

package helpers

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/agrovia/agrovia-api/internal/domain/apperror"
)

// TokenType tags a token as access or refresh. A token only verifies in the
// context matching its type claim.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// AuthClaims is the claim set carried by every issued token.
type AuthClaims struct {
	Email     string `json:"email,omitempty"`
	TokenType string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	jwt.RegisteredClaims
}

// TokenPair bundles a short-lived access token with a long-lived refresh
// token. The two are signed with distinct secrets so an access-secret
// compromise does not grant refresh capability.
type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

// JWTManager issues and verifies signed token pairs. It holds no persistent
// state.
type JWTManager struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

var defaultManager *JWTManager

func NewJWTManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *JWTManager {
	m := &JWTManager{
		AccessSecret:  []byte(accessSecret),
		RefreshSecret: []byte(refreshSecret),
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
	}
	defaultManager = m
	return m
}

// DefaultJWT returns the last constructed JWTManager (used for auto-wiring routes)
func DefaultJWT() *JWTManager { return defaultManager }

func (m *JWTManager) GenerateAccessToken(userID, email, sessionID string) (string, time.Time, error) {
	return m.generate(userID, email, sessionID, TokenTypeAccess)
}

func (m *JWTManager) GenerateRefreshToken(userID, email, sessionID string) (string, time.Time, error) {
	return m.generate(userID, email, sessionID, TokenTypeRefresh)
}

// GenerateTokenPair issues an access/refresh pair sharing sub, email and
// session id.
func (m *JWTManager) GenerateTokenPair(userID, email, sessionID string) (TokenPair, error) {
	access, aexp, err := m.GenerateAccessToken(userID, email, sessionID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, rexp, err := m.GenerateRefreshToken(userID, email, sessionID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:        access,
		AccessTokenExpiry:  aexp,
		RefreshToken:       refresh,
		RefreshTokenExpiry: rexp,
	}, nil
}

func (m *JWTManager) generate(userID, email, sessionID string, typ TokenType) (string, time.Time, error) {
	ttl, secret := m.AccessTTL, m.AccessSecret
	if typ == TokenTypeRefresh {
		ttl, secret = m.RefreshTTL, m.RefreshSecret
	}
	now := time.Now()
	exp := now.Add(ttl)
	claims := &AuthClaims{
		Email:     email,
		TokenType: string(typ),
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(secret)
	return s, exp, err
}

// Verify checks signature, expiry and that the type claim matches the
// verification context. Any mismatch fails as apperror.TokenError; expiry is
// distinguishable via the Expired flag.
func (m *JWTManager) Verify(tokenStr string, expected TokenType) (*AuthClaims, error) {
	secret := m.AccessSecret
	if expected == TokenTypeRefresh {
		secret = m.RefreshSecret
	}
	claims := &AuthClaims{}
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &apperror.TokenError{Expired: true, Err: err}
		}
		return nil, &apperror.TokenError{Err: err}
	}
	if !tkn.Valid {
		return nil, &apperror.TokenError{Err: errors.New("invalid token")}
	}
	if claims.TokenType != string(expected) {
		return nil, &apperror.TokenError{Err: errors.New("unexpected token type")}
	}
	return claims, nil
}

// Refresh verifies a refresh token and issues a brand-new pair carrying the
// same subject, email and session id. The old refresh token is not rotated or
// invalidated; it stays valid until its own expiry.
func (m *JWTManager) Refresh(refreshToken string) (TokenPair, *AuthClaims, error) {
	claims, err := m.Verify(refreshToken, TokenTypeRefresh)
	if err != nil {
		return TokenPair{}, nil, err
	}
	pair, err := m.GenerateTokenPair(claims.Subject, claims.Email, claims.SessionID)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, claims, nil
}

// ExtractUnverifiedSubject decodes the subject claim without checking the
// signature or expiry. Never use the result for authorization decisions; it
// exists for best-effort lookups and logging only.
func (m *JWTManager) ExtractUnverifiedSubject(tokenStr string) string {
	claims := &AuthClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenStr, claims); err != nil {
		return ""
	}
	return claims.Subject
}

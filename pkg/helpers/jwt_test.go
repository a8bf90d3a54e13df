package helpers_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrovia/agrovia-api/internal/domain/apperror"
	"github.com/agrovia/agrovia-api/pkg/helpers"
)

func newTestManager() *helpers.JWTManager {
	return helpers.NewJWTManager("access-secret", "refresh-secret", 15*time.Minute, 24*time.Hour)
}

func TestGenerateTokenPair_RoundTrip(t *testing.T) {
	m := newTestManager()

	pair, err := m.GenerateTokenPair("user-1", "farmer@agrovia.io", "sess-1")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.True(t, pair.RefreshTokenExpiry.After(pair.AccessTokenExpiry))

	access, err := m.Verify(pair.AccessToken, helpers.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-1", access.Subject)
	assert.Equal(t, "farmer@agrovia.io", access.Email)
	assert.Equal(t, "sess-1", access.SessionID)
	assert.Equal(t, string(helpers.TokenTypeAccess), access.TokenType)
	assert.NotEmpty(t, access.ID)

	refresh, err := m.Verify(pair.RefreshToken, helpers.TokenTypeRefresh)
	require.NoError(t, err)
	assert.Equal(t, "user-1", refresh.Subject)
	assert.Equal(t, string(helpers.TokenTypeRefresh), refresh.TokenType)
}

func TestVerify_RejectsWrongType(t *testing.T) {
	m := newTestManager()
	pair, err := m.GenerateTokenPair("user-1", "farmer@agrovia.io", "sess-1")
	require.NoError(t, err)

	// An access token must not pass refresh verification; the secrets differ
	// so the signature check already fails.
	_, err = m.Verify(pair.AccessToken, helpers.TokenTypeRefresh)
	var terr *apperror.TokenError
	require.ErrorAs(t, err, &terr)
	assert.False(t, terr.Expired)

	_, err = m.Verify(pair.RefreshToken, helpers.TokenTypeAccess)
	require.ErrorAs(t, err, &terr)
}

func TestVerify_RejectsForgedToken(t *testing.T) {
	m := newTestManager()
	other := helpers.NewJWTManager("other-access", "other-refresh", time.Minute, time.Hour)

	pair, err := other.GenerateTokenPair("user-1", "", "")
	require.NoError(t, err)

	_, err = m.Verify(pair.AccessToken, helpers.TokenTypeAccess)
	var terr *apperror.TokenError
	require.ErrorAs(t, err, &terr)
	assert.False(t, terr.Expired)

	_, err = m.Verify("not.a.token", helpers.TokenTypeAccess)
	require.ErrorAs(t, err, &terr)
}

func TestVerify_DistinguishesExpiry(t *testing.T) {
	expired := helpers.NewJWTManager("access-secret", "refresh-secret", -time.Minute, -time.Minute)
	pair, err := expired.GenerateTokenPair("user-1", "farmer@agrovia.io", "sess-1")
	require.NoError(t, err)

	_, err = expired.Verify(pair.AccessToken, helpers.TokenTypeAccess)
	var terr *apperror.TokenError
	require.ErrorAs(t, err, &terr)
	assert.True(t, terr.Expired)
	assert.True(t, apperror.IsTokenExpired(err))
}

func TestRefresh_PreservesIdentity(t *testing.T) {
	m := newTestManager()
	pair, err := m.GenerateTokenPair("user-1", "farmer@agrovia.io", "sess-1")
	require.NoError(t, err)

	newPair, claims, err := m.Refresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "sess-1", claims.SessionID)

	access, err := m.Verify(newPair.AccessToken, helpers.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-1", access.Subject)
	assert.Equal(t, "sess-1", access.SessionID)

	// The original refresh token is not rotated; it still verifies.
	_, err = m.Verify(pair.RefreshToken, helpers.TokenTypeRefresh)
	assert.NoError(t, err)
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	m := newTestManager()
	pair, err := m.GenerateTokenPair("user-1", "", "")
	require.NoError(t, err)

	_, _, err = m.Refresh(pair.AccessToken)
	var terr *apperror.TokenError
	require.ErrorAs(t, err, &terr)
}

func TestExtractUnverifiedSubject(t *testing.T) {
	expired := helpers.NewJWTManager("access-secret", "refresh-secret", -time.Minute, -time.Minute)
	pair, err := expired.GenerateTokenPair("user-1", "", "")
	require.NoError(t, err)

	// Works even on an expired token; returns empty on garbage.
	assert.Equal(t, "user-1", expired.ExtractUnverifiedSubject(pair.AccessToken))
	assert.Empty(t, expired.ExtractUnverifiedSubject("garbage"))
}

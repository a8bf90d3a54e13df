package helpers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrovia/agrovia-api/pkg/helpers"
)

func TestHashPassword_Verifies(t *testing.T) {
	hash, err := helpers.HashPassword("Sup3r$ecret")
	require.NoError(t, err)
	assert.NotEqual(t, "Sup3r$ecret", hash)

	assert.True(t, helpers.CompareHashAndPassword(hash, "Sup3r$ecret"))
	assert.False(t, helpers.CompareHashAndPassword(hash, "wrong-password"))
	assert.False(t, helpers.CompareHashAndPassword("not-a-hash", "Sup3r$ecret"))
}

package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	secret := []byte("test_secret")
	token, err := GenerateJWT(secret, "admin-123")
	require.NoError(t, err)

	claims, err := ValidateJWT(secret, token)
	require.NoError(t, err)
	assert.Equal(t, "admin-123", claims.AdminID)

	_, err = ValidateJWT([]byte("other_secret"), token)
	assert.Error(t, err, "wrong secret must not validate")

	_, err = ValidateJWT(secret, "not.a.token")
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)

	assert.True(t, CheckPassword(hash, "hunter22"))
	assert.False(t, CheckPassword(hash, "hunter2"))
}

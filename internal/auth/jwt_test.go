package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configure(t *testing.T) {
	t.Helper()
	require.NoError(t, Configure(Settings{Secret: "0123456789abcdef0123456789abcdef"}))
}

func TestConfigureRejectsShortSecret(t *testing.T) {
	assert.Error(t, Configure(Settings{Secret: "too-short"}))
}

func TestAccessTokenRoundTrip(t *testing.T) {
	configure(t)
	tok, err := GenerateToken(7, "alice", "Admin")
	require.NoError(t, err)

	claims, err := ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, 7, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "Admin", claims.Role)

	_, err = ValidateRefreshToken(tok)
	assert.Error(t, err)
}

func TestRefreshTokenIsNotAnAccessToken(t *testing.T) {
	configure(t)
	tok, err := GenerateRefreshToken(7, "alice", "User", 0)
	require.NoError(t, err)

	_, err = ValidateToken(tok)
	assert.Error(t, err)

	claims, err := ValidateRefreshToken(tok)
	require.NoError(t, err)
	assert.Equal(t, TokenRefresh, claims.TokenType)
}

func TestRefreshDays(t *testing.T) {
	configure(t)
	assert.Equal(t, 7, RefreshDays(false))
	assert.Equal(t, 30, RefreshDays(true))
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NoError(t, CheckPassword(hash, "s3cret"))
	assert.Error(t, CheckPassword(hash, "wrong"))
}

package middlewares

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTokenRoundTrip(t *testing.T) {
	// existingUserID != 0 skips the database entirely.
	tokenString, userID, err := GenerateToken(nil, "alice", "free", 7)
	require.NoError(t, err)
	require.Equal(t, uint(7), userID)
	require.NotEmpty(t, tokenString)

	claims, err := ParseClaims(tokenString)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "alice", claims.Nickname)
	assert.Equal(t, "free", claims.SubscriptionStatus)
	assert.Greater(t, claims.ExpiresAt, int64(0))
}

func TestParseClaimsRejectsGarbage(t *testing.T) {
	_, err := ParseClaims("not-a-jwt")
	require.Error(t, err)

	_, err = ParseClaims("")
	require.Error(t, err)
}

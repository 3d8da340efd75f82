package jwt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_GenerateAccessToken_RoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret", "1h")

	token, expiresAt, err := svc.GenerateAccessToken("user-1", "hr@example.com", true)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Positive(t, expiresAt)

	decoded, err := svc.JWTAuth().Decode(token)
	require.NoError(t, err)
	claims, err := decoded.AsMap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims["user_id"])
	assert.Equal(t, "access", claims["type"])
	assert.Equal(t, true, claims["is_admin"])
}

func TestJWTService_GenerateAccessToken_BadDuration(t *testing.T) {
	svc := NewJWTService("test-secret", "forever")

	_, _, err := svc.GenerateAccessToken("user-1", "hr@example.com", false)
	assert.Error(t, err)
}

package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager(t *testing.T) {
	m := NewJWTManager("test-secret", time.Minute, time.Hour)

	pair, err := m.GenerateTokens("u1", "ann@example.com", "admin", "sess-1")
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	t.Run("access token claims", func(t *testing.T) {
		claims, err := m.ValidateKind(pair.AccessToken, KindAccess)
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.UserID)
		assert.Equal(t, "sess-1", claims.SessionID)
		assert.Equal(t, "admin", claims.Role)
	})

	t.Run("kinds are not interchangeable", func(t *testing.T) {
		_, err := m.ValidateKind(pair.RefreshToken, KindAccess)
		assert.ErrorIs(t, err, ErrWrongTokenKind)
	})

	t.Run("other secret is rejected", func(t *testing.T) {
		other := NewJWTManager("another-secret", time.Minute, time.Hour)
		_, err := other.ValidateToken(pair.AccessToken)
		assert.Error(t, err)
	})

	t.Run("refresh rotates and revokes", func(t *testing.T) {
		next, claims, err := m.RefreshTokens(pair.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, "sess-1", claims.SessionID)
		assert.NotEqual(t, pair.AccessToken, next.AccessToken)

		_, _, err = m.RefreshTokens(pair.RefreshToken)
		assert.ErrorIs(t, err, ErrTokenBlacklisted)
	})
}

func TestJWTExpiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewJWTManager("test-secret", time.Minute, time.Hour)
	m.now = func() time.Time { return now }

	pair, err := m.GenerateTokens("u1", "ann@example.com", "client", "s")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = m.ValidateToken(pair.AccessToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	_, err = m.ValidateKind(pair.RefreshToken, KindRefresh)
	assert.NoError(t, err)
}

func TestTokenBlacklist(t *testing.T) {
	now := time.Now()
	b := NewTokenBlacklist()
	b.now = func() time.Time { return now }

	require.NoError(t, b.Add("t1", time.Minute))
	require.NoError(t, b.Add("t2", 0))
	assert.True(t, b.IsBlacklisted("t1"))
	assert.False(t, b.IsBlacklisted("t2"))

	now = now.Add(2 * time.Minute)
	assert.False(t, b.IsBlacklisted("t1"))
	assert.Equal(t, 0, b.Len())
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("41421014", 4)
	require.NoError(t, err)
	assert.NotEqual(t, "41421014", hash)
	assert.True(t, CheckPassword(hash, "41421014"))
	assert.False(t, CheckPassword(hash, "41421015"))
	assert.False(t, CheckPassword("", "41421014"))
}

// FILE: synctrack/src/internal/auth/auth_test.go
package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("not-the-servers-key"))
	require.NoError(t, err)
	return token
}

func TestSelect(t *testing.T) {
	t.Run("UsernameWins", func(t *testing.T) {
		c := Select("ann@example.com", "secret", "key-1")
		assert.Equal(t, ProviderUserPass, c.Provider)
		assert.Equal(t, map[string]any{"username": "ann@example.com", "password": "secret"}, c.Payload())
	})

	t.Run("APIKeyWhenNoUsername", func(t *testing.T) {
		c := Select("", "", "key-1")
		assert.Equal(t, ProviderAPIKey, c.Provider)
		assert.Equal(t, map[string]any{"key": "key-1"}, c.Payload())
	})

	t.Run("AnonymousFallback", func(t *testing.T) {
		c := Select("", "", "")
		assert.Equal(t, ProviderAnonymous, c.Provider)
		assert.Empty(t, c.Payload())
		assert.NoError(t, c.Validate())
	})
}

func TestCredential_Validate(t *testing.T) {
	assert.Error(t, EmailPassword("", "pw").Validate())
	assert.Error(t, APIKey("").Validate())
	assert.Error(t, Credential{Provider: "oauth2-google"}.Validate())
	assert.NoError(t, APIKey("k").Validate())
}

func TestCredential_StringHidesSecrets(t *testing.T) {
	assert.NotContains(t, EmailPassword("ann", "hunter2").String(), "hunter2")
	assert.NotContains(t, APIKey("sk-123").String(), "sk-123")
}

func TestTokenExpired(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("FutureExpiry", func(t *testing.T) {
		token := signedToken(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()})
		assert.False(t, TokenExpired(token, now))

		exp, err := TokenExpiry(token)
		require.NoError(t, err)
		assert.Equal(t, now.Add(time.Hour).Unix(), exp.Unix())
	})

	t.Run("PastExpiry", func(t *testing.T) {
		token := signedToken(t, jwt.MapClaims{"exp": now.Add(-time.Minute).Unix()})
		assert.True(t, TokenExpired(token, now))
	})

	t.Run("ExpiryEqualsNow", func(t *testing.T) {
		token := signedToken(t, jwt.MapClaims{"exp": now.Unix()})
		assert.True(t, TokenExpired(token, now))
	})

	t.Run("MissingExpiry", func(t *testing.T) {
		token := signedToken(t, jwt.MapClaims{"sub": "user-1"})
		_, err := TokenExpiry(token)
		assert.ErrorIs(t, err, ErrNoExpiry)
		assert.True(t, TokenExpired(token, now))
	})

	t.Run("Malformed", func(t *testing.T) {
		assert.True(t, TokenExpired("not.a.token", now))
		assert.True(t, TokenExpired("", now))
	})
}

func TestUser_Usable(t *testing.T) {
	now := time.Now()
	fresh := signedToken(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()})
	stale := signedToken(t, jwt.MapClaims{"exp": now.Add(-time.Hour).Unix()})

	var nilUser *User
	assert.False(t, nilUser.Usable(now))
	assert.False(t, (&User{RefreshToken: fresh}).Usable(now))
	assert.False(t, (&User{LoggedIn: true, RefreshToken: stale}).Usable(now))
	assert.True(t, (&User{LoggedIn: true, RefreshToken: fresh}).Usable(now))
}

func TestCache(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "users")
	cache := NewCache(dir)

	user := &User{
		ID:           "user-1",
		AppID:        "app-1",
		Provider:     ProviderAPIKey,
		AccessToken:  "access",
		RefreshToken: "refresh",
		LoggedIn:     true,
	}

	t.Run("MissingIsNil", func(t *testing.T) {
		loaded, err := cache.Load("app-1")
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		require.NoError(t, cache.Save("app-1", user))

		loaded, err := cache.Load("app-1")
		require.NoError(t, err)
		assert.Equal(t, user, loaded)

		raw, err := os.ReadFile(filepath.Join(dir, "app-1"+userFileExt))
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "refresh", "tokens must not be stored in clear")
	})

	t.Run("BoundToAppID", func(t *testing.T) {
		raw, err := os.ReadFile(filepath.Join(dir, "app-1"+userFileExt))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "app-2"+userFileExt), raw, 0600))

		_, err = cache.Load("app-2")
		assert.Error(t, err)
	})

	t.Run("Remove", func(t *testing.T) {
		require.NoError(t, cache.Remove("app-1"))
		loaded, err := cache.Load("app-1")
		require.NoError(t, err)
		assert.Nil(t, loaded)
		assert.NoError(t, cache.Remove("app-1"))
	})

	t.Run("SanitizedFileName", func(t *testing.T) {
		require.NoError(t, cache.Save("../escape", user))
		_, err := os.Stat(filepath.Join(dir, ".._escape"+userFileExt))
		assert.NoError(t, err)
	})
}

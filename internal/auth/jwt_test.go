package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/taskmanager-auth/internal/config"
)

const (
	testAccessSecret  = "test-access-secret"
	testRefreshSecret = "test-refresh-secret"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		AccessTokenSecret:    testAccessSecret,
		RefreshTokenSecret:   testRefreshSecret,
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: 24 * time.Hour,
	}
}

func TestTokenIssuer_AccessToken(t *testing.T) {
	issuer := NewTokenIssuer(testAuthConfig())

	token, err := issuer.IssueAccessToken("user-1", "alice@example.com", "alice")
	require.NoError(t, err)

	claims, err := issuer.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "alice", claims.Username)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}

func TestTokenIssuer_RefreshTokenCarriesOnlyID(t *testing.T) {
	issuer := NewTokenIssuer(testAuthConfig())

	token, err := issuer.IssueRefreshToken("user-1")
	require.NoError(t, err)

	claims, err := issuer.VerifyRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	require.NoError(t, err)
	payload := parsed.Claims.(jwt.MapClaims)
	assert.NotContains(t, payload, "email")
	assert.NotContains(t, payload, "username")
}

func TestTokenIssuer_SecretsAreNotInterchangeable(t *testing.T) {
	issuer := NewTokenIssuer(testAuthConfig())

	access, err := issuer.IssueAccessToken("user-1", "a@example.com", "a")
	require.NoError(t, err)
	refresh, err := issuer.IssueRefreshToken("user-1")
	require.NoError(t, err)

	_, err = issuer.VerifyRefreshToken(access)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.VerifyAccessToken(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_TokensAreUnique(t *testing.T) {
	issuer := NewTokenIssuer(testAuthConfig())

	first, err := issuer.IssueRefreshToken("user-1")
	require.NoError(t, err)
	second, err := issuer.IssueRefreshToken("user-1")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestTokenIssuer_Rejects(t *testing.T) {
	issuer := NewTokenIssuer(testAuthConfig())

	expiredIssuer := NewTokenIssuer(testAuthConfig())
	expiredIssuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := expiredIssuer.IssueAccessToken("user-1", "a@example.com", "a")
	require.NoError(t, err)

	valid, err := issuer.IssueAccessToken("user-1", "a@example.com", "a")
	require.NoError(t, err)
	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + parts[1] + ".invalidsignature"

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, AccessClaims{UserID: "user-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	other := NewTokenIssuer(config.AuthConfig{
		AccessTokenSecret:    "another-secret",
		RefreshTokenSecret:   "another-refresh",
		AccessTokenDuration:  time.Minute,
		RefreshTokenDuration: time.Hour,
	})
	foreign, err := other.IssueAccessToken("user-1", "a@example.com", "a")
	require.NoError(t, err)

	tests := map[string]string{
		"expired":        expired,
		"tampered":       tampered,
		"malformed":      "not-a-jwt",
		"empty":          "",
		"alg none":       noneToken,
		"foreign secret": foreign,
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := issuer.VerifyAccessToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

package user

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "a@b.com", Normalize("A@B.com"))
	assert.Equal(t, "a@b.com", Normalize("a@b.com "))
	assert.Equal(t, "alice", Normalize("  Alice\t"))
}

func TestNew_NormalizesAndDefaults(t *testing.T) {
	u := New("id-1", " Alice ", "Alice@Example.COM", "hash")

	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, DefaultAvatarURL, u.Avatar.URL)
	assert.False(t, u.IsEmailVerified)
	assert.False(t, u.HasPendingVerification())
	assert.False(t, u.HasPendingReset())
}

func TestTokenFieldsMoveTogether(t *testing.T) {
	u := New("id-1", "alice", "a@b.com", "hash")
	exp := time.Now().Add(time.Minute)

	u.SetEmailVerification("vh", exp)
	u.SetPasswordReset("rh", exp)
	require.True(t, u.HasPendingVerification())
	require.True(t, u.HasPendingReset())

	u.ClearEmailVerification()
	assert.Nil(t, u.EmailVerificationTokenHash)
	assert.Nil(t, u.EmailVerificationExpiry)
	assert.True(t, u.HasPendingReset())

	u.ClearPasswordReset()
	assert.Nil(t, u.ForgotPasswordTokenHash)
	assert.Nil(t, u.ForgotPasswordExpiry)
}

func TestUserJSON_HidesSecrets(t *testing.T) {
	u := New("id-1", "alice", "a@b.com", "$argon2id$secret")
	u.RefreshToken = "refresh-jwt"
	u.SetEmailVerification("verify-hash", time.Now())
	u.SetPasswordReset("reset-hash", time.Now())

	b, err := json.Marshal(u)
	require.NoError(t, err)

	out := string(b)
	for _, secret := range []string{"$argon2id$secret", "refresh-jwt", "verify-hash", "reset-hash"} {
		assert.NotContains(t, out, secret)
	}
	assert.Contains(t, out, `"isEmailVerified":false`)
	assert.Contains(t, out, `"_id":"id-1"`)
}

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"
)

// OneTimeTokenTTL is how long an emailed verification or reset link stays valid.
const OneTimeTokenTTL = 20 * time.Minute

const oneTimeTokenBytes = 20

// OneTimeToken is a freshly generated single-use token. Raw goes to the user
// exactly once; only Hash and Expiry are persisted.
type OneTimeToken struct {
	Raw    string
	Hash   string
	Expiry time.Time
}

// OneTimeTokens generates and redeems single-use tokens.
type OneTimeTokens struct {
	ttl time.Duration
	now func() time.Time
}

func NewOneTimeTokens(ttl time.Duration) *OneTimeTokens {
	return &OneTimeTokens{ttl: ttl, now: time.Now}
}

func (g *OneTimeTokens) Generate() (OneTimeToken, error) {
	b := make([]byte, oneTimeTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return OneTimeToken{}, fmt.Errorf("failed to generate token: %w", err)
	}

	raw := hex.EncodeToString(b)
	return OneTimeToken{
		Raw:    raw,
		Hash:   HashToken(raw),
		Expiry: g.now().Add(g.ttl),
	}, nil
}

// Redeem checks a presented raw token against the stored hash and expiry.
// Clearing the stored fields afterwards is the caller's job.
func (g *OneTimeTokens) Redeem(raw, storedHash string, expiry time.Time) error {
	if raw == "" || storedHash == "" {
		return ErrOneTimeTokenInvalid
	}
	if subtle.ConstantTimeCompare([]byte(HashToken(raw)), []byte(storedHash)) != 1 {
		return ErrOneTimeTokenInvalid
	}
	if g.now().After(expiry) {
		return ErrTokenExpired
	}
	return nil
}

// HashToken returns the hex SHA-256 digest stored for a raw token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

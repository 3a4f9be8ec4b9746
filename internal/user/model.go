package user

import (
	"strings"
	"time"
)

// DefaultAvatarURL is assigned to users who never uploaded an avatar.
const DefaultAvatarURL = "https://placehold.co/200x200"

type Avatar struct {
	URL       string `json:"url"`
	LocalPath string `json:"localPath"`
}

// User is the persisted user record. Credential and token fields never
// leave the process: they are excluded from JSON.
type User struct {
	ID              string    `json:"_id"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	FullName        string    `json:"fullName,omitempty"`
	Avatar          Avatar    `json:"avatar"`
	PasswordHash    string    `json:"-"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	RefreshToken    string    `json:"-"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`

	// Outstanding single-use tokens. Hash and expiry are always set and
	// cleared together.
	EmailVerificationTokenHash *string    `json:"-"`
	EmailVerificationExpiry    *time.Time `json:"-"`
	ForgotPasswordTokenHash    *string    `json:"-"`
	ForgotPasswordExpiry       *time.Time `json:"-"`
}

// New returns an unverified user with normalized identity fields.
func New(id, username, email, passwordHash string) *User {
	return &User{
		ID:           id,
		Username:     Normalize(username),
		Email:        Normalize(email),
		PasswordHash: passwordHash,
		Avatar:       Avatar{URL: DefaultAvatarURL},
	}
}

// Normalize trims and lowercases usernames and emails.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SetEmailVerification records an outstanding verification token.
func (u *User) SetEmailVerification(hash string, expiry time.Time) {
	u.EmailVerificationTokenHash = &hash
	u.EmailVerificationExpiry = &expiry
}

// ClearEmailVerification removes the outstanding verification token.
func (u *User) ClearEmailVerification() {
	u.EmailVerificationTokenHash = nil
	u.EmailVerificationExpiry = nil
}

// SetPasswordReset records an outstanding password reset token.
func (u *User) SetPasswordReset(hash string, expiry time.Time) {
	u.ForgotPasswordTokenHash = &hash
	u.ForgotPasswordExpiry = &expiry
}

// ClearPasswordReset removes the outstanding password reset token.
func (u *User) ClearPasswordReset() {
	u.ForgotPasswordTokenHash = nil
	u.ForgotPasswordExpiry = nil
}

// HasPendingVerification reports whether a verification token is outstanding.
func (u *User) HasPendingVerification() bool {
	return u.EmailVerificationTokenHash != nil && u.EmailVerificationExpiry != nil
}

// HasPendingReset reports whether a password reset token is outstanding.
func (u *User) HasPendingReset() bool {
	return u.ForgotPasswordTokenHash != nil && u.ForgotPasswordExpiry != nil
}

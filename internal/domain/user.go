package domain

import (
	"strings"
	"time"
)

// DefaultAvatarURL is assigned to accounts registered without an avatar.
const DefaultAvatarURL = "https://placehold.co/200x200"

// SecretKind names one of the two independent ephemeral secret slots on a user.
type SecretKind string

const (
	SecretEmailVerification SecretKind = "email_verification"
	SecretPasswordReset     SecretKind = "password_reset"
)

// Valid reports whether k is a known slot.
func (k SecretKind) Valid() bool {
	return k == SecretEmailVerification || k == SecretPasswordReset
}

// PendingSecret is the stored half of an ephemeral secret. The digest and its
// expiry live and die together, so a slot is either nil or fully populated.
type PendingSecret struct {
	Hash      string
	ExpiresAt time.Time
}

// Expired reports whether the secret is past its expiry at now.
func (p *PendingSecret) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// User is a registered account together with its credential state.
type User struct {
	ID              string    `json:"id"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	FullName        string    `json:"full_name,omitempty"`
	AvatarURL       string    `json:"avatar_url"`
	IsEmailVerified bool      `json:"is_email_verified"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	PasswordHash string `json:"-"`

	// RefreshTokenHash is the SHA-256 digest of the single active refresh
	// token. Empty means no active session.
	RefreshTokenHash string `json:"-"`

	EmailVerification *PendingSecret `json:"-"`
	PasswordReset     *PendingSecret `json:"-"`
}

// HasActiveSession reports whether a refresh token is currently stored.
func (u *User) HasActiveSession() bool {
	return u.RefreshTokenHash != ""
}

// Pending returns the slot for kind, or nil when the slot is empty.
func (u *User) Pending(kind SecretKind) *PendingSecret {
	switch kind {
	case SecretEmailVerification:
		return u.EmailVerification
	case SecretPasswordReset:
		return u.PasswordReset
	default:
		return nil
	}
}

// NormalizeEmail trims and lower-cases an email address so uniqueness is
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeUsername trims and lower-cases a username.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// TokenPair holds an access and refresh token pair with their expiries.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Session is the result of a successful login or rotation.
type Session struct {
	User   *User     `json:"user"`
	Tokens TokenPair `json:"tokens"`
}

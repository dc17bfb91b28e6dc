package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

// secretBytes gives 160 bits of entropy per ephemeral secret.
const secretBytes = 20

// EphemeralSecret is a freshly generated single-use secret. Plain is handed
// out once, embedded in a link; only Hash and ExpiresAt are stored.
type EphemeralSecret struct {
	Plain     string
	Hash      string
	ExpiresAt time.Time
}

// SecretGenerator produces time-boxed secrets for email verification and
// password reset links.
type SecretGenerator struct {
	ttl    time.Duration
	now    func() time.Time
	random io.Reader
}

// NewSecretGenerator creates a generator whose secrets expire after ttl.
func NewSecretGenerator(ttl time.Duration) *SecretGenerator {
	return &SecretGenerator{ttl: ttl, now: time.Now, random: rand.Reader}
}

// TTL returns the configured lifetime.
func (g *SecretGenerator) TTL() time.Duration {
	return g.ttl
}

// Generate returns a new random secret with its digest and expiry.
func (g *SecretGenerator) Generate() (EphemeralSecret, error) {
	buf := make([]byte, secretBytes)
	if _, err := io.ReadFull(g.random, buf); err != nil {
		return EphemeralSecret{}, fmt.Errorf("read random bytes: %w", err)
	}
	plain := hex.EncodeToString(buf)
	return EphemeralSecret{
		Plain:     plain,
		Hash:      HashSecret(plain),
		ExpiresAt: g.now().UTC().Add(g.ttl),
	}, nil
}

// HashSecret returns the hex SHA-256 digest of a high-entropy value. No salt:
// inputs are random per call. Also used to store refresh tokens.
func HashSecret(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// MatchSecret reports whether plain hashes to storedHash, in constant time.
func MatchSecret(plain, storedHash string) bool {
	if plain == "" || storedHash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashSecret(plain)), []byte(storedHash)) == 1
}

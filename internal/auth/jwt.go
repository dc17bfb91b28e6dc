package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/Ritik272004/PROJMANAGEMENT/pkg/errors"
)

// TokenKind distinguishes short-lived access tokens from long-lived refresh tokens.
type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

// Identity is the subject a token is minted for.
type Identity struct {
	UserID   string
	Email    string
	Username string
}

// Claims represents the JWT claims of either token kind. Email and Username
// are only populated on access tokens.
type Claims struct {
	Kind     TokenKind `json:"kind"`
	Email    string    `json:"email,omitempty"`
	Username string    `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim.
func (c *Claims) UserID() string {
	return c.Subject
}

// TokenConfig carries the per-kind signing keys and lifetimes.
type TokenConfig struct {
	Issuer        string
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
}

// TokenManager mints and verifies HS256 session tokens.
type TokenManager struct {
	issuer string
	keys   map[TokenKind][]byte
	ttls   map[TokenKind]time.Duration
	now    func() time.Time
}

// NewTokenManager creates a token manager from cfg.
func NewTokenManager(cfg TokenConfig) (*TokenManager, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, fmt.Errorf("token secrets must not be empty")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("token TTLs must be positive")
	}
	return &TokenManager{
		issuer: cfg.Issuer,
		keys: map[TokenKind][]byte{
			AccessToken:  []byte(cfg.AccessSecret),
			RefreshToken: []byte(cfg.RefreshSecret),
		},
		ttls: map[TokenKind]time.Duration{
			AccessToken:  cfg.AccessTTL,
			RefreshToken: cfg.RefreshTTL,
		},
		now: time.Now,
	}, nil
}

// IssueAccessToken mints an access token for id.
func (m *TokenManager) IssueAccessToken(id Identity) (string, time.Time, error) {
	return m.issue(AccessToken, id)
}

// IssueRefreshToken mints a refresh token for id. Only the subject is embedded.
func (m *TokenManager) IssueRefreshToken(id Identity) (string, time.Time, error) {
	return m.issue(RefreshToken, Identity{UserID: id.UserID})
}

func (m *TokenManager) issue(kind TokenKind, id Identity) (string, time.Time, error) {
	if id.UserID == "" {
		return "", time.Time{}, fmt.Errorf("issue %s token: empty subject", kind)
	}

	now := m.now().UTC()
	expiresAt := now.Add(m.ttls[kind])
	claims := &Claims{
		Kind:     kind,
		Email:    id.Email,
		Username: id.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.UserID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.keys[kind])
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, expiresAt, nil
}

// Verify checks the signature, expiry, issuer and kind of token. Failures
// wrap apperrors.ErrTokenExpired when only the expiry is wrong and
// apperrors.ErrTokenInvalid otherwise.
func (m *TokenManager) Verify(token string, kind TokenKind) (*Claims, error) {
	key, ok := m.keys[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown token kind %q", apperrors.ErrTokenInvalid, kind)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %s token", apperrors.ErrTokenExpired, kind)
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTokenInvalid, err)
	}

	if claims.Kind != kind {
		return nil, fmt.Errorf("%w: expected %s token, got %q", apperrors.ErrTokenInvalid, kind, claims.Kind)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", apperrors.ErrTokenInvalid)
	}
	return claims, nil
}

package repository

import (
	"context"
	"time"

	"github.com/Ritik272004/PROJMANAGEMENT/internal/domain"
)

// UserRepository defines the credential record store. Every mutating method
// is a single atomic update on one record.
type UserRepository interface {
	// Create inserts a new user, including any pending verification secret.
	// Duplicate username or email yields apperrors.ErrAlreadyExists.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by normalized email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// IdentityTaken returns "username" or "email" when either is already
	// registered, or "" when both are free.
	IdentityTaken(ctx context.Context, username, email string) (string, error)

	// FindBySecret retrieves the user whose pending secret of the given kind
	// has digest hash, regardless of expiry.
	FindBySecret(ctx context.Context, kind domain.SecretKind, hash string) (*domain.User, error)

	// SetRefreshToken overwrites the stored refresh digest. An empty digest
	// ends the session.
	SetRefreshToken(ctx context.Context, id, digest string) error

	// SwapRefreshToken replaces the refresh digest only if it still equals
	// expected. A lost race yields apperrors.ErrSessionInvalidated.
	SwapRefreshToken(ctx context.Context, id, expected, next string) error

	// SetSecret stores a pending secret in the given slot, replacing any
	// previous one.
	SetSecret(ctx context.Context, id string, kind domain.SecretKind, secret domain.PendingSecret) error

	// ConsumeEmailVerification clears the verification slot whose digest is
	// hash and whose expiry is after now, and marks the email verified.
	ConsumeEmailVerification(ctx context.Context, hash string, now time.Time) (*domain.User, error)

	// ConsumePasswordReset clears the reset slot whose digest is hash and
	// whose expiry is after now, replaces the password hash and ends the
	// session.
	ConsumePasswordReset(ctx context.Context, hash, passwordHash string, now time.Time) (*domain.User, error)

	// UpdatePassword replaces the password hash and ends the session, only if
	// the stored hash still equals currentHash. A changed or missing record
	// yields apperrors.ErrNotFound.
	UpdatePassword(ctx context.Context, id, currentHash, passwordHash string) error
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Ritik272004/PROJMANAGEMENT/internal/domain"
	"github.com/Ritik272004/PROJMANAGEMENT/pkg/database"
	apperrors "github.com/Ritik272004/PROJMANAGEMENT/pkg/errors"
)

const (
	usernameConstraint = "users_username_key"
	emailConstraint    = "users_email_key"
)

const userColumns = `id, username, email, full_name, avatar_url, password_hash, is_email_verified,
		refresh_token_hash, email_verification_hash, email_verification_expiry,
		forgot_password_hash, forgot_password_expiry, created_at, updated_at`

// secretColumns maps a slot to its hash and expiry columns.
var secretColumns = map[domain.SecretKind][2]string{
	domain.SecretEmailVerification: {"email_verification_hash", "email_verification_expiry"},
	domain.SecretPasswordReset:     {"forgot_password_hash", "forgot_password_expiry"},
}

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db  database.DBTX
	now func() time.Time
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db, now: time.Now}
}

// Create inserts a new user into the database.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	query := `
		INSERT INTO users (id, username, email, full_name, avatar_url, password_hash, is_email_verified,
			refresh_token_hash, email_verification_hash, email_verification_expiry, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	ctx, end := database.TraceQuery(ctx, "CreateUser", query)
	defer func() { end(err) }()

	verifyHash, verifyExpiry := pendingArgs(u.EmailVerification)
	_, err = r.db.Exec(ctx, query,
		u.ID,
		u.Username,
		u.Email,
		u.FullName,
		u.AvatarURL,
		u.PasswordHash,
		u.IsEmailVerified,
		u.RefreshTokenHash,
		verifyHash,
		verifyExpiry,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if field, ok := uniqueViolation(err); ok {
			value := u.Email
			if field == "username" {
				value = u.Username
			}
			return apperrors.AlreadyExists("user", field, value)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(ctx, "GetUserByID", query, id)
}

// GetByEmail retrieves a user by their email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(ctx, "GetUserByEmail", query, email)
}

// IdentityTaken reports which of username or email is already registered.
func (r *UserRepository) IdentityTaken(ctx context.Context, username, email string) (field string, err error) {
	query := `
		SELECT username = $1 AS username_taken
		FROM users
		WHERE username = $1 OR email = $2
		ORDER BY username_taken DESC
		LIMIT 1`

	ctx, end := database.TraceQuery(ctx, "IdentityTaken", query)
	defer func() { end(err) }()

	var usernameTaken bool
	err = r.db.QueryRow(ctx, query, username, email).Scan(&usernameTaken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("check identity: %w", err)
	}
	if usernameTaken {
		return "username", nil
	}
	return "email", nil
}

// FindBySecret retrieves the user holding the given pending secret digest.
func (r *UserRepository) FindBySecret(ctx context.Context, kind domain.SecretKind, hash string) (*domain.User, error) {
	cols, ok := secretColumns[kind]
	if !ok {
		return nil, fmt.Errorf("find by secret: unknown kind %q", kind)
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + cols[0] + ` = $1`
	return r.scanUser(ctx, "FindUserBySecret", query, hash)
}

// SetRefreshToken overwrites the stored refresh token digest.
func (r *UserRepository) SetRefreshToken(ctx context.Context, id, digest string) (err error) {
	query := `UPDATE users SET refresh_token_hash = $1, updated_at = $2 WHERE id = $3`

	ctx, end := database.TraceQuery(ctx, "SetRefreshToken", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, digest, r.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// SwapRefreshToken replaces the refresh digest if it still equals expected.
func (r *UserRepository) SwapRefreshToken(ctx context.Context, id, expected, next string) (err error) {
	query := `
		UPDATE users
		SET refresh_token_hash = $1, updated_at = $2
		WHERE id = $3 AND refresh_token_hash = $4 AND refresh_token_hash <> ''`

	ctx, end := database.TraceQuery(ctx, "SwapRefreshToken", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, next, r.now().UTC(), id, expected)
	if err != nil {
		return fmt.Errorf("swap refresh token: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrSessionInvalidated
	}
	return nil
}

// SetSecret stores a pending secret, replacing any previous one in the slot.
func (r *UserRepository) SetSecret(ctx context.Context, id string, kind domain.SecretKind, secret domain.PendingSecret) (err error) {
	cols, ok := secretColumns[kind]
	if !ok {
		return fmt.Errorf("set secret: unknown kind %q", kind)
	}
	query := fmt.Sprintf(`UPDATE users SET %s = $1, %s = $2, updated_at = $3 WHERE id = $4`, cols[0], cols[1])

	ctx, end := database.TraceQuery(ctx, "SetSecret", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, secret.Hash, secret.ExpiresAt, r.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set %s secret: %w", kind, err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ConsumeEmailVerification marks the email verified and clears the slot.
func (r *UserRepository) ConsumeEmailVerification(ctx context.Context, hash string, now time.Time) (*domain.User, error) {
	query := `
		UPDATE users
		SET is_email_verified = TRUE,
		    email_verification_hash = NULL,
		    email_verification_expiry = NULL,
		    updated_at = $2
		WHERE email_verification_hash = $1 AND email_verification_expiry > $2
		RETURNING ` + userColumns

	return r.scanUser(ctx, "ConsumeEmailVerification", query, hash, now.UTC())
}

// ConsumePasswordReset replaces the password, clears the slot and ends the session.
func (r *UserRepository) ConsumePasswordReset(ctx context.Context, hash, passwordHash string, now time.Time) (*domain.User, error) {
	query := `
		UPDATE users
		SET password_hash = $3,
		    refresh_token_hash = '',
		    forgot_password_hash = NULL,
		    forgot_password_expiry = NULL,
		    updated_at = $2
		WHERE forgot_password_hash = $1 AND forgot_password_expiry > $2
		RETURNING ` + userColumns

	return r.scanUser(ctx, "ConsumePasswordReset", query, hash, now.UTC(), passwordHash)
}

// UpdatePassword replaces the password hash and ends the session if the
// stored hash is still currentHash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, currentHash, passwordHash string) (err error) {
	query := `UPDATE users SET password_hash = $1, refresh_token_hash = '', updated_at = $2 WHERE id = $3 AND password_hash = $4`

	ctx, end := database.TraceQuery(ctx, "UpdatePassword", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, passwordHash, r.now().UTC(), id, currentHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// scanUser executes a query expected to return a single user row.
func (r *UserRepository) scanUser(ctx context.Context, op, query string, args ...any) (_ *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	var (
		u                         domain.User
		verifyHash, resetHash     *string
		verifyExpiry, resetExpiry *time.Time
	)
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.FullName,
		&u.AvatarURL,
		&u.PasswordHash,
		&u.IsEmailVerified,
		&u.RefreshTokenHash,
		&verifyHash,
		&verifyExpiry,
		&resetHash,
		&resetExpiry,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	u.EmailVerification = pendingFrom(verifyHash, verifyExpiry)
	u.PasswordReset = pendingFrom(resetHash, resetExpiry)
	return &u, nil
}

func pendingArgs(p *domain.PendingSecret) (*string, *time.Time) {
	if p == nil {
		return nil, nil
	}
	return &p.Hash, &p.ExpiresAt
}

func pendingFrom(hash *string, expiry *time.Time) *domain.PendingSecret {
	if hash == nil || expiry == nil {
		return nil
	}
	return &domain.PendingSecret{Hash: *hash, ExpiresAt: *expiry}
}

// uniqueViolation reports whether err is a unique constraint violation and
// which identity field it concerns.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return "", false
	}
	if pgErr.ConstraintName == usernameConstraint {
		return "username", true
	}
	return "email", true
}

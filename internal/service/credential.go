package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Ritik272004/PROJMANAGEMENT/internal/auth"
	"github.com/Ritik272004/PROJMANAGEMENT/internal/domain"
	"github.com/Ritik272004/PROJMANAGEMENT/internal/metrics"
	"github.com/Ritik272004/PROJMANAGEMENT/internal/notify"
	"github.com/Ritik272004/PROJMANAGEMENT/internal/repository"
	apperrors "github.com/Ritik272004/PROJMANAGEMENT/pkg/errors"
	"github.com/Ritik272004/PROJMANAGEMENT/pkg/logger"
)

// Notifier queues an outbound message. Delivery outcome is not reported.
type Notifier interface {
	Dispatch(ctx context.Context, msg *notify.Message)
}

// Links builds the URLs embedded in verification and reset mails.
type Links struct {
	Verification  func(secret string) string
	PasswordReset func(secret string) string
}

// CredentialService implements the credential record lifecycle and the
// session operations built on it.
type CredentialService struct {
	repo     repository.UserRepository
	hasher   *auth.Hasher
	tokens   *auth.TokenManager
	secrets  *auth.SecretGenerator
	notifier Notifier
	links    Links
	logger   *slog.Logger
	now      func() time.Time
}

// NewCredentialService creates a new credential service.
func NewCredentialService(
	repo repository.UserRepository,
	hasher *auth.Hasher,
	tokens *auth.TokenManager,
	secrets *auth.SecretGenerator,
	notifier Notifier,
	links Links,
	logger *slog.Logger,
) *CredentialService {
	return &CredentialService{
		repo:     repo,
		hasher:   hasher,
		tokens:   tokens,
		secrets:  secrets,
		notifier: notifier,
		links:    links,
		logger:   logger,
		now:      time.Now,
	}
}

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName string
}

// Register creates an unverified account and mails a verification link.
func (s *CredentialService) Register(ctx context.Context, input RegisterInput) (_ *domain.User, err error) {
	defer s.observe("register", &err)

	username := domain.NormalizeUsername(input.Username)
	email := domain.NormalizeEmail(input.Email)
	if username == "" || email == "" {
		return nil, apperrors.InvalidInput("username and email are required")
	}

	field, err := s.repo.IdentityTaken(ctx, username, email)
	if err != nil {
		return nil, fmt.Errorf("check identity: %w", err)
	}
	if field != "" {
		value := email
		if field == "username" {
			value = username
		}
		return nil, apperrors.AlreadyExists("user", field, value)
	}

	passwordHash, err := s.hashPassword(ctx, input.Password)
	if err != nil {
		return nil, err
	}

	secret, err := s.secrets.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate verification secret: %w", err)
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		FullName:     input.FullName,
		AvatarURL:    domain.DefaultAvatarURL,
		PasswordHash: passwordHash,
		EmailVerification: &domain.PendingSecret{
			Hash:      secret.Hash,
			ExpiresAt: secret.ExpiresAt,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.notifier.Dispatch(ctx, notify.EmailVerification(user.Email, user.Username, s.links.Verification(secret.Plain)))

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "user registered", slog.String("user_id", user.ID))
	return user, nil
}

// VerifyEmail consumes an email verification secret.
func (s *CredentialService) VerifyEmail(ctx context.Context, plainSecret string) (_ *domain.User, err error) {
	defer s.observe("verify_email", &err)

	hash, err := s.checkSecret(ctx, domain.SecretEmailVerification, plainSecret, "email verification")
	if err != nil {
		return nil, err
	}

	user, err := s.repo.ConsumeEmailVerification(ctx, hash, s.now())
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.TokenInvalid("email verification token is invalid")
		}
		return nil, fmt.Errorf("consume email verification: %w", err)
	}
	return user, nil
}

// ResendVerification replaces the pending verification secret and mails a new link.
func (s *CredentialService) ResendVerification(ctx context.Context, userID string) (err error) {
	defer s.observe("resend_verification", &err)

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsEmailVerified {
		return apperrors.AlreadyVerified()
	}

	secret, err := s.issueSecret(ctx, user.ID, domain.SecretEmailVerification)
	if err != nil {
		return err
	}

	s.notifier.Dispatch(ctx, notify.EmailVerification(user.Email, user.Username, s.links.Verification(secret)))
	return nil
}

// RequestPasswordReset stores a reset secret and mails the link. A missing
// account is reported as NotFound; callers facing the public decide whether
// to reveal it.
func (s *CredentialService) RequestPasswordReset(ctx context.Context, email string) (err error) {
	defer s.observe("request_password_reset", &err)

	user, err := s.repo.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFoundBy("user", "email")
		}
		return fmt.Errorf("get user by email: %w", err)
	}

	secret, err := s.issueSecret(ctx, user.ID, domain.SecretPasswordReset)
	if err != nil {
		return err
	}

	s.notifier.Dispatch(ctx, notify.PasswordReset(user.Email, user.Username, s.links.PasswordReset(secret)))
	return nil
}

// ResetPassword consumes a reset secret and replaces the password. Any
// active session ends.
func (s *CredentialService) ResetPassword(ctx context.Context, plainSecret, newPassword string) (err error) {
	defer s.observe("reset_password", &err)

	hash, err := s.checkSecret(ctx, domain.SecretPasswordReset, plainSecret, "password reset")
	if err != nil {
		return err
	}

	passwordHash, err := s.hashPassword(ctx, newPassword)
	if err != nil {
		return err
	}

	if _, err := s.repo.ConsumePasswordReset(ctx, hash, passwordHash, s.now()); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.TokenInvalid("password reset token is invalid")
		}
		return fmt.Errorf("consume password reset: %w", err)
	}
	return nil
}

// ChangePassword replaces the password of an authenticated user after
// checking the current one. Any active session ends.
func (s *CredentialService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) (err error) {
	defer s.observe("change_password", &err)

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if !s.verifyPassword(ctx, oldPassword, user.PasswordHash) {
		return apperrors.InvalidCredentials()
	}

	passwordHash, err := s.hashPassword(ctx, newPassword)
	if err != nil {
		return err
	}

	// A concurrent change already replaced the hash this request verified.
	if err := s.repo.UpdatePassword(ctx, user.ID, user.PasswordHash, passwordHash); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.InvalidCredentials()
		}
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// CurrentUser returns the record of an authenticated user.
func (s *CredentialService) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.getUser(ctx, userID)
}

// checkSecret looks the secret up by digest and reports TokenInvalid when no
// slot holds it and TokenExpired when the slot exists but has lapsed.
func (s *CredentialService) checkSecret(ctx context.Context, kind domain.SecretKind, plain, label string) (string, error) {
	if plain == "" {
		return "", apperrors.TokenInvalid(label + " token is invalid")
	}
	hash := auth.HashSecret(plain)

	user, err := s.repo.FindBySecret(ctx, kind, hash)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", apperrors.TokenInvalid(label + " token is invalid")
		}
		return "", fmt.Errorf("find user by %s secret: %w", kind, err)
	}

	pending := user.Pending(kind)
	if pending == nil || !auth.MatchSecret(plain, pending.Hash) {
		return "", apperrors.TokenInvalid(label + " token is invalid")
	}
	if pending.Expired(s.now()) {
		return "", apperrors.TokenExpired(label + " token has expired")
	}
	return hash, nil
}

// issueSecret generates a secret, stores it in the slot and returns the
// plaintext for the link.
func (s *CredentialService) issueSecret(ctx context.Context, userID string, kind domain.SecretKind) (string, error) {
	secret, err := s.secrets.Generate()
	if err != nil {
		return "", fmt.Errorf("generate %s secret: %w", kind, err)
	}

	pending := domain.PendingSecret{Hash: secret.Hash, ExpiresAt: secret.ExpiresAt}
	if err := s.repo.SetSecret(ctx, userID, kind, pending); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", apperrors.NotFound("user", userID)
		}
		return "", fmt.Errorf("store %s secret: %w", kind, err)
	}
	return secret.Plain, nil
}

func (s *CredentialService) getUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", userID)
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

func (s *CredentialService) hashPassword(ctx context.Context, password string) (string, error) {
	start := time.Now()
	defer func() {
		metrics.PasswordHashDuration.WithLabelValues("hash").Observe(time.Since(start).Seconds())
	}()

	digest, err := s.hasher.Hash(ctx, password)
	if err != nil {
		if errors.Is(err, auth.ErrEmptyPassword) {
			return "", apperrors.InvalidInput("password is required")
		}
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", apperrors.InvalidInput("password must be at most 72 bytes")
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return digest, nil
}

func (s *CredentialService) verifyPassword(ctx context.Context, password, digest string) bool {
	start := time.Now()
	defer func() {
		metrics.PasswordHashDuration.WithLabelValues("verify").Observe(time.Since(start).Seconds())
	}()
	return s.hasher.Verify(ctx, password, digest)
}

// observe records the outcome of a lifecycle operation.
func (s *CredentialService) observe(op string, errp *error) {
	err := *errp
	if err == nil {
		metrics.AuthOperations.WithLabelValues(op, metrics.OutcomeSuccess, "").Inc()
		return
	}

	reason := "INTERNAL_ERROR"
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		reason = appErr.Code
	}
	metrics.AuthOperations.WithLabelValues(op, metrics.OutcomeFailure, reason).Inc()
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Ritik272004/PROJMANAGEMENT/internal/auth"
	"github.com/Ritik272004/PROJMANAGEMENT/internal/domain"
	apperrors "github.com/Ritik272004/PROJMANAGEMENT/pkg/errors"
	"github.com/Ritik272004/PROJMANAGEMENT/pkg/logger"
)

// --- Session operations ---

// Authenticate checks email and password and starts a new session. Any
// previous session of the user is replaced.
func (s *CredentialService) Authenticate(ctx context.Context, email, password string) (_ *domain.Session, err error) {
	defer s.observe("authenticate", &err)

	user, err := s.repo.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFoundBy("user", "email")
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	if !s.verifyPassword(ctx, password, user.PasswordHash) {
		return nil, apperrors.InvalidCredentials()
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, err
	}

	digest := auth.HashSecret(pair.RefreshToken)
	if err := s.repo.SetRefreshToken(ctx, user.ID, digest); err != nil {
		return nil, fmt.Errorf("store refresh digest: %w", err)
	}
	user.RefreshTokenHash = digest

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "user authenticated", slog.String("user_id", user.ID))
	return &domain.Session{User: user, Tokens: pair}, nil
}

// RotateTokens exchanges the active refresh token for a new pair. A token
// that is not the one currently stored, or that loses a concurrent rotation,
// yields SESSION_INVALIDATED.
func (s *CredentialService) RotateTokens(ctx context.Context, refreshToken string) (_ *domain.Session, err error) {
	defer s.observe("rotate_tokens", &err)

	if refreshToken == "" {
		return nil, apperrors.Unauthorized("refresh token is required")
	}

	claims, err := s.tokens.Verify(refreshToken, auth.RefreshToken)
	if err != nil {
		if errors.Is(err, apperrors.ErrTokenExpired) {
			return nil, apperrors.SessionExpired()
		}
		return nil, apperrors.Unauthorized("invalid refresh token")
	}

	user, err := s.getUser(ctx, claims.UserID())
	if err != nil {
		return nil, err
	}

	presented := auth.HashSecret(refreshToken)
	if !user.HasActiveSession() || !auth.MatchSecret(refreshToken, user.RefreshTokenHash) {
		return nil, apperrors.SessionInvalidated()
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, err
	}

	next := auth.HashSecret(pair.RefreshToken)
	if err := s.repo.SwapRefreshToken(ctx, user.ID, presented, next); err != nil {
		if errors.Is(err, apperrors.ErrSessionInvalidated) || errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.SessionInvalidated()
		}
		return nil, fmt.Errorf("swap refresh digest: %w", err)
	}
	user.RefreshTokenHash = next

	return &domain.Session{User: user, Tokens: pair}, nil
}

// Logout ends the active session. Logging out without a session succeeds.
func (s *CredentialService) Logout(ctx context.Context, userID string) (err error) {
	defer s.observe("logout", &err)

	if err := s.repo.SetRefreshToken(ctx, userID, ""); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("user", userID)
		}
		return fmt.Errorf("clear refresh digest: %w", err)
	}
	return nil
}

// ResolveAccessToken verifies an access token and loads its user. An expired
// token carries the TOKEN_EXPIRED code; every failure is unauthenticated.
func (s *CredentialService) ResolveAccessToken(ctx context.Context, accessToken string) (*domain.User, error) {
	if accessToken == "" {
		return nil, apperrors.Unauthorized("access token is required")
	}

	claims, err := s.tokens.Verify(accessToken, auth.AccessToken)
	if err != nil {
		if errors.Is(err, apperrors.ErrTokenExpired) {
			return nil, apperrors.SessionExpired()
		}
		return nil, apperrors.Unauthorized("invalid access token")
	}

	user, err := s.repo.GetByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid access token")
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

func (s *CredentialService) issuePair(user *domain.User) (domain.TokenPair, error) {
	id := auth.Identity{UserID: user.ID, Email: user.Email, Username: user.Username}

	access, accessExp, err := s.tokens.IssueAccessToken(id)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, refreshExp, err := s.tokens.IssueRefreshToken(id)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}

	return domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Ritik272004/PROJMANAGEMENT/internal/domain"
	apperrors "github.com/Ritik272004/PROJMANAGEMENT/pkg/errors"
	"github.com/Ritik272004/PROJMANAGEMENT/pkg/httputil"
	"github.com/Ritik272004/PROJMANAGEMENT/pkg/logger"
)

// Cookie names carrying the session tokens.
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

type contextKey string

const userKey contextKey = "auth_user"

// CookieConfig controls the attributes of session cookies.
type CookieConfig struct {
	Secure bool
	Domain string
}

// setSessionCookies writes both tokens as HttpOnly cookies that live as long
// as the tokens themselves.
func setSessionCookies(w http.ResponseWriter, cfg CookieConfig, pair domain.TokenPair) {
	http.SetCookie(w, sessionCookie(cfg, AccessTokenCookie, pair.AccessToken, pair.AccessExpiresAt))
	http.SetCookie(w, sessionCookie(cfg, RefreshTokenCookie, pair.RefreshToken, pair.RefreshExpiresAt))
}

func clearSessionCookies(w http.ResponseWriter, cfg CookieConfig) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		c := sessionCookie(cfg, name, "", time.Time{})
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func sessionCookie(cfg CookieConfig, name, value string, expiresAt time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   cfg.Domain,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if !expiresAt.IsZero() {
		c.Expires = expiresAt
		c.MaxAge = int(time.Until(expiresAt).Seconds())
	}
	return c
}

// accessTokenFrom reads the access token from its cookie, then from an
// Authorization: Bearer header.
func accessTokenFrom(r *http.Request) string {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// SessionMiddleware resolves access tokens into users.
type SessionMiddleware struct {
	service AuthService
	logger  *slog.Logger
}

// NewSessionMiddleware creates the session middleware.
func NewSessionMiddleware(svc AuthService, logger *slog.Logger) *SessionMiddleware {
	return &SessionMiddleware{service: svc, logger: logger}
}

// RequireSession rejects requests without a valid access token and stores
// the resolved user in the request context.
func (m *SessionMiddleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := accessTokenFrom(r)
		if token == "" {
			httputil.WriteError(w, r, apperrors.Unauthorized("unauthorized request"), m.logger)
			return
		}

		user, err := m.service.ResolveAccessToken(r.Context(), token)
		if err != nil {
			httputil.WriteError(w, r, err, m.logger)
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		ctx = logger.WithUserID(ctx, user.ID)
		ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("user_id", user.ID)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromContext returns the user stored by RequireSession.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(userKey).(*domain.User)
	return user, ok
}

package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Ritik272004/PROJMANAGEMENT/internal/auth"
	"github.com/Ritik272004/PROJMANAGEMENT/internal/domain"
	"github.com/Ritik272004/PROJMANAGEMENT/internal/notify"
	"github.com/Ritik272004/PROJMANAGEMENT/internal/repository"
	apperrors "github.com/Ritik272004/PROJMANAGEMENT/pkg/errors"
)

const (
	verifyBase = "https://auth.test/api/v1/auth/verify-email/"
	resetBase  = "https://app.test/reset-password/"
)

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) IdentityTaken(ctx context.Context, username, email string) (string, error) {
	args := m.Called(ctx, username, email)
	return args.String(0), args.Error(1)
}

func (m *mockUserRepository) FindBySecret(ctx context.Context, kind domain.SecretKind, hash string) (*domain.User, error) {
	args := m.Called(ctx, kind, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) SetRefreshToken(ctx context.Context, id, digest string) error {
	args := m.Called(ctx, id, digest)
	return args.Error(0)
}

func (m *mockUserRepository) SwapRefreshToken(ctx context.Context, id, expected, next string) error {
	args := m.Called(ctx, id, expected, next)
	return args.Error(0)
}

func (m *mockUserRepository) SetSecret(ctx context.Context, id string, kind domain.SecretKind, secret domain.PendingSecret) error {
	args := m.Called(ctx, id, kind, secret)
	return args.Error(0)
}

func (m *mockUserRepository) ConsumeEmailVerification(ctx context.Context, hash string, now time.Time) (*domain.User, error) {
	args := m.Called(ctx, hash, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) ConsumePasswordReset(ctx context.Context, hash, passwordHash string, now time.Time) (*domain.User, error) {
	args := m.Called(ctx, hash, passwordHash, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, id, currentHash, passwordHash string) error {
	args := m.Called(ctx, id, currentHash, passwordHash)
	return args.Error(0)
}

// --- In-memory User Repository ---

// memoryRepository mirrors the atomic semantics of the real stores so
// lifecycle scenarios can run end to end.
type memoryRepository struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{users: make(map[string]*domain.User)}
}

func clone(u *domain.User) *domain.User {
	c := *u
	if u.EmailVerification != nil {
		v := *u.EmailVerification
		c.EmailVerification = &v
	}
	if u.PasswordReset != nil {
		v := *u.PasswordReset
		c.PasswordReset = &v
	}
	return &c
}

func (r *memoryRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return apperrors.AlreadyExists("user", "username", user.Username)
		}
		if u.Email == user.Email {
			return apperrors.AlreadyExists("user", "email", user.Email)
		}
	}
	r.users[user.ID] = clone(user)
	return nil
}

func (r *memoryRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return clone(u), nil
}

func (r *memoryRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return clone(u), nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memoryRepository) IdentityTaken(_ context.Context, username, email string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return "username", nil
		}
		if u.Email == email {
			return "email", nil
		}
	}
	return "", nil
}

func (r *memoryRepository) FindBySecret(_ context.Context, kind domain.SecretKind, hash string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if p := u.Pending(kind); p != nil && p.Hash == hash {
			return clone(u), nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memoryRepository) SetRefreshToken(_ context.Context, id, digest string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	u.RefreshTokenHash = digest
	return nil
}

func (r *memoryRepository) SwapRefreshToken(_ context.Context, id, expected, next string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.RefreshTokenHash == "" || u.RefreshTokenHash != expected {
		return apperrors.ErrSessionInvalidated
	}
	u.RefreshTokenHash = next
	return nil
}

func (r *memoryRepository) SetSecret(_ context.Context, id string, kind domain.SecretKind, secret domain.PendingSecret) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	s := secret
	switch kind {
	case domain.SecretEmailVerification:
		u.EmailVerification = &s
	case domain.SecretPasswordReset:
		u.PasswordReset = &s
	}
	return nil
}

func (r *memoryRepository) ConsumeEmailVerification(_ context.Context, hash string, now time.Time) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if p := u.EmailVerification; p != nil && p.Hash == hash && !p.Expired(now) {
			u.EmailVerification = nil
			u.IsEmailVerified = true
			return clone(u), nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memoryRepository) ConsumePasswordReset(_ context.Context, hash, passwordHash string, now time.Time) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if p := u.PasswordReset; p != nil && p.Hash == hash && !p.Expired(now) {
			u.PasswordReset = nil
			u.PasswordHash = passwordHash
			u.RefreshTokenHash = ""
			return clone(u), nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memoryRepository) UpdatePassword(_ context.Context, id, currentHash, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.PasswordHash != currentHash {
		return apperrors.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.RefreshTokenHash = ""
	return nil
}

// --- Recording notifier ---

type recordingNotifier struct {
	mu       sync.Mutex
	messages []*notify.Message
}

func (n *recordingNotifier) Dispatch(_ context.Context, msg *notify.Message) {
	n.mu.Lock()
	n.messages = append(n.messages, msg)
	n.mu.Unlock()
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

// lastSecret returns the plaintext secret embedded in the latest message link.
func (n *recordingNotifier) lastSecret(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.messages)
	link := n.messages[len(n.messages)-1].Content.Link
	if s, ok := strings.CutPrefix(link, verifyBase); ok {
		return s
	}
	s, ok := strings.CutPrefix(link, resetBase)
	require.True(t, ok, "unexpected link %q", link)
	return s
}

// --- Fixtures ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTokens(t *testing.T, accessTTL, refreshTTL time.Duration) *auth.TokenManager {
	t.Helper()
	tm, err := auth.NewTokenManager(auth.TokenConfig{
		Issuer:        "auth-test",
		AccessSecret:  "access-secret-for-service-tests-0123456789",
		AccessTTL:     accessTTL,
		RefreshSecret: "refresh-secret-for-service-tests-0123456789",
		RefreshTTL:    refreshTTL,
	})
	require.NoError(t, err)
	return tm
}

type testEnv struct {
	svc      *CredentialService
	notifier *recordingNotifier
}

func newTestService(t *testing.T, repo repository.UserRepository) *testEnv {
	t.Helper()
	return newTestServiceWithTokens(t, repo, newTestTokens(t, 15*time.Minute, 240*time.Hour))
}

func newTestServiceWithTokens(t *testing.T, repo repository.UserRepository, tokens *auth.TokenManager) *testEnv {
	t.Helper()
	notifier := &recordingNotifier{}
	svc := NewCredentialService(
		repo,
		auth.NewHasher(4, 2),
		tokens,
		auth.NewSecretGenerator(20*time.Minute),
		notifier,
		Links{
			Verification:  func(s string) string { return verifyBase + s },
			PasswordReset: func(s string) string { return resetBase + s },
		},
		newTestLogger(),
	)
	return &testEnv{svc: svc, notifier: notifier}
}

// hashedUser returns a stored user whose password is plain.
func hashedUser(t *testing.T, plain string) *domain.User {
	t.Helper()
	digest, err := auth.NewHasher(4, 1).Hash(context.Background(), plain)
	require.NoError(t, err)
	return &domain.User{
		ID:           "user-1",
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: digest,
	}
}

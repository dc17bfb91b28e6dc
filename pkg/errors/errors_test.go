package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Sentinel error identity ---

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrAlreadyExists, ErrInvalidInput, ErrUnauthorized,
		ErrInternal, ErrInvalidCredentials, ErrTokenInvalid, ErrTokenExpired,
		ErrSessionInvalidated, ErrAlreadyVerified, ErrDeliveryFailure,
	}

	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j],
				"sentinels %d and %d should be distinct", i, j)
		}
	}
}

// --- AppError behavior ---

func TestAppError_ErrorString_WithWrappedError(t *testing.T) {
	inner := fmt.Errorf("db connection lost")
	appErr := &AppError{Code: "INTERNAL_ERROR", Message: "something broke", Err: inner}
	assert.Contains(t, appErr.Error(), "INTERNAL_ERROR")
	assert.Contains(t, appErr.Error(), "db connection lost")
}

func TestAppError_ErrorString_WithoutWrappedError(t *testing.T) {
	appErr := &AppError{Code: "NOT_FOUND", Message: "user not found"}
	assert.Equal(t, "NOT_FOUND: user not found", appErr.Error())
}

func TestAppError_WrappedInFmtErrorf(t *testing.T) {
	err := fmt.Errorf("rotate tokens: %w", SessionInvalidated())
	assert.True(t, errors.Is(err, ErrSessionInvalidated))

	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "SESSION_INVALIDATED", appErr.Code)
}

// --- Constructor functions ---

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		code     string
		status   int
		sentinel error
	}{
		{"not found", NotFound("user", "abc"), "NOT_FOUND", http.StatusNotFound, ErrNotFound},
		{"not found by", NotFoundBy("user", "email"), "NOT_FOUND", http.StatusNotFound, ErrNotFound},
		{"already exists", AlreadyExists("user", "email", "a@b.com"), "ALREADY_EXISTS", http.StatusConflict, ErrAlreadyExists},
		{"invalid input", InvalidInput("bad"), "INVALID_INPUT", http.StatusBadRequest, ErrInvalidInput},
		{"unauthorized", Unauthorized("no"), "UNAUTHORIZED", http.StatusUnauthorized, ErrUnauthorized},
		{"invalid credentials", InvalidCredentials(), "INVALID_CREDENTIALS", http.StatusUnauthorized, ErrInvalidCredentials},
		{"token invalid", TokenInvalid("bad link"), "TOKEN_INVALID", http.StatusBadRequest, ErrTokenInvalid},
		{"token expired", TokenExpired("old link"), "TOKEN_EXPIRED", http.StatusBadRequest, ErrTokenExpired},
		{"session expired", SessionExpired(), "TOKEN_EXPIRED", http.StatusUnauthorized, ErrTokenExpired},
		{"session invalidated", SessionInvalidated(), "SESSION_INVALIDATED", http.StatusUnauthorized, ErrSessionInvalidated},
		{"already verified", AlreadyVerified(), "ALREADY_VERIFIED", http.StatusConflict, ErrAlreadyVerified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
			assert.True(t, errors.Is(tt.err, tt.sentinel))
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestSessionExpired_IsUnauthenticated(t *testing.T) {
	err := SessionExpired()
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.True(t, errors.Is(err, ErrTokenExpired))
}

func TestDeliveryFailure_KeepsCause(t *testing.T) {
	cause := errors.New("smtp 421")
	err := DeliveryFailure(cause)
	assert.True(t, errors.Is(err, ErrDeliveryFailure))
	assert.True(t, errors.Is(err, cause))
}

func TestInternal(t *testing.T) {
	cause := errors.New("boom")
	err := Internal(cause)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.True(t, errors.Is(err, cause))
}

// --- HTTPStatus for bare sentinels ---

func TestHTTPStatus_Sentinels(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(fmt.Errorf("x: %w", ErrNotFound)))
	assert.Equal(t, http.StatusConflict, HTTPStatus(ErrAlreadyExists))
	assert.Equal(t, http.StatusConflict, HTTPStatus(ErrAlreadyVerified))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ErrTokenInvalid))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(ErrInvalidCredentials))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(ErrSessionInvalidated))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("other")))
}

func TestWrap(t *testing.T) {
	err := Wrap(ErrNotFound, "get user")
	assert.Equal(t, "get user: resource not found", err.Error())
	assert.True(t, errors.Is(err, ErrNotFound))
}

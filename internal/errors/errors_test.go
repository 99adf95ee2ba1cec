package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs(t *testing.T) {
	t.Run("matches on type and code", func(t *testing.T) {
		err := fmt.Errorf("register: %w", NewDuplicateEmailError("a@example.com"))
		assert.True(t, stderrors.Is(err, ErrDuplicateEmail))
		assert.False(t, stderrors.Is(err, ErrDuplicateRequest))
		assert.False(t, stderrors.Is(err, ErrAuthInProgress))
	})

	t.Run("not found ignores details", func(t *testing.T) {
		err := NewResourceNotFoundError("client", "client-1")
		assert.True(t, stderrors.Is(err, ErrNotFound))
		assert.Equal(t, http.StatusNotFound, err.StatusCode)
	})

	t.Run("plain errors never match", func(t *testing.T) {
		assert.False(t, stderrors.Is(stderrors.New("boom"), ErrForbidden))
	})
}

func TestStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want int
	}{
		{"invalid credentials", NewInvalidCredentialsError(), http.StatusUnauthorized},
		{"duplicate email", NewDuplicateEmailError("x"), http.StatusConflict},
		{"forbidden", NewForbiddenError(""), http.StatusForbidden},
		{"duplicate request", NewDuplicateRequestError("u", "c"), http.StatusConflict},
		{"validation", NewInvalidRequestError("bad", map[string]string{"name": "required"}), http.StatusBadRequest},
		{"storage", NewStorageError("users", "load", stderrors.New("disk")), http.StatusInternalServerError},
		{"rate limit", NewRateLimitExceededError(10, 1), http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.StatusCode)
		})
	}
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	typed := NewForbiddenError("nope")
	assert.Same(t, typed, FromError(fmt.Errorf("wrapped: %w", typed)))

	plain := FromError(stderrors.New("boom"))
	assert.Equal(t, ErrorTypeInternal, plain.Type)
	assert.Equal(t, "Internal server error", plain.Message)
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse(NewStorageError("clients", "save", stderrors.New("disk full")), "req-1")
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, CodeStorage, resp.ErrorCode)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.NotContains(t, resp.Message, "disk full")
	assert.Nil(t, NewErrorResponse(NewForbiddenError(""), "").Details)
}

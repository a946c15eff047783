package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs_MatchesByKindAndCode(t *testing.T) {
	t.Parallel()

	base := Auth("invalid_credentials", "invalid credentials")
	wrapped := fmt.Errorf("auth.Login: %w", Wrap(base, errors.New("bcrypt mismatch")))

	assert.True(t, errors.Is(wrapped, base))
	assert.False(t, errors.Is(wrapped, Auth("token_expired", "token expired")))
	assert.False(t, errors.Is(wrapped, Conflict("invalid_credentials", "invalid credentials")))
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: http.StatusOK},
		{name: "validation", err: Validation("email is required"), want: http.StatusBadRequest},
		{name: "conflict", err: Conflict("email_exists", "email already registered"), want: http.StatusConflict},
		{name: "auth", err: Auth("invalid_token", "invalid token"), want: http.StatusUnauthorized},
		{name: "forbidden", err: Auth(CodeForbidden, "insufficient permissions"), want: http.StatusForbidden},
		{name: "inactive", err: Auth(CodeInactive, "account is inactive"), want: http.StatusForbidden},
		{name: "not found", err: NotFound("account_not_found", "account not found"), want: http.StatusNotFound},
		{name: "wrapped", err: fmt.Errorf("op: %w", Validation("bad")), want: http.StatusBadRequest},
		{name: "operational", err: errors.New("connection refused"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestMessage_HidesOperationalErrors(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "internal error", Message(errors.New("dial tcp 10.0.0.1:5432: refused")))
	assert.Equal(t, "invalid credentials",
		Message(Wrap(Auth("invalid_credentials", "invalid credentials"), errors.New("no rows"))))
}

package response

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"user_service/internal/lib/apperr"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestValidationError_FormatsFieldErrors(t *testing.T) {
	t.Parallel()

	type req struct {
		Email string `validate:"required,email"`
		Role  string `validate:"required,oneof=admin user"`
	}

	err := validator.New().Struct(req{Email: "nope", Role: "root"})
	require.Error(t, err)

	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))

	res := ValidationError(verrs)
	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Error, "field Email is not a valid email")
	assert.Contains(t, res.Error, "field Role must be one of: admin user")
}

func TestServiceError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody Response
	}{
		{
			name:     "auth error",
			err:      apperr.Auth("invalid_credentials", "invalid credentials"),
			wantCode: http.StatusUnauthorized,
			wantBody: Response{Status: StatusError, Error: "invalid credentials", Code: "invalid_credentials"},
		},
		{
			name:     "operational error is hidden",
			err:      errors.New("pgx: connection reset"),
			wantCode: http.StatusInternalServerError,
			wantBody: Response{Status: StatusError, Error: "internal error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)

			ServiceError(rec, req, discardLogger(), tt.err)

			assert.Equal(t, tt.wantCode, rec.Code)

			var got Response
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			assert.Equal(t, tt.wantBody, got)
		})
	}
}

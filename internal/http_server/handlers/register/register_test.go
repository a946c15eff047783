package register

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"user_service/internal/auth"
	"user_service/internal/lib/validate"
	"user_service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegisterer struct {
	session models.Session
	err     error
	got     []string
}

func (f *fakeRegisterer) Register(_ context.Context, name, email, password string) (models.Session, error) {
	f.got = []string{name, email, password}
	return f.session, f.err
}

func do(t *testing.T, svc Registerer, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), validate.New(), svc)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body)))

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))

	return rec, out
}

func TestRegister(t *testing.T) {
	t.Parallel()

	svc := &fakeRegisterer{session: models.Session{
		TokenPair: models.TokenPair{AccessToken: "access", RefreshToken: "refresh"},
		Account:   models.PublicAccount{ID: 1, Name: "Ada", Email: "ada@example.com", Role: models.RoleUser},
	}}

	rec, out := do(t, svc, `{"name":"Ada","email":"ada@example.com","password":"pw"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "OK", out["status"])
	assert.Equal(t, "access", out["access_token"])
	assert.Equal(t, "refresh", out["refresh_token"])
	assert.Equal(t, "user", out["user"].(map[string]any)["role"])
	assert.NotContains(t, rec.Body.String(), "pass")
	assert.Equal(t, []string{"Ada", "ada@example.com", "pw"}, svc.got)
}

func TestRegister_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		svcErr     error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "malformed json",
			body:       `{"name":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing email",
			body:       `{"name":"Ada","password":"pw"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "validation",
		},
		{
			name:       "bad email",
			body:       `{"name":"Ada","email":"nope","password":"pw"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "validation",
		},
		{
			name:       "duplicate",
			body:       `{"name":"Ada","email":"ada@example.com","password":"pw"}`,
			svcErr:     auth.ErrUserExists,
			wantStatus: http.StatusConflict,
			wantCode:   "user_exists",
		},
		{
			name:       "datastore failure",
			body:       `{"name":"Ada","email":"ada@example.com","password":"pw"}`,
			svcErr:     errors.New("connection refused"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := do(t, &fakeRegisterer{err: tt.svcErr}, tt.body)

			require.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "Error", out["status"])
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, out["code"])
			}
			assert.NotContains(t, rec.Body.String(), "connection refused")
		})
	}
}

package authn

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	resp "user_service/internal/lib/api/response"
	"user_service/internal/lib/jwt"
	"user_service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newIssuer(t *testing.T, opts ...jwt.Option) *jwt.Issuer {
	t.Helper()

	i, err := jwt.NewIssuer(jwt.Config{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
	}, opts...)
	require.NoError(t, err)

	return i
}

func accessToken(t *testing.T, i *jwt.Issuer, role models.Role) string {
	t.Helper()

	token, _, err := i.NewAccessToken(models.Account{ID: 7, Email: "ada@example.com", Name: "Ada", Role: role})
	require.NoError(t, err)

	return token
}

// echoIdentity writes the identity found on the context.
func echoIdentity(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusTeapot)
		return
	}
	_ = json.NewEncoder(w).Encode(identity)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) resp.Response {
	t.Helper()

	var body resp.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))

	return body
}

func TestGate(t *testing.T) {
	t.Parallel()

	issuer := newIssuer(t)

	past := time.Now().Add(-time.Hour)
	expired := accessToken(t, newIssuer(t, jwt.WithClock(func() time.Time { return past })), models.RoleUser)

	refresh, _, err := issuer.NewRefreshToken(models.Account{ID: 7})
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantError  string
		wantCode   string
	}{
		{name: "no header", header: "", wantStatus: http.StatusUnauthorized, wantError: "no token", wantCode: "no_token"},
		{name: "wrong scheme", header: "Basic YWRhOnB3", wantStatus: http.StatusUnauthorized, wantError: "no token", wantCode: "no_token"},
		{name: "empty bearer", header: "Bearer ", wantStatus: http.StatusUnauthorized, wantError: "no token", wantCode: "no_token"},
		{name: "garbage", header: "Bearer abc.def.ghi", wantStatus: http.StatusUnauthorized, wantError: "invalid token", wantCode: "invalid_token"},
		{name: "refresh token", header: "Bearer " + refresh, wantStatus: http.StatusUnauthorized, wantError: "invalid token", wantCode: "invalid_token"},
		{name: "expired", header: "Bearer " + expired, wantStatus: http.StatusUnauthorized, wantError: "token expired", wantCode: "token_expired"},
	}

	gate := New(discard, issuer)(http.HandlerFunc(echoIdentity))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			gate.ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, resp.StatusError, body.Status)
			assert.Equal(t, tt.wantError, body.Error)
			assert.Equal(t, tt.wantCode, body.Code)
		})
	}
}

func TestGate_AttachesIdentity(t *testing.T) {
	t.Parallel()

	issuer := newIssuer(t)
	gate := New(discard, issuer)(http.HandlerFunc(echoIdentity))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "bearer "+accessToken(t, issuer, models.RoleAdmin))
	rec := httptest.NewRecorder()

	gate.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var identity models.Identity
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&identity))
	assert.Equal(t, models.Identity{ID: 7, Email: "ada@example.com", Role: models.RoleAdmin, Name: "Ada"}, identity)
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name       string
		identity   *models.Identity
		roles      []models.Role
		wantStatus int
	}{
		{
			name:       "user rejected by admin gate",
			identity:   &models.Identity{ID: 1, Role: models.RoleUser},
			roles:      []models.Role{models.RoleAdmin},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "admin passes admin or user gate",
			identity:   &models.Identity{ID: 1, Role: models.RoleAdmin},
			roles:      []models.Role{models.RoleAdmin, models.RoleUser},
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "user passes admin or user gate",
			identity:   &models.Identity{ID: 1, Role: models.RoleUser},
			roles:      []models.Role{models.RoleAdmin, models.RoleUser},
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "no identity",
			roles:      []models.Role{models.RoleUser},
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
			if tt.identity != nil {
				req = req.WithContext(WithIdentity(req.Context(), *tt.identity))
			}
			rec := httptest.NewRecorder()

			var logs bytes.Buffer
			log := slog.New(slog.NewTextHandler(&logs, nil))

			RequireRole(log, tt.roles...)(ok).ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusForbidden {
				body := decode(t, rec)
				assert.Equal(t, "insufficient permissions", body.Error)
				assert.Equal(t, "forbidden", body.Code)
				assert.Contains(t, logs.String(), "request rejected")
				assert.Contains(t, logs.String(), "code=forbidden")
			} else {
				assert.Empty(t, logs.String())
			}
		})
	}
}

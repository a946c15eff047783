package refresh

import (
	"context"
	"encoding/json"
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

type fakeRefresher struct {
	pair models.TokenPair
	err  error
	got  string
}

func (f *fakeRefresher) Refresh(_ context.Context, token string) (models.TokenPair, error) {
	f.got = token
	return f.pair, f.err
}

func serve(svc Refresher, body string) *httptest.ResponseRecorder {
	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), validate.New(), svc)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/refresh", strings.NewReader(body)))

	return rec
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	svc := &fakeRefresher{pair: models.TokenPair{AccessToken: "a2", RefreshToken: "r2"}}

	rec := serve(svc, `{"refresh_token":"r1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var out Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "a2", out.AccessToken)
	assert.Equal(t, "r2", out.RefreshToken)
	assert.Equal(t, "r1", svc.got)
}

func TestRefresh_Rejected(t *testing.T) {
	t.Parallel()

	rec := serve(&fakeRefresher{}, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(&fakeRefresher{err: auth.ErrInvalidRefreshToken}, `{"refresh_token":"r1"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var out Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "invalid or expired refresh token", out.Error)
	assert.Empty(t, out.RefreshToken)
}

package sessions

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"user_service/internal/http_server/middleware/authn"
	"user_service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	got  int64
	list []models.SessionInfo
}

func (f *fakeLister) Sessions(_ context.Context, accountID int64) ([]models.SessionInfo, error) {
	f.got = accountID
	return f.list, nil
}

func TestSessions(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC().Truncate(time.Second)
	lister := &fakeLister{list: []models.SessionInfo{
		{ID: 1, CreatedAt: now, ExpiresAt: now.Add(time.Hour)},
		{ID: 2, CreatedAt: now, ExpiresAt: now.Add(2 * time.Hour)},
	}}

	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), lister)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/sessions", nil)
	req = req.WithContext(authn.WithIdentity(req.Context(), models.Identity{ID: 11}))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var out Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, int64(11), lister.got)
	assert.True(t, out.Sessions[1].ExpiresAt.Equal(now.Add(2*time.Hour)))
	assert.NotContains(t, rec.Body.String(), "token")
}

package me

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"user_service/internal/accounts"
	"user_service/internal/http_server/middleware/authn"
	"user_service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProfiles struct {
	profile models.Profile
	err     error
}

func (f fakeProfiles) Profile(context.Context, int64) (models.Profile, error) {
	return f.profile, f.err
}

type fakeCounter struct {
	n   int64
	err error
}

func (f fakeCounter) ActiveSessions(context.Context, int64) (int64, error) {
	return f.n, f.err
}

func serve(profiles ProfileProvider, counter SessionCounter, identity *models.Identity) *httptest.ResponseRecorder {
	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), profiles, counter)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	if identity != nil {
		req = req.WithContext(authn.WithIdentity(req.Context(), *identity))
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func TestMe(t *testing.T) {
	t.Parallel()

	profile := models.Profile{ID: 5, Name: "Ada", Email: "ada@example.com", Role: models.RoleUser, Status: models.StatusActive}

	rec := serve(fakeProfiles{profile: profile}, fakeCounter{n: 2}, &models.Identity{ID: 5})
	require.Equal(t, http.StatusOK, rec.Code)

	var out Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, profile.Email, out.User.Email)
	assert.Equal(t, int64(2), out.ActiveSessions)
}

func TestMe_CountFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	rec := serve(fakeProfiles{profile: models.Profile{ID: 5}}, fakeCounter{err: errors.New("db")}, &models.Identity{ID: 5})
	require.Equal(t, http.StatusOK, rec.Code)

	var out Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Zero(t, out.ActiveSessions)
}

func TestMe_Errors(t *testing.T) {
	t.Parallel()

	rec := serve(fakeProfiles{err: accounts.ErrAccountNotFound}, fakeCounter{}, &models.Identity{ID: 5})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(fakeProfiles{}, fakeCounter{}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

package me

import (
	"context"
	"log/slog"
	"net/http"

	"user_service/internal/http_server/middleware/authn"
	resp "user_service/internal/lib/api/response"
	"user_service/internal/lib/logger/sl"
	"user_service/internal/models"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	User           models.Profile `json:"user"`
	ActiveSessions int64          `json:"active_sessions"`
}

type ProfileProvider interface {
	Profile(ctx context.Context, id int64) (models.Profile, error)
}

type SessionCounter interface {
	ActiveSessions(ctx context.Context, accountID int64) (int64, error)
}

func New(
	log *slog.Logger,
	profiles ProfileProvider,
	sessions SessionCounter,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.me.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		identity, ok := authn.IdentityFromContext(r.Context())
		if !ok {
			resp.ServiceError(w, r, log, authn.ErrNoToken)

			return
		}

		profile, err := profiles.Profile(r.Context(), identity.ID)
		if err != nil {
			resp.ServiceError(w, r, log, err)

			return
		}

		// the count is informational; a failure here does not fail the request
		active, err := sessions.ActiveSessions(r.Context(), identity.ID)
		if err != nil {
			log.Warn("failed to count sessions", sl.Err(err))
		}

		render.JSON(w, r, Response{
			Response:       resp.OK(),
			User:           profile,
			ActiveSessions: active,
		})
	}
}

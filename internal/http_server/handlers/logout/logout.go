package logout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	resp "user_service/internal/lib/api/response"
	"user_service/internal/lib/logger/sl"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// Request may be empty: logging out without a refresh token still succeeds.
type Request struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutService interface {
	Logout(ctx context.Context, refreshToken string) error
}

func New(
	log *slog.Logger,
	logoutService LogoutService,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.logout.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		err := render.DecodeJSON(r.Body, &req)
		if err != nil && !errors.Is(err, io.EOF) {
			log.Info("failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("failed to decode request"))

			return
		}

		if err := logoutService.Logout(r.Context(), req.RefreshToken); err != nil {
			resp.ServiceError(w, r, log, err)

			return
		}

		render.JSON(w, r, resp.OK())
	}
}

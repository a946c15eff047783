package logoutAll

import (
	"context"
	"log/slog"
	"net/http"

	"user_service/internal/http_server/middleware/authn"
	resp "user_service/internal/lib/api/response"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	Revoked int64 `json:"revoked"`
}

type LogoutAller interface {
	LogoutAll(ctx context.Context, accountID int64) (int64, error)
}

func New(
	log *slog.Logger,
	logoutAller LogoutAller,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.logoutAll.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		identity, ok := authn.IdentityFromContext(r.Context())
		if !ok {
			resp.ServiceError(w, r, log, authn.ErrNoToken)

			return
		}

		revoked, err := logoutAller.LogoutAll(r.Context(), identity.ID)
		if err != nil {
			resp.ServiceError(w, r, log, err)

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Revoked:  revoked,
		})
	}
}

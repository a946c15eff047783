package sessions

import (
	"context"
	"log/slog"
	"net/http"

	"user_service/internal/http_server/middleware/authn"
	resp "user_service/internal/lib/api/response"
	"user_service/internal/models"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	Count    int                  `json:"count"`
	Sessions []models.SessionInfo `json:"sessions"`
}

type Lister interface {
	Sessions(ctx context.Context, accountID int64) ([]models.SessionInfo, error)
}

func New(
	log *slog.Logger,
	lister Lister,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.sessions.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		identity, ok := authn.IdentityFromContext(r.Context())
		if !ok {
			resp.ServiceError(w, r, log, authn.ErrNoToken)

			return
		}

		list, err := lister.Sessions(r.Context(), identity.ID)
		if err != nil {
			resp.ServiceError(w, r, log, err)

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Count:    len(list),
			Sessions: list,
		})
	}
}

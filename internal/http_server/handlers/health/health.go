package health

import (
	"context"
	"log/slog"
	"net/http"

	resp "user_service/internal/lib/api/response"
	"user_service/internal/lib/logger/sl"

	"github.com/go-chi/render"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// New reports whether the datastore answers.
func New(log *slog.Logger, db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			log.Error("health check failed", slog.String("op", "handlers.health.New"), sl.Err(err))

			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, resp.Error("datastore unavailable"))

			return
		}

		render.JSON(w, r, resp.OK())
	}
}

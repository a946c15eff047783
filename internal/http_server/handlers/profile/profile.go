package profile

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"user_service/internal/http_server/middleware/authn"
	resp "user_service/internal/lib/api/response"
	"user_service/internal/lib/logger/sl"
	"user_service/internal/models"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

// Request carries only user-editable fields; role and status in the body are ignored.
type Request struct {
	Name       string `json:"name" validate:"required,max=100"`
	Email      string `json:"email" validate:"required,email,max=254"`
	Phone      string `json:"phone" validate:"max=32"`
	Address    string `json:"address" validate:"max=255"`
	Department string `json:"department" validate:"max=100"`
}

type Response struct {
	resp.Response
	User models.Profile `json:"user"`
}

type Updater interface {
	UpdateProfile(ctx context.Context, id int64, update models.ProfileUpdate) (models.Profile, error)
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	updater Updater,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.profile.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		identity, ok := authn.IdentityFromContext(r.Context())
		if !ok {
			resp.ServiceError(w, r, log, authn.ErrNoToken)

			return
		}

		var req Request

		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Info("failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("failed to decode request"))

			return
		}

		if err := validate.Struct(req); err != nil {
			var validateErr validator.ValidationErrors
			errors.As(err, &validateErr)

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		profile, err := updater.UpdateProfile(r.Context(), identity.ID, models.ProfileUpdate{
			Name:       req.Name,
			Email:      req.Email,
			Phone:      req.Phone,
			Address:    req.Address,
			Department: req.Department,
		})
		if err != nil {
			resp.ServiceError(w, r, log, err)

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			User:     profile,
		})
	}
}

package register

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	resp "user_service/internal/lib/api/response"
	"user_service/internal/lib/logger/sl"
	"user_service/internal/models"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

type Response struct {
	resp.Response
	AccessToken  string               `json:"access_token"`
	RefreshToken string               `json:"refresh_token"`
	User         models.PublicAccount `json:"user"`
}

type Registerer interface {
	Register(ctx context.Context, name, email, password string) (models.Session, error)
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	registerer Registerer,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.register.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

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

			log.Info("invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		session, err := registerer.Register(r.Context(), req.Name, req.Email, req.Password)
		if err != nil {
			resp.ServiceError(w, r, log, err)

			return
		}

		log.Info("user registered", slog.Int64("uid", session.Account.ID))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{
			Response:     resp.OK(),
			AccessToken:  session.AccessToken,
			RefreshToken: session.RefreshToken,
			User:         session.Account,
		})
	}
}

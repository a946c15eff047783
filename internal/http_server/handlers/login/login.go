package login

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
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type Response struct {
	resp.Response
	AccessToken  string               `json:"access_token"`
	RefreshToken string               `json:"refresh_token"`
	User         models.PublicAccount `json:"user"`
}

type Loginer interface {
	Login(ctx context.Context, email, password string) (models.Session, error)
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	loginer Loginer,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.login.New"

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

		session, err := loginer.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			resp.ServiceError(w, r, log, err)

			return
		}

		log.Info("user logged in", slog.Int64("uid", session.Account.ID))

		render.JSON(w, r, Response{
			Response:     resp.OK(),
			AccessToken:  session.AccessToken,
			RefreshToken: session.RefreshToken,
			User:         session.Account,
		})
	}
}

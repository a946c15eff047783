// Package admin serves the admin console. Every handler here is mounted
// behind the authorization gate and RequireRole(admin).
package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"user_service/internal/http_server/middleware/authn"
	resp "user_service/internal/lib/api/response"
	"user_service/internal/lib/logger/sl"
	"user_service/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type AccountAdmin interface {
	List(ctx context.Context) ([]models.Profile, error)
	Profile(ctx context.Context, id int64) (models.Profile, error)
	UpdateRole(ctx context.Context, callerID, targetID int64, role models.Role) (models.Profile, error)
	SetStatus(ctx context.Context, callerID, targetID int64, status models.Status) (models.Profile, error)
	Delete(ctx context.Context, callerID, targetID int64) error
	Stats(ctx context.Context) (models.Stats, error)
}

type UserResponse struct {
	resp.Response
	User models.Profile `json:"user"`
}

type ListResponse struct {
	resp.Response
	Users []models.Profile `json:"users"`
}

type StatsResponse struct {
	resp.Response
	models.Stats
}

type RoleRequest struct {
	Role models.Role `json:"role" validate:"required,oneof=admin user"`
}

type StatusRequest struct {
	Status models.Status `json:"status" validate:"required,oneof=active inactive"`
}

func List(log *slog.Logger, svc AccountAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLog(log, r, "handlers.admin.List")

		users, err := svc.List(r.Context())
		if err != nil {
			resp.ServiceError(w, r, log, err)

			return
		}

		render.JSON(w, r, ListResponse{Response: resp.OK(), Users: users})
	}
}

func Get(log *slog.Logger, svc AccountAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLog(log, r, "handlers.admin.Get")

		id, ok := targetID(w, r)
		if !ok {
			return
		}

		user, err := svc.Profile(r.Context(), id)
		if err != nil {
			resp.ServiceError(w, r, log, err)

			return
		}

		render.JSON(w, r, UserResponse{Response: resp.OK(), User: user})
	}
}

func UpdateRole(log *slog.Logger, validate *validator.Validate, svc AccountAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLog(log, r, "handlers.admin.UpdateRole")

		caller, ok := callerID(w, r, log)
		if !ok {
			return
		}
		id, ok := targetID(w, r)
		if !ok {
			return
		}

		var req RoleRequest
		if !decode(w, r, log, validate, &req) {
			return
		}

		user, err := svc.UpdateRole(r.Context(), caller, id, req.Role)
		if err != nil {
			resp.ServiceError(w, r, log, err)

			return
		}

		render.JSON(w, r, UserResponse{Response: resp.OK(), User: user})
	}
}

func SetStatus(log *slog.Logger, validate *validator.Validate, svc AccountAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLog(log, r, "handlers.admin.SetStatus")

		caller, ok := callerID(w, r, log)
		if !ok {
			return
		}
		id, ok := targetID(w, r)
		if !ok {
			return
		}

		var req StatusRequest
		if !decode(w, r, log, validate, &req) {
			return
		}

		user, err := svc.SetStatus(r.Context(), caller, id, req.Status)
		if err != nil {
			resp.ServiceError(w, r, log, err)

			return
		}

		render.JSON(w, r, UserResponse{Response: resp.OK(), User: user})
	}
}

func Delete(log *slog.Logger, svc AccountAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLog(log, r, "handlers.admin.Delete")

		caller, ok := callerID(w, r, log)
		if !ok {
			return
		}
		id, ok := targetID(w, r)
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), caller, id); err != nil {
			resp.ServiceError(w, r, log, err)

			return
		}

		render.JSON(w, r, resp.OK())
	}
}

func Stats(log *slog.Logger, svc AccountAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLog(log, r, "handlers.admin.Stats")

		stats, err := svc.Stats(r.Context())
		if err != nil {
			resp.ServiceError(w, r, log, err)

			return
		}

		render.JSON(w, r, StatsResponse{Response: resp.OK(), Stats: stats})
	}
}

func requestLog(log *slog.Logger, r *http.Request, op string) *slog.Logger {
	return log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

func callerID(w http.ResponseWriter, r *http.Request, log *slog.Logger) (int64, bool) {
	identity, ok := authn.IdentityFromContext(r.Context())
	if !ok {
		resp.ServiceError(w, r, log, authn.ErrNoToken)
		return 0, false
	}

	return identity.ID, true
}

func targetID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp.Error("invalid user id"))
		return 0, false
	}

	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, log *slog.Logger, validate *validator.Validate, req any) bool {
	if err := render.DecodeJSON(r.Body, req); err != nil {
		log.Info("failed to decode request body", sl.Err(err))

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp.Error("failed to decode request"))

		return false
	}

	if err := validate.Struct(req); err != nil {
		var validateErr validator.ValidationErrors
		errors.As(err, &validateErr)

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp.ValidationError(validateErr))

		return false
	}

	return true
}

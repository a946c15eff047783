package response

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"user_service/internal/lib/apperr"
	"user_service/internal/lib/logger/sl"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
}

const (
	StatusOK    = "OK"
	StatusError = "Error"
)

func OK() Response {
	return Response{
		Status: StatusOK,
	}
}

func Error(msg string) Response {
	return Response{
		Status: StatusError,
		Error:  msg,
	}
}

func ValidationError(errs validator.ValidationErrors) Response {
	var errMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "email":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is not a valid email", err.Field()))
		case "oneof":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s must be one of: %s", err.Field(), err.Param()))
		case "max":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is too long", err.Field()))
		default:
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is not valid", err.Field()))
		}
	}

	return Response{
		Status: StatusError,
		Error:  strings.Join(errMsgs, ", "),
		Code:   "validation",
	}
}

// ServiceError renders err with the status its apperr kind maps to.
// Operational errors are logged and rendered as a generic 500.
func ServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status := apperr.HTTPStatus(err)

	body := Error(apperr.Message(err))
	if e, ok := apperr.As(err); ok {
		body.Code = e.Code
		log.Info("request rejected",
			slog.String("kind", e.Kind.String()),
			slog.String("code", e.Code),
		)
	} else {
		log.Error("internal error", sl.Err(err))
	}

	render.Status(r, status)
	render.JSON(w, r, body)
}

// Package authn holds the authorization gate, which turns a bearer access
// token into a models.Identity on the request context, and the role gate
// layered on top of it.
package authn

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	resp "user_service/internal/lib/api/response"
	"user_service/internal/lib/apperr"
	"user_service/internal/lib/jwt"
	"user_service/internal/models"

	"github.com/go-chi/chi/v5/middleware"
)

var (
	ErrNoToken                 = apperr.Auth("no_token", "no token")
	ErrInvalidToken            = apperr.Auth("invalid_token", "invalid token")
	ErrTokenExpired            = apperr.Auth("token_expired", "token expired")
	ErrInsufficientPermissions = apperr.Auth(apperr.CodeForbidden, "insufficient permissions")
)

type TokenParser interface {
	ParseAccessToken(token string) (models.Identity, error)
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, identity models.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	identity, ok := ctx.Value(ctxKey{}).(models.Identity)
	return identity, ok
}

// * New verifies the access token of every request. It never touches the
// datastore: a valid signature and expiry are enough.
func New(log *slog.Logger, parser TokenParser) func(http.Handler) http.Handler {
	log = log.With(slog.String("component", "middleware/authn"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := log.With(slog.String("request_id", middleware.GetReqID(r.Context())))

			token, ok := bearerToken(r)
			if !ok {
				resp.ServiceError(w, r, log, ErrNoToken)
				return
			}

			identity, err := parser.ParseAccessToken(token)
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					resp.ServiceError(w, r, log, ErrTokenExpired)
					return
				}

				resp.ServiceError(w, r, log, apperr.Wrap(ErrInvalidToken, err))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// * RequireRole lets the request through only if the identity's role is one
// of roles. It must be mounted after New.
func RequireRole(log *slog.Logger, roles ...models.Role) func(http.Handler) http.Handler {
	log = log.With(slog.String("component", "middleware/authn.RequireRole"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok || !slices.Contains(roles, identity.Role) {
				resp.ServiceError(w, r, log.With(
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.Int64("uid", identity.ID),
					slog.String("role", string(identity.Role)),
				), ErrInsufficientPermissions)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)

	return token, token != ""
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/zipdrop/zipdrop-backend/api/responses"
	pkgerrors "github.com/zipdrop/zipdrop-backend/pkg/errors"
	"github.com/zipdrop/zipdrop-backend/pkg/logger"
)

const (
	userIDHeader = "X-User-Id"
	roleHeader   = "X-Actor-Role"
)

// Actor reads the identity headers set by the auth gateway and seeds the
// request context. Requests without a valid user id are rejected.
func Actor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(userIDHeader))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			userID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id"))
				return
			}

			role := strings.TrimSpace(r.Header.Get(roleHeader))
			if role == "" {
				role = "customer"
			}

			ctx := WithUserID(r.Context(), userID.String())
			ctx = WithRole(ctx, role)

			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"user_id":    userID.String(),
					"actor_role": role,
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

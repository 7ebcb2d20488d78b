package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/zipdrop/zipdrop-backend/api/responses"
	pkgerrors "github.com/zipdrop/zipdrop-backend/pkg/errors"
	"github.com/zipdrop/zipdrop-backend/pkg/logger"
)

type rateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// OrderRateLimit throttles order placement per user. A zero limit or window
// disables the middleware. The limiter fails open: an unreachable counter
// store must not block checkout.
func OrderRateLimit(store rateLimiterStore, limit int, window time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || limit <= 0 || window <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID := UserIDFromContext(ctx)
			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed, count, err := store.FixedWindowAllow(ctx, "orders:place:"+userID, int64(limit), window)
			if err != nil {
				if logg != nil {
					logg.Warn(logg.WithUserID(ctx, userID), "rate limit store unavailable, allowing request")
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{
						"user_id":        userID,
						"attempts":       count,
						"limit":          limit,
						"window_seconds": int(window.Seconds()),
					})
					logg.Warn(logCtx, "order.rate_limit.blocked")
				}
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many orders, slow down"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

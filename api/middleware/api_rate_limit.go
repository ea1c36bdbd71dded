package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/sharedlists-backend/api/responses"
	pkgerrors "github.com/angelmondragon/sharedlists-backend/pkg/errors"
	"github.com/angelmondragon/sharedlists-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/sharedlists-backend/pkg/redis"
)

// FixedWindowStore counts one hit against scope.
type FixedWindowStore interface {
	FixedWindow(ctx context.Context, scope string, limit int64, window time.Duration) (pkgredis.Window, error)
}

// APIRateLimit throttles traffic per user, or per client IP before Auth has run.
func APIRateLimit(limit int, window time.Duration, store FixedWindowStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || limit <= 0 || window <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			scope := "api:ip:" + clientIP(r)
			if userID := UserIDFromContext(ctx); userID != uuid.Nil {
				scope = "api:user:" + userID.String()
			}

			win, err := store.FixedWindow(ctx, scope, int64(limit), window)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}

			resetIn := win.ResetIn
			if resetIn <= 0 || resetIn > window {
				resetIn = window
			}
			reset := strconv.Itoa(int(math.Ceil(resetIn.Seconds())))
			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(max(int64(limit)-win.Count, 0), 10))
			h.Set("X-RateLimit-Reset", reset)

			if !win.Allowed {
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{
						"scope":    scope,
						"attempts": win.Count,
						"limit":    limit,
						"reset_in": reset,
					}), "api.rate_limit.blocked")
				}
				h.Set("Retry-After", reset)
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "Too many requests, please try again later"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

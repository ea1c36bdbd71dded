package middleware

import (
	"net/http"

	"github.com/felixge/httpsnoop"

	"github.com/angelmondragon/sharedlists-backend/pkg/logger"
)

func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logg == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logg.WithFields(r.Context(), map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
			})
			logg.Info(ctx, "request.start")

			// httpsnoop keeps Hijacker intact for the websocket upgrade.
			m := httpsnoop.CaptureMetrics(next, w, r.WithContext(ctx))

			ctx = logg.WithFields(ctx, map[string]any{
				"status":      m.Code,
				"bytes":       m.Written,
				"duration_ms": m.Duration.Milliseconds(),
			})
			logg.Info(ctx, "request.complete")
		})
	}
}

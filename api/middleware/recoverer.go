package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/felixge/httpsnoop"

	"github.com/angelmondragon/sharedlists-backend/api/responses"
	pkgerrors "github.com/angelmondragon/sharedlists-backend/pkg/errors"
	"github.com/angelmondragon/sharedlists-backend/pkg/logger"
)

// Recoverer turns handler panics into a 500 envelope. Once headers are out, or
// the connection was hijacked for the live channel, there is nothing left to write.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var committed bool
			tracked := httpsnoop.Wrap(w, httpsnoop.Hooks{
				WriteHeader: func(inner httpsnoop.WriteHeaderFunc) httpsnoop.WriteHeaderFunc {
					return func(code int) {
						committed = true
						inner(code)
					}
				},
				Write: func(inner httpsnoop.WriteFunc) httpsnoop.WriteFunc {
					return func(b []byte) (int, error) {
						committed = true
						return inner(b)
					}
				},
				Hijack: func(inner httpsnoop.HijackFunc) httpsnoop.HijackFunc {
					committed = true
					return inner
				},
			})

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err := fmt.Errorf("panic: %v", rec)
				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithFields(ctx, map[string]any{
						"panic":     fmt.Sprint(rec),
						"stack":     string(debug.Stack()),
						"committed": committed,
					})
					logg.Error(ctx, "request.panic", err)
				}
				if !committed {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic"))
				}
			}()
			next.ServeHTTP(tracked, r)
		})
	}
}

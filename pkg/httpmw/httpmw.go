// Package httpmw provides middlewares for http handlers.
package httpmw

import (
	"context"
	"net/http"
	"time"

	"github.com/Semior001/pulse/pkg/logx"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

// RequestIDHeader is a header to read and write request id.
const RequestIDHeader = "X-Request-Id"

// RequestID is a middleware that adds request id to context and response headers.
// The id from the incoming header is reused only when it is a valid uuid.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if u, err := uuid.Parse(r.Header.Get(RequestIDHeader)); err == nil {
			id = u.String()
		} else {
			id = uuid.New().String()
		}

		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logx.ContextWithRequestID(r.Context(), id)))
	})
}

// Recover is a middleware that recovers from panics.
func Recover(lg *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					lg.ErrorCtx(r.Context(), "panic recovered", slog.Any("panic", rec))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// Logger is a middleware that logs all requests.
func Logger(lg *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", sw.status),
				slog.Duration("duration", time.Since(start)),
			}

			if lg.Handler().Enabled(r.Context(), slog.LevelDebug) {
				lg.DebugCtx(r.Context(), "request processed", append(args,
					slog.String("query", r.URL.RawQuery),
					slog.String("remote", r.RemoteAddr),
				)...)
				return
			}

			lg.InfoCtx(r.Context(), "request processed", args...)
		})
	}
}

// Timeout sets the timeout for the handler context, zero means no timeout.
// Handlers are expected to respect context cancellation.
func Timeout(dur time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if dur <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), dur)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

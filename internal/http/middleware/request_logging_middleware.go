package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RequestLogger emits one "http.request" line per request. Server errors log
// at error level and client errors at warn.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			routePattern := ""
			if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
				routePattern = routeCtx.RoutePattern()
			}

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"route", routePattern,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
				"request_id", chimiddleware.GetReqID(r.Context()),
				"client_ip", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			}

			l := logger
			if l == nil {
				l = slog.Default()
			}
			switch {
			case status >= http.StatusInternalServerError:
				l.ErrorContext(r.Context(), "http.request", attrs...)
			case status >= http.StatusBadRequest:
				l.WarnContext(r.Context(), "http.request", attrs...)
			default:
				l.InfoContext(r.Context(), "http.request", attrs...)
			}
		})
	}
}

// StructuredRequestLogger logs through slog.Default.
func StructuredRequestLogger(next http.Handler) http.Handler {
	return RequestLogger(nil)(next)
}

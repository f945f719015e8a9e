package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// logFieldsKey is the context key for the per-request log annotations.
const logFieldsKey contextKey = "log_fields"

// logFields collects attributes that become known only while the request is
// being handled, such as the authenticated admin. Logger plants a holder in
// the context before calling the next handler; downstream middleware fills
// it in.
type logFields struct {
	adminID int64
}

// annotateAdmin records the authenticated admin on the request's log line.
// A no-op when the request is not going through Logger.
func annotateAdmin(ctx context.Context, adminID int64) {
	if f, ok := ctx.Value(logFieldsKey).(*logFields); ok {
		f.adminID = adminID
	}
}

// Logger returns an HTTP middleware that logs every completed request:
// method, path, status, response size, duration, request ID, remote address,
// and the admin ID when the request was authenticated.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			fields := &logFields{}
			r = r.WithContext(context.WithValue(r.Context(), logFieldsKey, fields))

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if ww.status >= 500 {
				level = slog.LevelError
			} else if ww.status >= 400 {
				level = slog.LevelWarn
			}

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.status,
				"duration_ms", float64(duration.Microseconds()) / 1000.0,
				"bytes", ww.bytes,
				"request_id", GetRequestID(r.Context()),
				"remote_addr", r.RemoteAddr,
			}
			if fields.adminID != 0 {
				attrs = append(attrs, "admin_id", fields.adminID)
			}
			logger.Log(r.Context(), level, "request", attrs...)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code and
// bytes written for logging purposes.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap returns the underlying ResponseWriter, required for http.Flusher
// and other interface assertions through middleware chains.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

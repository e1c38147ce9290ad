package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/divvyup/divvy/internal/metrics"
)

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// identityNote is installed by Logging and filled in by the auth middleware,
// which attaches identity to an inner request the outer access log never
// sees. The shared note carries it back out.
type identityNote struct {
	accountID string
}

const identityNoteKey contextKey = "identity_note"

func noteIdentity(ctx context.Context, accountID string) {
	if note, ok := ctx.Value(identityNoteKey).(*identityNote); ok {
		note.accountID = accountID
	}
}

// Logging logs every request with method, path, status, caller and duration,
// and records the request counters and duration histogram. Metrics are
// labeled with the matched route pattern, not the raw path, so ID-bearing
// routes stay one series.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		note := &identityNote{}
		r = r.WithContext(context.WithValue(r.Context(), identityNoteKey, note))

		next.ServeHTTP(rec, r)

		duration := time.Since(start)

		// The pattern is only known after routing has run.
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		metrics.HTTPRequestsTotal.WithLabelValues(
			r.Method, route, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDurationSeconds.WithLabelValues(
			r.Method, route).Observe(duration.Seconds())

		if rec.status >= 500 {
			slog.Error("request failed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"account_id", note.accountID,
				"duration_ms", duration.Milliseconds(),
			)
		} else {
			slog.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"account_id", note.accountID,
				"duration_ms", duration.Milliseconds(),
			)
		}
	})
}

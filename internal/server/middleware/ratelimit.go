package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit returns an HTTP middleware that limits requests per client IP
// to the specified number per minute, using an in-process sliding window.
// The window lives in ordinary process memory: it is not shared across
// instances and resets on restart, so it is a best-effort deterrent rather
// than a hard guarantee.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.LimitByIP(requestsPerMinute, time.Minute)
}

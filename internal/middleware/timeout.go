package middleware

import (
	"context"
	"net/http"
	"time"
)

// DefaultRequestTimeout applies when no timeout is configured
const DefaultRequestTimeout = 30 * time.Second

// Timeout bounds each request: the context is cancelled at the deadline and
// http.TimeoutHandler answers 503 if the handler has not finished writing.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		guarded := http.TimeoutHandler(next, timeout, "Request Timeout")
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			guarded.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

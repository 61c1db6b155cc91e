package middleware

import (
	"net/http"
	"time"

	"github.com/hindsight-io/hindsight/internal/metrics"
)

// Metrics returns middleware that records request counts and latencies.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			m.ObserveHTTP(r.Method, rw.statusCode, time.Since(start))
		})
	}
}

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/meridian-energy/horizon.plan/internal/metrics"
)

// loggingResponseWriter captures the status code for request logging.
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if f, ok := lrw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

const (
	colorReset     = "\033[0m"
	colorCyan      = "\033[36m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

func statusCodeColor(code int) string {
	switch {
	case code < 300:
		return colorBoldGreen
	case code < 400:
		return colorCyan
	case code < 500:
		return colorYellow
	default:
		return colorBoldRed
	}
}

// routeLabel collapses request paths onto a small fixed label set so the
// request counter stays low-cardinality.
func routeLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/runs/"):
		return "/api/runs/{id}"
	case strings.HasPrefix(path, "/charts/"):
		return "/charts/{scenario}"
	case strings.HasPrefix(path, "/debug/"):
		return "/debug"
	default:
		return path
	}
}

// LoggingMiddleware logs every request with its method, path, status,
// and duration, and feeds the request counter.
func (s *Server) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)
		elapsed := time.Since(start)

		metrics.RecordAPIRequest(routeLabel(r.URL.Path), lrw.statusCode)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", lrw.statusCode).
			Dur("elapsed", elapsed).
			Msgf("%s%d%s %s %s", statusCodeColor(lrw.statusCode), lrw.statusCode, colorReset, r.Method, r.URL.Path)
	})
}

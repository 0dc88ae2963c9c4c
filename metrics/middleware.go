package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

var recordHTTPRequest = RecordHTTPRequest

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps server-sent event streams working through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware records request counts and latencies per normalized endpoint.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		recordHTTPRequest(r.Method, normalizeEndpoint(r.URL.Path), strconv.Itoa(wrapped.statusCode), time.Since(start))
	})
}

// normalizeEndpoint collapses IDs so label cardinality stays bounded.
func normalizeEndpoint(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/tasks/"):
		rest := strings.TrimPrefix(path, "/api/tasks/")
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			return "/api/tasks/:id" + rest[i:]
		}
		return "/api/tasks/:id"
	case strings.HasPrefix(path, "/api/schedule/") && path != "/api/schedule/teaching":
		return "/api/schedule/:id"
	case strings.HasPrefix(path, "/api/"), path == "/events", path == "/metrics", path == "/healthz":
		return path
	default:
		return "other"
	}
}

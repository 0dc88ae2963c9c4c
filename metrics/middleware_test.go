package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type metricRecord struct {
	method   string
	endpoint string
	status   string
}

func setupMock(t *testing.T) *[]metricRecord {
	var records []metricRecord
	original := recordHTTPRequest
	recordHTTPRequest = func(method, endpoint, status string, _ time.Duration) {
		records = append(records, metricRecord{method, endpoint, status})
	}
	t.Cleanup(func() { recordHTTPRequest = original })
	return &records
}

func TestMiddleware_RecordsStatus(t *testing.T) {
	records := setupMock(t)

	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/tasks/3f2a", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, *records, 1)
	assert.Equal(t, metricRecord{"GET", "/api/tasks/:id", "404"}, (*records)[0])
}

func TestMiddleware_DefaultStatusOK(t *testing.T) {
	records := setupMock(t)

	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Len(t, *records, 1)
	assert.Equal(t, "200", (*records)[0].status)
}

func TestMiddleware_PreservesFlusher(t *testing.T) {
	setupMock(t)

	var flushable bool
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, flushable = w.(http.Flusher)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/events", nil))
	assert.True(t, flushable)
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := map[string]string{
		"/api/tasks":                 "/api/tasks",
		"/api/tasks/abc":             "/api/tasks/:id",
		"/api/tasks/abc/complete":    "/api/tasks/:id/complete",
		"/api/schedule/42":           "/api/schedule/:id",
		"/api/schedule/teaching":     "/api/schedule/teaching",
		"/api/recommendations/daily": "/api/recommendations/daily",
		"/events":                    "/events",
		"/favicon.ico":               "other",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeEndpoint(in), in)
	}
}

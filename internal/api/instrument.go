package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/samcharles93/tokenscope/internal/metrics"
)

// Instrument records request counts and latency for every request that
// reaches next. Non-API paths share one label.
func Instrument(next http.Handler, m *metrics.Collector) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		m.RecordHTTPRequest(r.Method, routeLabel(r.URL.Path), rec.status, time.Since(start))
	})
}

func routeLabel(path string) string {
	switch path {
	case "/api/session", "/api/sources", "/api/tokenizer", "/api/tokenize", "/api/encode", "/api/decode", "/healthz", "/metrics":
		return path
	}
	if strings.HasPrefix(path, "/api/") {
		return "/api/other"
	}
	return "static"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// findMetric returns the series of c whose labels include every pair in
// labels, or nil.
func findMetric(c prometheus.Collector, labels map[string]string) *dto.Metric {
	ch := make(chan prometheus.Metric, 100)
	c.Collect(ch)
	close(ch)

	for m := range ch {
		d := &dto.Metric{}
		if err := m.Write(d); err != nil {
			continue
		}
		have := make(map[string]string, len(d.GetLabel()))
		for _, lp := range d.GetLabel() {
			have[lp.GetName()] = lp.GetValue()
		}
		match := true
		for k, v := range labels {
			if have[k] != v {
				match = false
				break
			}
		}
		if match {
			return d
		}
	}
	return nil
}

// metricsRouter mounts handler on the user lookup route behind the metrics
// middleware for service.
func metricsRouter(service string, handler http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics(service))
	r.Get("/api/v1/users/{id}", handler)
	return r
}

func TestPrometheusMetrics_CountsByRoutePattern(t *testing.T) {
	h := metricsRouter("metrics-pattern", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, id := range []string{"u-1", "u-2", "u-3"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/users/"+id, nil))
	}

	m := findMetric(httpRequestsTotal, map[string]string{
		"service": "metrics-pattern", "method": "GET", "path": "/api/v1/users/{id}", "status": "200",
	})
	require.NotNil(t, m)
	assert.Equal(t, float64(3), m.GetCounter().GetValue())

	hist := findMetric(httpRequestDuration, map[string]string{"service": "metrics-pattern", "status": "200"})
	require.NotNil(t, hist)
	assert.Equal(t, uint64(3), hist.GetHistogram().GetSampleCount())
}

func TestPrometheusMetrics_ResponseSize(t *testing.T) {
	body := `{"message":"User fetched successfully!"}`
	h := metricsRouter("metrics-size", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	})

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/users/u-1", nil))

	m := findMetric(httpResponseSize, map[string]string{"service": "metrics-size", "path": "/api/v1/users/{id}"})
	require.NotNil(t, m)
	assert.Equal(t, uint64(1), m.GetHistogram().GetSampleCount())
	assert.Equal(t, float64(len(body)), m.GetHistogram().GetSampleSum())
}

func TestPrometheusMetrics_StatusLabel(t *testing.T) {
	tests := []struct {
		service string
		handler http.HandlerFunc
		status  string
	}{
		{"metrics-404", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) }, "404"},
		{"metrics-403", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusForbidden) }, "403"},
		{"metrics-500", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) }, "500"},
		{"metrics-implicit", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("{}")) }, "200"},
	}

	for _, tt := range tests {
		t.Run(tt.service, func(t *testing.T) {
			metricsRouter(tt.service, tt.handler).ServeHTTP(httptest.NewRecorder(),
				httptest.NewRequest(http.MethodGet, "/api/v1/users/u-1", nil))

			m := findMetric(httpRequestsTotal, map[string]string{"service": tt.service, "status": tt.status})
			require.NotNil(t, m)
			assert.Equal(t, float64(1), m.GetCounter().GetValue())
		})
	}
}

func TestPrometheusMetrics_UnmatchedRoute(t *testing.T) {
	h := metricsRouter("metrics-unmatched", func(w http.ResponseWriter, r *http.Request) {})

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	m := findMetric(httpRequestsTotal, map[string]string{"service": "metrics-unmatched", "status": "404"})
	require.NotNil(t, m)
	assert.NotEqual(t, "/nowhere", labelValue(m, "path"), "raw paths never become label values")
}

func TestPrometheusMetrics_InFlightGauge(t *testing.T) {
	var during float64 = -1
	h := metricsRouter("metrics-inflight", func(w http.ResponseWriter, r *http.Request) {
		if m := findMetric(httpRequestsInFlight, map[string]string{"service": "metrics-inflight"}); m != nil {
			during = m.GetGauge().GetValue()
		}
	})

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/users/u-1", nil))

	assert.Equal(t, float64(1), during)
	m := findMetric(httpRequestsInFlight, map[string]string{"service": "metrics-inflight"})
	require.NotNil(t, m)
	assert.Equal(t, float64(0), m.GetGauge().GetValue())
}

func TestStatusWriter_UnwrapAndBytes(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := newStatusWriter(rec)
	n, err := sw.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 5, sw.bytes)
	assert.Equal(t, http.StatusOK, sw.statusCode)
	assert.Same(t, rec, sw.Unwrap())

	sw.WriteHeader(http.StatusTeapot) // ignored after body write
	assert.Equal(t, http.StatusOK, sw.statusCode)
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

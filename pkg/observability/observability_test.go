package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.RecordHTTPRequest("GET", "/health", 200, time.Millisecond, 10, 20)
	assert.Equal(t, http.StatusServiceUnavailable, requestStatus(t, m.Handler()))
	assert.Nil(t, m.Registry())
}

func TestNewMetricsDisabledReturnsNil(t *testing.T) {
	m, err := NewMetrics(&MetricsConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestNewMetricsRecordsHTTPRequest(t *testing.T) {
	m, err := NewMetrics(&MetricsConfig{Enabled: true})
	require.NoError(t, err)
	require.NotNil(t, m)

	m.RecordHTTPRequest("POST", "/agents/stream", 201, 5*time.Millisecond, 128, 256)
	assert.NotNil(t, m.Registry())
}

func TestStatusCodeLabel(t *testing.T) {
	cases := map[int]string{200: "2xx", 301: "3xx", 404: "4xx", 500: "5xx", 0: "unknown"}
	for code, want := range cases {
		assert.Equal(t, want, statusCodeLabel(code))
	}
}

func TestTracerNilSafeStart(t *testing.T) {
	var tracer *Tracer
	ctx, span := tracer.Start(t.Context(), SpanHTTPRequest)
	assert.NotNil(t, ctx)
	assert.NotNil(t, span)
	tracer.RecordError(span, nil)
	assert.False(t, tracer.CapturePayloads())
	assert.Nil(t, tracer.DebugExporter())
	require.NoError(t, tracer.Shutdown(t.Context()))
}

func TestDebugExporterCapturesHTTPSpansOnly(t *testing.T) {
	e := NewDebugExporter()
	assert.True(t, e.shouldCapture(SpanHTTPRequest))
	assert.False(t, e.shouldCapture("some.other.span"))
	assert.Equal(t, 0, e.Count())
}

func TestHTTPMiddlewareRecordsMetrics(t *testing.T) {
	m, err := NewMetrics(&MetricsConfig{Enabled: true})
	require.NoError(t, err)

	handler := HTTPMiddleware(nil, m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func requestStatus(t *testing.T, h http.Handler) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Code
}

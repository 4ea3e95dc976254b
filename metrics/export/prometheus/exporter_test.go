package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/authsvc"
)

type staticSource authsvc.MetricsSnapshot

func (s staticSource) MetricsSnapshot() authsvc.MetricsSnapshot { return authsvc.MetricsSnapshot(s) }

func emptySource() staticSource {
	return staticSource{
		Counters:   map[authsvc.MetricID]uint64{},
		Histograms: map[authsvc.MetricID]authsvc.HistogramSnapshot{},
	}
}

func TestRenderEmptyWhenDisabled(t *testing.T) {
	if got := NewPrometheusExporter(emptySource()).Render(); got != "" {
		t.Fatalf("expected no output, got:\n%s", got)
	}
}

func TestRenderCountersAndHistogram(t *testing.T) {
	src := emptySource()
	src.Counters[authsvc.MetricLoginSuccess] = 7
	src.Counters[authsvc.MetricRefreshSuccess] = 3
	src.Histograms[authsvc.MetricValidateLatency] = authsvc.HistogramSnapshot{
		Buckets: []uint64{1, 2, 3, 0, 0, 0, 0, 4},
		Count:   10,
		Sum:     1500 * time.Millisecond,
	}

	out := NewPrometheusExporter(src).Render()
	for _, want := range []string{
		"# TYPE authsvc_login_success_total counter",
		"authsvc_login_success_total 7",
		"authsvc_refresh_success_total 3",
		"authsvc_logout_total 0",
		"# TYPE authsvc_validate_latency_seconds histogram",
		`authsvc_validate_latency_seconds_bucket{le="0.005"} 1`,
		`authsvc_validate_latency_seconds_bucket{le="0.025"} 6`,
		`authsvc_validate_latency_seconds_bucket{le="+Inf"} 10`,
		"authsvc_validate_latency_seconds_sum 1.5",
		"authsvc_validate_latency_seconds_count 10",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "authsvc_login_latency_seconds") {
		t.Fatalf("absent histogram must not be rendered:\n%s", out)
	}
}

func TestRenderFromLiveMetrics(t *testing.T) {
	m := authsvc.NewMetrics(authsvc.MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Inc(authsvc.MetricLogout)
	m.Add(authsvc.MetricSessionInvalidated, 4)
	m.Observe(authsvc.MetricLoginLatency, 30*time.Millisecond)

	out := NewPrometheusExporter(liveSource{m}).Render()
	for _, want := range []string{
		"authsvc_logout_total 1",
		"authsvc_session_invalidated_total 4",
		`authsvc_login_latency_seconds_bucket{le="0.025"} 0`,
		`authsvc_login_latency_seconds_bucket{le="0.05"} 1`,
		"authsvc_login_latency_seconds_count 1",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

type liveSource struct{ m *authsvc.Metrics }

func (l liveSource) MetricsSnapshot() authsvc.MetricsSnapshot { return l.m.Snapshot() }

func TestHandlerContentType(t *testing.T) {
	src := emptySource()
	src.Counters[authsvc.MetricLoginSuccess] = 1

	rec := httptest.NewRecorder()
	NewPrometheusExporter(src).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/plain") {
		t.Fatalf("unexpected content type %q", got)
	}
	if !strings.Contains(rec.Body.String(), "authsvc_login_success_total 1") {
		t.Fatalf("body missing counter:\n%s", rec.Body.String())
	}
}

func BenchmarkRender(b *testing.B) {
	src := emptySource()
	for _, id := range authsvc.Counters() {
		src.Counters[id] = uint64(id) * 100
	}
	for _, id := range authsvc.Histograms() {
		src.Histograms[id] = authsvc.HistogramSnapshot{Buckets: make([]uint64, len(authsvc.LatencyBuckets)+1)}
	}
	exp := NewPrometheusExporter(src)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}

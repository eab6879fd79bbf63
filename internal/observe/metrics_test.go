package observe

import (
	"context"
	"net/http"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumFor returns the value of the data point of the named sum whose attribute
// key equals val.
func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name, key, val string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not a sum", name)
	}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.Emit() == val {
			return dp.Value
		}
	}
	t.Fatalf("metric %q: no data point with %s=%s", name, key, val)
	return 0
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestRecordStage(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordStage(ctx, "transcribed", 1200*time.Millisecond)
	m.RecordStage(ctx, "transcribed", 800*time.Millisecond)

	rm := collect(t, reader)
	met := findMetric(rm, "sitereport.pipeline.stage.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) != 1 {
		t.Fatalf("got %d data points, want 1", len(hist.DataPoints))
	}
	if got := hist.DataPoints[0].Count; got != 2 {
		t.Errorf("sample count = %d, want 2", got)
	}
	if got := hist.DataPoints[0].Sum; got < 1.99 || got > 2.01 {
		t.Errorf("sum = %v, want 2", got)
	}
}

func TestCounterIncrement(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderRequest(ctx, "openai", "llm", "ok")
	m.RecordProviderRequest(ctx, "openai", "llm", "ok")
	m.RecordProviderRequest(ctx, "openai", "llm", "error")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "sitereport.provider.requests", "status", "ok"); got != 2 {
		t.Errorf("ok requests = %d, want 2", got)
	}
	if got := sumFor(t, rm, "sitereport.provider.requests", "status", "error"); got != 1 {
		t.Errorf("error requests = %d, want 1", got)
	}
}

func TestRecordExtraction(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordExtraction(ctx, "tour_securite", "json", false, "")
	m.RecordExtraction(ctx, "tour_securite", "", true, "transport")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "sitereport.extraction.outcomes", "reason", "transport"); got != 1 {
		t.Errorf("transport degradations = %d, want 1", got)
	}
	if got := sumFor(t, rm, "sitereport.extraction.outcomes", "method", "json"); got != 1 {
		t.Errorf("json extractions = %d, want 1", got)
	}
}

func TestRunAndExportCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordRun(ctx, "atomic", "ok")
	m.RecordRun(ctx, "staged", "transcription_error")
	m.RecordExport(ctx, "pdf", "ok")
	m.RecordBreakerTransition(ctx, "deepgram", "open")
	m.RecordProviderError(ctx, "deepgram", "stt")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "sitereport.pipeline.runs", "mode", "staged"); got != 1 {
		t.Errorf("staged runs = %d, want 1", got)
	}
	if got := sumFor(t, rm, "sitereport.export.total", "format", "pdf"); got != 1 {
		t.Errorf("pdf exports = %d, want 1", got)
	}
	if got := sumFor(t, rm, "sitereport.breaker.transitions", "to", "open"); got != 1 {
		t.Errorf("open transitions = %d, want 1", got)
	}
	if got := sumFor(t, rm, "sitereport.provider.errors", "provider", "deepgram"); got != 1 {
		t.Errorf("provider errors = %d, want 1", got)
	}
}

func TestActiveRuns(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveRuns.Add(ctx, 1)
	m.ActiveRuns.Add(ctx, 1)
	m.ActiveRuns.Add(ctx, -1)

	rm := collect(t, reader)
	met := findMetric(rm, "sitereport.pipeline.active_runs")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}
	if len(sum.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := sum.DataPoints[0].Value; got != 1 {
		t.Errorf("active runs = %d, want 1", got)
	}
}

func TestHTTPRequestDuration(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordHTTPRequest(ctx, "GET", "GET /healthz", http.StatusServiceUnavailable, 50*time.Millisecond)

	rm := collect(t, reader)
	met := findMetric(rm, "sitereport.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := hist.DataPoints[0].Count; got != 1 {
		t.Errorf("sample count = %d, want 1", got)
	}
	if v, _ := hist.DataPoints[0].Attributes.Value("status_class"); v.AsString() != "5xx" {
		t.Errorf("status_class = %q, want 5xx", v.AsString())
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}

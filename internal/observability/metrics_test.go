package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/x", "200", time.Millisecond)
	m.IncBusDropped("card_added")
	m.AddBusSubscribers("card_added", 1)
	if got := m.BusDropped("card_added"); got != 0 {
		t.Fatalf("nil metrics should report zero, got %v", got)
	}
	if err := m.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("nil write: %v", err)
	}
}

func TestWritePrometheusIsSortedAndEscaped(t *testing.T) {
	m := NewMetrics()
	m.ObserveStoreOperation("redis", "update_retro", "ok", 3*time.Millisecond)
	m.ObserveStoreOperation("memory", "get_retro", "not_found", time.Millisecond)
	m.IncBusPublished("step_changed")
	m.IncBusPublished("card_added")
	m.ObserveAPI("GET", `/a"b`, "200", time.Millisecond)

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()

	memIdx := strings.Index(out, `retro_store_operations_total{backend="memory"`)
	redisIdx := strings.Index(out, `retro_store_operations_total{backend="redis"`)
	if memIdx < 0 || redisIdx < 0 || memIdx > redisIdx {
		t.Fatalf("store series missing or unsorted:\n%s", out)
	}
	if !strings.Contains(out, `route="/a\"b"`) {
		t.Fatalf("label not escaped:\n%s", out)
	}
	if !strings.Contains(out, `retro_store_operation_duration_seconds_bucket{backend="redis",operation="update_retro",le="+Inf"} 1`) {
		t.Fatalf("histogram +Inf bucket missing:\n%s", out)
	}
	if got := m.StoreOperations("memory", "get_retro", "not_found"); got != 1 {
		t.Fatalf("expected 1 store op, got %v", got)
	}
}

func TestHistogramBuckets(t *testing.T) {
	h := NewHistogramVec("h", "help", []string{"op"}, []float64{0.1, 1})
	h.Observe(0.05, "a")
	h.Observe(0.5, "a")
	h.Observe(5, "a")
	if got := h.Count("a"); got != 3 {
		t.Fatalf("expected 3 observations, got %d", got)
	}
	var buf bytes.Buffer
	if err := h.WritePrometheus(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	for _, want := range []string{
		`h_bucket{op="a",le="0.1"} 1`,
		`h_bucket{op="a",le="1"} 2`,
		`h_bucket{op="a",le="+Inf"} 3`,
	} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("missing %q in:\n%s", want, buf.String())
		}
	}
}

func TestLabelStringDefaultsMissingValues(t *testing.T) {
	if got := labelString([]string{"a", "b"}, []string{"x"}); got != `{a="x",b="unknown"}` {
		t.Fatalf("unexpected labels %s", got)
	}
	if got := labelString(nil, nil); got != "" {
		t.Fatalf("expected empty labels, got %q", got)
	}
}

package metrics

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestCounter(t *testing.T) {
	// Kept out of the default registry
	c := &Counter{desc: desc{"test_counter", "A test counter"}}

	if c.Value() != 0 {
		t.Errorf("initial value = %d, want 0", c.Value())
	}

	c.Inc()
	c.Add(5)
	if c.Value() != 6 {
		t.Errorf("after Inc()+Add(5) = %d, want 6", c.Value())
	}

	var sb strings.Builder
	c.render(&sb)
	out := sb.String()
	if !strings.Contains(out, "# TYPE test_counter counter") {
		t.Error("missing TYPE line")
	}
	if !strings.Contains(out, "test_counter 6") {
		t.Errorf("missing value line, got: %s", out)
	}
}

func TestGauge(t *testing.T) {
	g := &Gauge{desc: desc{"test_gauge", "A test gauge"}}

	g.Set(10)
	g.Add(1)
	g.Add(-6)
	if g.Value() != 5 {
		t.Errorf("value = %d, want 5", g.Value())
	}

	var sb strings.Builder
	g.render(&sb)
	if !strings.Contains(sb.String(), "# HELP test_gauge A test gauge") {
		t.Error("missing HELP line")
	}
}

func TestHistogram(t *testing.T) {
	h := newHistogram("test_histogram", "A test histogram", []float64{0.1, 0.5, 1.0, 5.0})

	h.Observe(0.05)
	h.Observe(0.5) // on a bound
	h.Observe(0.3)
	h.Observe(0.8)
	h.Observe(3.0)
	h.Observe(10.0) // exceeds all buckets

	if h.Count() != 6 {
		t.Errorf("Count() = %d, want 6", h.Count())
	}

	var sb strings.Builder
	h.render(&sb)
	out := sb.String()
	if !strings.Contains(out, `test_histogram_bucket{le="0.1"} 1`) {
		t.Errorf("wrong 0.1 bucket count, got: %s", out)
	}
	if !strings.Contains(out, `test_histogram_bucket{le="0.5"} 3`) {
		t.Errorf("wrong 0.5 bucket count, got: %s", out)
	}
	if !strings.Contains(out, `test_histogram_bucket{le="5"} 5`) {
		t.Errorf("wrong 5 bucket count, got: %s", out)
	}
	if !strings.Contains(out, `test_histogram_bucket{le="+Inf"} 6`) {
		t.Errorf("wrong +Inf bucket count, got: %s", out)
	}
}

func TestTimer(t *testing.T) {
	h := newHistogram("timer_histogram", "", DefaultLatencyBuckets)

	timer := NewTimer(h)
	time.Sleep(time.Millisecond)
	d := timer.ObserveDuration()

	if d < time.Millisecond {
		t.Errorf("duration = %v, want >= 1ms", d)
	}
	if h.Count() != 1 {
		t.Errorf("Count() = %d, want 1", h.Count())
	}

	// A nil histogram only measures.
	if NewTimer(nil).ObserveDuration() < 0 {
		t.Error("negative duration")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	g := &Gauge{desc: desc{"reg_gauge", "A gauge"}}
	c := &Counter{desc: desc{"reg_counter", "A counter"}}
	r.add(g)
	r.add(c)

	c.Inc()
	g.Set(42)

	out := r.Expose()
	if !strings.Contains(out, "reg_counter 1") {
		t.Errorf("missing counter in output: %s", out)
	}
	if !strings.Contains(out, "reg_gauge 42") {
		t.Errorf("missing gauge in output: %s", out)
	}
	if strings.Index(out, "reg_counter") > strings.Index(out, "reg_gauge") {
		t.Error("metrics should be sorted by name")
	}
}

func TestWriteTo(t *testing.T) {
	oldRegistry := defaultRegistry
	defaultRegistry = NewRegistry()
	defer func() { defaultRegistry = oldRegistry }()

	NewCounter("dump_test_counter", "Test counter").Add(100)

	var buf bytes.Buffer
	if err := WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	if !strings.Contains(buf.String(), "dump_test_counter 100") {
		t.Errorf("missing counter in dump: %s", buf.String())
	}
	if Expose() != buf.String() {
		t.Error("Expose() should match WriteTo output")
	}
}

func TestRecordStartTime(t *testing.T) {
	RecordStartTime()

	if StartTime.Value() == 0 {
		t.Error("StartTime should be non-zero after RecordStartTime()")
	}
}

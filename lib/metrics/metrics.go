// Package metrics provides in-process instrumentation for handlepool.
// Values are kept in a registry and rendered in the Prometheus text format
// for diagnostics dumps; nothing is served over the network.
package metrics

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultLatencyBuckets are histogram buckets, in seconds, suited to
// handle acquisition and creation latencies.
var DefaultLatencyBuckets = []float64{
	0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30,
}

type metric interface {
	metricName() string
	render(sb *strings.Builder)
}

// desc is the identity shared by every metric kind.
type desc struct {
	name string
	help string
}

func (d desc) metricName() string { return d.name }

func (d desc) header(sb *strings.Builder, kind string) {
	fmt.Fprintf(sb, "# HELP %s %s\n# TYPE %s %s\n", d.name, d.help, d.name, kind)
}

// Counter only goes up.
type Counter struct {
	desc
	n atomic.Uint64
}

// NewCounter creates a counter in the default registry.
func NewCounter(name, help string) *Counter {
	return register(&Counter{desc: desc{name, help}})
}

// Inc adds one.
func (c *Counter) Inc() { c.n.Add(1) }

// Add adds v.
func (c *Counter) Add(v uint64) { c.n.Add(v) }

// Value returns the current count.
func (c *Counter) Value() uint64 { return c.n.Load() }

func (c *Counter) render(sb *strings.Builder) {
	c.header(sb, "counter")
	fmt.Fprintf(sb, "%s %d\n", c.name, c.Value())
}

// Gauge holds a value that is overwritten or adjusted.
type Gauge struct {
	desc
	v atomic.Int64
}

// NewGauge creates a gauge in the default registry.
func NewGauge(name, help string) *Gauge {
	return register(&Gauge{desc: desc{name, help}})
}

// Set replaces the value.
func (g *Gauge) Set(v int64) { g.v.Store(v) }

// Add adjusts the value by delta, which may be negative.
func (g *Gauge) Add(delta int64) { g.v.Add(delta) }

// Value returns the current value.
func (g *Gauge) Value() int64 { return g.v.Load() }

func (g *Gauge) render(sb *strings.Builder) {
	g.header(sb, "gauge")
	fmt.Fprintf(sb, "%s %d\n", g.name, g.Value())
}

// Histogram counts observations into cumulative buckets.
type Histogram struct {
	desc
	bounds []float64

	mu     sync.Mutex
	counts []uint64 // counts[i] observations <= bounds[i]
	total  uint64
	sum    float64
}

func newHistogram(name, help string, bounds []float64) *Histogram {
	return &Histogram{
		desc:   desc{name, help},
		bounds: bounds,
		counts: make([]uint64, len(bounds)),
	}
}

// NewHistogram creates a histogram in the default registry. bounds must be
// sorted ascending.
func NewHistogram(name, help string, bounds []float64) *Histogram {
	return register(newHistogram(name, help, bounds))
}

// Observe records v.
func (h *Histogram) Observe(v float64) {
	first, _ := slices.BinarySearch(h.bounds, v)

	h.mu.Lock()
	defer h.mu.Unlock()
	for i := first; i < len(h.counts); i++ {
		h.counts[i]++
	}
	h.total++
	h.sum += v
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total
}

func (h *Histogram) render(sb *strings.Builder) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.header(sb, "histogram")
	for i, le := range h.bounds {
		fmt.Fprintf(sb, "%s_bucket{le=\"%g\"} %d\n", h.name, le, h.counts[i])
	}
	fmt.Fprintf(sb, "%s_bucket{le=\"+Inf\"} %d\n%s_sum %g\n%s_count %d\n",
		h.name, h.total, h.name, h.sum, h.name, h.total)
}

// Timer measures an elapsed duration into a histogram.
type Timer struct {
	h     *Histogram
	start time.Time
}

// NewTimer starts a timer that reports to h. A nil h only measures.
func NewTimer(h *Histogram) *Timer {
	return &Timer{h: h, start: time.Now()}
}

// ObserveDuration records the time since the timer started and returns it.
func (t *Timer) ObserveDuration() time.Duration {
	d := time.Since(t.start)
	if t.h != nil {
		t.h.Observe(d.Seconds())
	}
	return d
}

// Registry holds metrics keyed by name. Registering a name again replaces
// the earlier metric.
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]metric
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{metrics: make(map[string]metric)}
}

var defaultRegistry = NewRegistry()

func (r *Registry) add(m metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics[m.metricName()] = m
}

func register[M metric](m M) M {
	defaultRegistry.add(m)
	return m
}

// Expose renders every metric in the Prometheus text format, sorted by name.
func (r *Registry) Expose() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sb strings.Builder
	for _, name := range slices.Sorted(maps.Keys(r.metrics)) {
		r.metrics[name].render(&sb)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Expose renders the default registry.
func Expose() string {
	return defaultRegistry.Expose()
}

// WriteTo dumps the default registry to w.
func WriteTo(w io.Writer) error {
	_, err := io.WriteString(w, defaultRegistry.Expose())
	return err
}

// StartTime is the unix time at which the process recorded its start.
var StartTime = NewGauge("handlepool_start_time_seconds", "Unix timestamp when the process started")

// RecordStartTime records the current time as the start time.
func RecordStartTime() {
	StartTime.Set(time.Now().Unix())
}

// Package metrics is a small Prometheus-text-format metrics registry built
// on the standard library. Counters, gauges, and histograms are grouped
// into families; each distinct label set within a family is its own series.
// Exposition is served from a /metrics endpoint.
package metrics

import (
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBuckets are the default histogram buckets, in seconds.
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Counter only goes up.
type Counter struct{ v atomic.Int64 }

func (c *Counter) Inc()         { c.v.Add(1) }
func (c *Counter) Add(n int64)  { c.v.Add(n) }
func (c *Counter) Value() int64 { return c.v.Load() }

// Gauge goes up and down.
type Gauge struct{ v atomic.Int64 }

func (g *Gauge) Set(n int64)  { g.v.Store(n) }
func (g *Gauge) Inc()         { g.v.Add(1) }
func (g *Gauge) Dec()         { g.v.Add(-1) }
func (g *Gauge) Value() int64 { return g.v.Load() }

// Histogram records a value distribution over fixed buckets.
type Histogram struct {
	mu      sync.Mutex
	bounds  []float64
	perBkt  []uint64
	sum     float64
	samples uint64
}

// Observe records one value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	h.sum += v
	h.samples++
	for i, b := range h.bounds {
		if v <= b {
			h.perBkt[i]++
			break
		}
	}
	h.mu.Unlock()
}

// Since observes the seconds elapsed since t.
func (h *Histogram) Since(t time.Time) { h.Observe(time.Since(t).Seconds()) }

func (h *Histogram) snapshot() (bounds []float64, perBkt []uint64, sum float64, samples uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	perBkt = make([]uint64, len(h.perBkt))
	copy(perBkt, h.perBkt)
	return h.bounds, perBkt, h.sum, h.samples
}

type series struct {
	labels    string // rendered as {k="v",...}, "" when unlabeled
	counter   *Counter
	gauge     *Gauge
	histogram *Histogram
}

type family struct {
	name  string
	help  string
	kind  string // counter, gauge, histogram
	byKey map[string]*series
}

// Registry holds metric families in registration order.
type Registry struct {
	mu       sync.Mutex
	families []*family
	byName   map[string]*family
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{byName: make(map[string]*family)}
}

// Counter returns the counter series for name and the given label pairs,
// creating family and series on first use. Labels are alternating
// key, value strings.
func (r *Registry) Counter(name, help string, labels ...string) *Counter {
	s := r.series(name, help, "counter", labels)
	return s.counter
}

// Gauge returns the gauge series for name and the given label pairs.
func (r *Registry) Gauge(name, help string, labels ...string) *Gauge {
	s := r.series(name, help, "gauge", labels)
	return s.gauge
}

// Histogram returns the histogram series for name and the given label
// pairs. nil buckets means DefaultBuckets.
func (r *Registry) Histogram(name, help string, buckets []float64, labels ...string) *Histogram {
	if buckets == nil {
		buckets = DefaultBuckets
	}
	s := r.seriesWithBuckets(name, help, buckets, labels)
	return s.histogram
}

func (r *Registry) series(name, help, kind string, labels []string) *series {
	r.mu.Lock()
	defer r.mu.Unlock()
	fam := r.family(name, help, kind)
	key := renderLabels(labels)
	if s, ok := fam.byKey[key]; ok {
		return s
	}
	s := &series{labels: key}
	switch kind {
	case "counter":
		s.counter = &Counter{}
	case "gauge":
		s.gauge = &Gauge{}
	}
	fam.byKey[key] = s
	return s
}

func (r *Registry) seriesWithBuckets(name, help string, buckets []float64, labels []string) *series {
	r.mu.Lock()
	defer r.mu.Unlock()
	fam := r.family(name, help, "histogram")
	key := renderLabels(labels)
	if s, ok := fam.byKey[key]; ok {
		return s
	}
	bounds := make([]float64, len(buckets))
	copy(bounds, buckets)
	sort.Float64s(bounds)
	s := &series{
		labels:    key,
		histogram: &Histogram{bounds: bounds, perBkt: make([]uint64, len(bounds))},
	}
	fam.byKey[key] = s
	return s
}

func (r *Registry) family(name, help, kind string) *family {
	if fam, ok := r.byName[name]; ok {
		return fam
	}
	fam := &family{name: name, help: help, kind: kind, byKey: make(map[string]*series)}
	r.byName[name] = fam
	r.families = append(r.families, fam)
	return fam
}

// renderLabels turns alternating key, value pairs into `{k="v",...}`.
// Odd-length input drops the trailing key.
func renderLabels(kvs []string) string {
	if len(kvs) < 2 {
		return ""
	}
	var b strings.Builder
	b.WriteByte('{')
	for i := 0; i+1 < len(kvs); i += 2 {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", kvs[i], kvs[i+1])
	}
	b.WriteByte('}')
	return b.String()
}

// Render emits the Prometheus text exposition format.
func (r *Registry) Render() string {
	r.mu.Lock()
	fams := make([]*family, len(r.families))
	copy(fams, r.families)
	r.mu.Unlock()

	var b strings.Builder
	for _, fam := range fams {
		if fam.help != "" {
			fmt.Fprintf(&b, "# HELP %s %s\n", fam.name, fam.help)
		}
		fmt.Fprintf(&b, "# TYPE %s %s\n", fam.name, fam.kind)

		keys := make([]string, 0, len(fam.byKey))
		for k := range fam.byKey {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			s := fam.byKey[k]
			switch fam.kind {
			case "counter":
				fmt.Fprintf(&b, "%s%s %d\n", fam.name, s.labels, s.counter.Value())
			case "gauge":
				fmt.Fprintf(&b, "%s%s %d\n", fam.name, s.labels, s.gauge.Value())
			case "histogram":
				renderHistogram(&b, fam.name, s)
			}
		}
	}
	return b.String()
}

func renderHistogram(b *strings.Builder, name string, s *series) {
	bounds, perBkt, sum, samples := s.histogram.snapshot()
	inner := strings.TrimSuffix(strings.TrimPrefix(s.labels, "{"), "}")
	cumulative := uint64(0)
	for i, bound := range bounds {
		cumulative += perBkt[i]
		fmt.Fprintf(b, "%s_bucket{%sle=%q} %d\n", name, joinLabel(inner), fmt.Sprintf("%g", bound), cumulative)
	}
	fmt.Fprintf(b, "%s_bucket{%sle=\"+Inf\"} %d\n", name, joinLabel(inner), samples)
	fmt.Fprintf(b, "%s_sum%s %g\n", name, s.labels, sum)
	fmt.Fprintf(b, "%s_count%s %d\n", name, s.labels, samples)
}

func joinLabel(inner string) string {
	if inner == "" {
		return ""
	}
	return inner + ","
}

// CollectRuntime periodically samples Go runtime stats into gauges named
// <prefix>_goroutines, <prefix>_heap_alloc_bytes, and <prefix>_gc_total.
func (r *Registry) CollectRuntime(prefix string, interval time.Duration) {
	goroutines := r.Gauge(prefix+"_goroutines", "Number of goroutines")
	heapAlloc := r.Gauge(prefix+"_heap_alloc_bytes", "Heap bytes allocated and in use")
	gcTotal := r.Gauge(prefix+"_gc_total", "Completed GC cycles")
	go func() {
		var ms runtime.MemStats
		for {
			runtime.ReadMemStats(&ms)
			goroutines.Set(int64(runtime.NumGoroutine()))
			heapAlloc.Set(int64(ms.HeapAlloc))
			gcTotal.Set(int64(ms.NumGC))
			time.Sleep(interval)
		}
	}()
}

// Handler serves the exposition format.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.Write([]byte(r.Render()))
	})
}

// Serve blocks serving /metrics on port.
func (r *Registry) Serve(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok\n"))
	})
	return http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}

// ServeAsync runs Serve in a goroutine.
func (r *Registry) ServeAsync(port int) {
	go func() {
		if err := r.Serve(port); err != nil {
			fmt.Printf("metrics server error on port %d: %v\n", port, err)
		}
	}()
}

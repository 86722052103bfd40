package mqttws

import (
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryMetrics keeps metrics in memory. Tests use it to inspect what the
// client reported.
type MemoryMetrics struct {
	mu         sync.RWMutex
	counters   map[string]*memoryCounter
	gauges     map[string]*memoryGauge
	histograms map[string]*memoryHistogram
}

// NewMemoryMetrics creates a new in-memory metrics instance.
func NewMemoryMetrics() *MemoryMetrics {
	return &MemoryMetrics{
		counters:   make(map[string]*memoryCounter),
		gauges:     make(map[string]*memoryGauge),
		histograms: make(map[string]*memoryHistogram),
	}
}

func labelsKey(name string, labels MetricLabels) string {
	if len(labels) == 0 {
		return name
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}

	return b.String()
}

// Counter returns a counter metric.
func (m *MemoryMetrics) Counter(name string, labels MetricLabels) Counter {
	key := labelsKey(name, labels)

	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.counters[key]; ok {
		return c
	}

	c := &memoryCounter{name: name, labels: labels}
	m.counters[key] = c

	return c
}

// Gauge returns a gauge metric.
func (m *MemoryMetrics) Gauge(name string, labels MetricLabels) Gauge {
	key := labelsKey(name, labels)

	m.mu.Lock()
	defer m.mu.Unlock()

	if g, ok := m.gauges[key]; ok {
		return g
	}

	g := &memoryGauge{name: name, labels: labels}
	m.gauges[key] = g

	return g
}

// Histogram returns a histogram metric.
func (m *MemoryMetrics) Histogram(name string, labels MetricLabels) Histogram {
	key := labelsKey(name, labels)

	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.histograms[key]; ok {
		return h
	}

	h := &memoryHistogram{name: name, labels: labels}
	m.histograms[key] = h

	return h
}

// GetCounter returns the counter registered under name and labels, or nil.
func (m *MemoryMetrics) GetCounter(name string, labels MetricLabels) Counter {
	key := labelsKey(name, labels)

	m.mu.RLock()
	defer m.mu.RUnlock()

	if v, ok := m.counters[key]; ok {
		return v
	}
	return nil
}

// GetGauge returns the gauge registered under name and labels, or nil.
func (m *MemoryMetrics) GetGauge(name string, labels MetricLabels) Gauge {
	key := labelsKey(name, labels)

	m.mu.RLock()
	defer m.mu.RUnlock()

	if v, ok := m.gauges[key]; ok {
		return v
	}
	return nil
}

// GetHistogram returns the histogram registered under name and labels, or nil.
func (m *MemoryMetrics) GetHistogram(name string, labels MetricLabels) Histogram {
	key := labelsKey(name, labels)

	m.mu.RLock()
	defer m.mu.RUnlock()

	if v, ok := m.histograms[key]; ok {
		return v
	}
	return nil
}

type memoryCounter struct {
	name   string
	labels MetricLabels
	value  atomic.Uint64
}

func (c *memoryCounter) Inc() {
	c.Add(1)
}

func (c *memoryCounter) Add(delta float64) {
	addFloat(&c.value, delta)
}

func (c *memoryCounter) Value() float64 {
	return math.Float64frombits(c.value.Load())
}

type memoryGauge struct {
	name   string
	labels MetricLabels
	value  atomic.Uint64
}

func (g *memoryGauge) Set(value float64) {
	g.value.Store(math.Float64bits(value))
}

func (g *memoryGauge) Inc() {
	g.Add(1)
}

func (g *memoryGauge) Dec() {
	g.Add(-1)
}

func (g *memoryGauge) Add(delta float64) {
	addFloat(&g.value, delta)
}

func (g *memoryGauge) Sub(delta float64) {
	g.Add(-delta)
}

func (g *memoryGauge) Value() float64 {
	return math.Float64frombits(g.value.Load())
}

type memoryHistogram struct {
	name   string
	labels MetricLabels
	count  atomic.Uint64
	sum    atomic.Uint64
}

func (h *memoryHistogram) Observe(value float64) {
	h.count.Add(1)
	addFloat(&h.sum, value)
}

func (h *memoryHistogram) ObserveDuration(d time.Duration) {
	h.Observe(d.Seconds())
}

func (h *memoryHistogram) Count() uint64 {
	return h.count.Load()
}

func (h *memoryHistogram) Sum() float64 {
	return math.Float64frombits(h.sum.Load())
}

func addFloat(v *atomic.Uint64, delta float64) {
	for {
		old := v.Load()
		if v.CompareAndSwap(old, math.Float64bits(math.Float64frombits(old)+delta)) {
			return
		}
	}
}

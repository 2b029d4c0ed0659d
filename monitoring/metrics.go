package monitoring

import (
	"sort"
	"sync"
	"time"
)

type MetricType int

const (
	Counter MetricType = iota
	Gauge
)

type Metric struct {
	Name      string
	Type      MetricType
	Value     float64
	Labels    map[string]string
	Timestamp time.Time
}

type MetricSnapshot struct {
	Name   string            `json:"name"`
	Value  float64           `json:"value"`
	Labels map[string]string `json:"labels,omitempty"`
}

// MetricsCollector is a small label-keyed counter/gauge registry. Outcome
// counters feed the /v1/metrics endpoint and the ops dashboards that poll it.
type MetricsCollector struct {
	metrics map[string]*Metric
	mu      sync.RWMutex
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics: make(map[string]*Metric),
	}
}

func (mc *MetricsCollector) IncrementCounter(name string, labels map[string]string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	key := mc.getKey(name, labels)
	if metric, exists := mc.metrics[key]; exists {
		metric.Value++
		metric.Timestamp = time.Now()
		return
	}
	mc.metrics[key] = &Metric{
		Name:      name,
		Type:      Counter,
		Value:     1,
		Labels:    labels,
		Timestamp: time.Now(),
	}
}

func (mc *MetricsCollector) SetGauge(name string, value float64, labels map[string]string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	key := mc.getKey(name, labels)
	mc.metrics[key] = &Metric{
		Name:      name,
		Type:      Gauge,
		Value:     value,
		Labels:    labels,
		Timestamp: time.Now(),
	}
}

func (mc *MetricsCollector) Snapshot() []MetricSnapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	snapshots := make([]MetricSnapshot, 0, len(mc.metrics))
	for _, metric := range mc.metrics {
		snapshots = append(snapshots, MetricSnapshot{
			Name:   metric.Name,
			Value:  metric.Value,
			Labels: metric.Labels,
		})
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Name < snapshots[j].Name
	})
	return snapshots
}

func (mc *MetricsCollector) getKey(name string, labels map[string]string) string {
	key := name
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		key += "|" + k + "=" + labels[k]
	}
	return key
}

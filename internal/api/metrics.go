package api

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics counts the requests made by one client. Each client owns its
// registry so that tests and repeated invocations never collide.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	pages    prometheus.Counter
}

// NewMetrics registers the client metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cloudtruth_api_requests_total",
			Help: "Total number of API requests by method and status code",
		}, []string{"method", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cloudtruth_api_request_duration_seconds",
			Help:    "Latency of API requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		pages: factory.NewCounter(prometheus.CounterOpts{
			Name: "cloudtruth_api_pages_fetched_total",
			Help: "Total number of list pages fetched",
		}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observe(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(method, label).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) pageFetched() {
	if m == nil {
		return
	}
	m.pages.Inc()
}

// Summary renders the request counters as "METHOD STATUS: N" lines, sorted.
func (m *Metrics) Summary() ([]string, error) {
	if m == nil {
		return nil, nil
	}
	families, err := m.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("failed to gather metrics: %w", err)
	}
	var lines []string
	for _, family := range families {
		if family.GetName() != "cloudtruth_api_requests_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			lines = append(lines, fmt.Sprintf("%s %s: %d",
				labelValue(metric, "method"), labelValue(metric, "status"),
				int(metric.GetCounter().GetValue())))
		}
	}
	sort.Strings(lines)
	return lines, nil
}

func labelValue(metric *dto.Metric, name string) string {
	for _, pair := range metric.GetLabel() {
		if pair.GetName() == name {
			return pair.GetValue()
		}
	}
	return ""
}

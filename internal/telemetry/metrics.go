package telemetry

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-fan/internal/controller"
	"github.com/nerrad567/gray-logic-fan/internal/fan"
)

const namespace = "graylogic_fan"

// StatsSource provides controller counters. Satisfied by *controller.Controller.
type StatsSource interface {
	Stats() controller.Stats
}

// Metrics holds the Prometheus collectors for one fan. Controller counters
// are read at scrape time; status gauges are set on every poll.
//
// Thread Safety: All methods are safe for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	state       *prometheus.GaugeVec
	info        *prometheus.GaugeVec
	lastUpdate  prometheus.Gauge
	connections *prometheus.CounterVec

	mu     sync.RWMutex
	device *fan.Device
}

// NewMetrics registers the fan collectors on a fresh registry. stats may be
// nil, in which case the controller counters are not exported.
func NewMetrics(fanID string, stats StatsSource) *Metrics {
	labels := prometheus.Labels{"fan_id": fanID}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Name:        "state",
				Help:        "Latest polled fan status by field (booleans are 1 or 0).",
				ConstLabels: labels,
			},
			[]string{"field"},
		),
		info: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Name:        "info",
				Help:        "Fan model information; always 1.",
				ConstLabels: labels,
			},
			[]string{"model", "family", "protocol"},
		),
		lastUpdate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "last_update_timestamp_seconds",
			Help:        "Unix timestamp of the last status update.",
			ConstLabels: labels,
		}),
		connections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "connection_events_total",
				Help:        "Connection state changes seen by the bridge.",
				ConstLabels: labels,
			},
			[]string{"event"},
		),
	}

	m.registry.MustRegister(m.state, m.info, m.lastUpdate, m.connections)
	if stats != nil {
		m.registry.MustRegister(statsCollectors(labels, stats)...)
	}
	return m
}

// statsCollectors exposes controller counters through function collectors.
func statsCollectors(labels prometheus.Labels, src StatsSource) []prometheus.Collector {
	counter := func(name, help string, read func(controller.Stats) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return float64(read(src.Stats())) })
	}

	return []prometheus.Collector{
		counter("connect_attempts_total", "Transport dial attempts.",
			func(s controller.Stats) uint64 { return s.ConnectAttempts }),
		counter("connects_total", "Successful connections.",
			func(s controller.Stats) uint64 { return s.Connects }),
		counter("polls_total", "Successful property polls.",
			func(s controller.Stats) uint64 { return s.Polls }),
		counter("poll_failures_total", "Failed property polls.",
			func(s controller.Stats) uint64 { return s.PollFailures }),
		counter("disconnects_total", "Connections lost.",
			func(s controller.Stats) uint64 { return s.Disconnects }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "connected",
			Help:        "1 while the fan transport is connected.",
			ConstLabels: labels,
		}, func() float64 {
			if src.Stats().Connected {
				return 1
			}
			return 0
		}),
	}
}

// Registry returns the registry holding the fan collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// DeviceReady records the model information.
func (m *Metrics) DeviceReady(d *fan.Device) {
	m.setDevice(d)
	m.info.Reset()
	m.info.WithLabelValues(d.Model(), d.Family(), string(d.Protocol())).Set(1)
	m.state.Reset()
}

// Connected counts a connection.
func (m *Metrics) Connected(d *fan.Device) {
	m.setDevice(d)
	m.connections.WithLabelValues("connected").Inc()
}

// Disconnected counts a disconnection.
func (m *Metrics) Disconnected() {
	m.connections.WithLabelValues("disconnected").Inc()
}

// PropertiesUpdated sets the status gauges.
func (m *Metrics) PropertiesUpdated(fan.Snapshot) {
	m.mu.RLock()
	d := m.device
	m.mu.RUnlock()
	if d == nil {
		return
	}

	for name, v := range statusFields(d.Status()) {
		m.state.WithLabelValues(name).Set(asFloat(v))
	}
	m.lastUpdate.Set(float64(time.Now().Unix()))
}

func (m *Metrics) setDevice(d *fan.Device) {
	m.mu.Lock()
	m.device = d
	m.mu.Unlock()
}

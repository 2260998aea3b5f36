package relay

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the registry.
type Metrics struct {
	events          *prometheus.CounterVec // by event
	sinkErrors      *prometheus.CounterVec // by sink
	devices         prometheus.Gauge
	listenerRunning prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
//
// Returns:
//   - *Metrics: ready for use by a Relay
//   - error: if a collector with the same name is already registered
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graylogic",
			Subsystem: "shelly",
			Name:      "events_total",
			Help:      "Total number of registry lifecycle events",
		}, []string{"event"}),

		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graylogic",
			Subsystem: "shelly",
			Name:      "sink_errors_total",
			Help:      "Total number of events a sink failed to accept",
		}, []string{"sink"}), // sink: mqtt, journal

		devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "graylogic",
			Subsystem: "shelly",
			Name:      "devices",
			Help:      "Number of devices in the registry",
		}),

		listenerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "graylogic",
			Subsystem: "shelly",
			Name:      "listener_running",
			Help:      "Whether the CoIoT listener is running (1) or stopped (0)",
		}),
	}

	for _, c := range []prometheus.Collector{m.events, m.sinkErrors, m.devices, m.listenerRunning} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeEvent(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

func (m *Metrics) observeSinkError(sink string) {
	if m == nil {
		return
	}
	m.sinkErrors.WithLabelValues(sink).Inc()
}

func (m *Metrics) setDevices(n int) {
	if m == nil {
		return
	}
	m.devices.Set(float64(n))
}

func (m *Metrics) setListenerRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.listenerRunning.Set(1)
		return
	}
	m.listenerRunning.Set(0)
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CoordinatorMetrics observes the file-system coordinator: instance
// lifecycle, validation outcomes, the cluster consistency gate, and
// endpoint connections.
type CoordinatorMetrics interface {
	InstanceStarted(name string)
	InstanceStopped(name string)
	ValidationFailed()
	ConsistencyCheckFailed()
	ConnectionOpened(name string)
	ConnectionClosed(name string)
	FragmentizerPass(name string, collected int)
}

// NewCoordinatorMetrics creates a Prometheus-backed CoordinatorMetrics,
// or a no-op implementation when metrics are disabled.
func NewCoordinatorMetrics() CoordinatorMetrics {
	if !IsEnabled() {
		return noopCoordinatorMetrics{}
	}

	reg := GetRegistry()

	return &coordinatorMetrics{
		instancesRunning: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "meshfs_instances_running",
				Help: "File system instances currently registered on this node",
			},
			[]string{"filesystem"},
		),
		validationFailures: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "meshfs_validation_failures_total",
				Help: "Local configuration validation failures",
			},
		),
		consistencyFailures: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "meshfs_consistency_check_failures_total",
				Help: "Cluster consistency check failures",
			},
		),
		activeConnections: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "meshfs_endpoint_connections_active",
				Help: "Active connections on instance endpoints",
			},
			[]string{"filesystem"},
		),
		fragmentizerCollected: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "meshfs_fragmentizer_blocks_collected_total",
				Help: "Blocks collected by the background fragmentizer",
			},
			[]string{"filesystem"},
		),
	}
}

type coordinatorMetrics struct {
	instancesRunning      *prometheus.GaugeVec
	validationFailures    prometheus.Counter
	consistencyFailures   prometheus.Counter
	activeConnections     *prometheus.GaugeVec
	fragmentizerCollected *prometheus.CounterVec
}

func (m *coordinatorMetrics) InstanceStarted(name string) {
	m.instancesRunning.WithLabelValues(name).Inc()
}

func (m *coordinatorMetrics) InstanceStopped(name string) {
	m.instancesRunning.WithLabelValues(name).Dec()
}

func (m *coordinatorMetrics) ValidationFailed() {
	m.validationFailures.Inc()
}

func (m *coordinatorMetrics) ConsistencyCheckFailed() {
	m.consistencyFailures.Inc()
}

func (m *coordinatorMetrics) ConnectionOpened(name string) {
	m.activeConnections.WithLabelValues(name).Inc()
}

func (m *coordinatorMetrics) ConnectionClosed(name string) {
	m.activeConnections.WithLabelValues(name).Dec()
}

func (m *coordinatorMetrics) FragmentizerPass(name string, collected int) {
	m.fragmentizerCollected.WithLabelValues(name).Add(float64(collected))
}

// noopCoordinatorMetrics is used when metrics are disabled.
type noopCoordinatorMetrics struct{}

func (noopCoordinatorMetrics) InstanceStarted(string)       {}
func (noopCoordinatorMetrics) InstanceStopped(string)       {}
func (noopCoordinatorMetrics) ValidationFailed()            {}
func (noopCoordinatorMetrics) ConsistencyCheckFailed()      {}
func (noopCoordinatorMetrics) ConnectionOpened(string)      {}
func (noopCoordinatorMetrics) ConnectionClosed(string)      {}
func (noopCoordinatorMetrics) FragmentizerPass(string, int) {}

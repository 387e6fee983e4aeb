// Package metrics collects Prometheus counters for the adapter. Each
// Metrics value owns its registry, so tests can build as many adapters as
// they like without duplicate registration.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fatfuse"

// Metrics holds the adapter's counters.
type Metrics struct {
	registry *prometheus.Registry

	operations      *prometheus.CounterVec
	operationErrors *prometheus.CounterVec
	bytesRead       prometheus.Counter
	bytesWritten    prometheus.Counter
	mounts          prometheus.Counter
	mountFaults     prometheus.Counter
	statRetries     prometheus.Counter
	readdirRewinds  prometheus.Counter
}

// New builds a Metrics with a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of filesystem operations by kind",
			},
			[]string{"op"},
		),
		operationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operation_errors_total",
				Help:      "Total number of failed operations by kind and library result",
			},
			[]string{"op", "result"},
		),
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_bytes_total",
			Help:      "Total bytes returned to readers",
		}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "written_bytes_total",
			Help:      "Total bytes accepted from writers",
		}),
		mounts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mounts_total",
			Help:      "Total number of successful volume mounts",
		}),
		mountFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mount_faults_total",
			Help:      "Total number of hard faults that invalidated the mount",
		}),
		statRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stat_retries_total",
			Help:      "Total number of stat calls that were retried",
		}),
		readdirRewinds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readdir_rewinds_total",
			Help:      "Total number of directory cursor rewinds after a full reply buffer",
		}),
	}
	m.registry.MustRegister(
		m.operations,
		m.operationErrors,
		m.bytesRead,
		m.bytesWritten,
		m.mounts,
		m.mountFaults,
		m.statRetries,
		m.readdirRewinds,
	)
	return m
}

// Operation counts one invocation of op.
func (m *Metrics) Operation(op string) {
	m.operations.WithLabelValues(op).Inc()
}

// OperationError counts one failure of op with the given library result.
func (m *Metrics) OperationError(op, result string) {
	m.operationErrors.WithLabelValues(op, result).Inc()
}

// ReadBytes adds n to the read byte counter.
func (m *Metrics) ReadBytes(n int) {
	m.bytesRead.Add(float64(n))
}

// WroteBytes adds n to the written byte counter.
func (m *Metrics) WroteBytes(n int) {
	m.bytesWritten.Add(float64(n))
}

// Mount counts one successful mount.
func (m *Metrics) Mount() {
	m.mounts.Inc()
}

// MountFault counts one mount invalidation.
func (m *Metrics) MountFault() {
	m.mountFaults.Inc()
}

// StatRetry counts one stat retry.
func (m *Metrics) StatRetry() {
	m.statRetries.Inc()
}

// ReaddirRewind counts one cursor rewind.
func (m *Metrics) ReaddirRewind() {
	m.readdirRewinds.Inc()
}

// Handler serves this registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

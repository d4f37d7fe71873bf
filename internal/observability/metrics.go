// Package observability wraps the library's Prometheus metrics in a
// Collector with its own registry, grounded on the teacher's
// metrics.Collector shape but scoped to a client library's pool and
// connection lifecycle rather than a proxy's per-tenant traffic.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds every metric gomysql exposes. A nil *Collector is
// valid everywhere it's accepted: every method has a nil receiver
// guard, so callers that never wired metrics pay only a branch.
type Collector struct {
	Registry *prometheus.Registry

	poolConnections *prometheus.GaugeVec
	poolWaitSeconds prometheus.Histogram
	poolExhausted   prometheus.Counter

	handshakeTotal    *prometheus.CounterVec
	handshakeDuration prometheus.Histogram

	pingDuration  prometheus.Histogram
	queryDuration *prometheus.HistogramVec

	preparedStatementsActive prometheus.Gauge
}

// New creates and registers every metric against a fresh registry.
// Safe to call more than once (tests, reconfiguration) since each
// call's registry is independent.
func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		Registry: reg,
		poolConnections: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gomysql_pool_connections",
				Help: "Connections tracked by the pool, by state (idle, in_use).",
			},
			[]string{"state"},
		),
		poolWaitSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gomysql_pool_wait_seconds",
				Help:    "Time a caller spent blocked in Pool.Acquire waiting for a connection.",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
			},
		),
		poolExhausted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gomysql_pool_exhausted_total",
				Help: "Acquire calls that timed out or were cancelled waiting for a connection.",
			},
		),
		handshakeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gomysql_handshake_total",
				Help: "Completed handshakes by result (ok, auth_failed, ssl_failed, network_error).",
			},
			[]string{"result"},
		),
		handshakeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gomysql_handshake_duration_seconds",
				Help:    "Time from TCP connect to an authenticated connection.",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
			},
		),
		pingDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gomysql_ping_duration_seconds",
				Help:    "COM_PING round-trip time, including the pool's idle health check.",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
			},
		),
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gomysql_query_duration_seconds",
				Help:    "Time from sending a command to the last resultset being read.",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 18),
			},
			[]string{"kind"},
		),
		preparedStatementsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gomysql_prepared_statements_active",
				Help: "Prepared statements currently open across all pooled connections.",
			},
		),
	}

	reg.MustRegister(
		c.poolConnections,
		c.poolWaitSeconds,
		c.poolExhausted,
		c.handshakeTotal,
		c.handshakeDuration,
		c.pingDuration,
		c.queryDuration,
		c.preparedStatementsActive,
	)

	return c
}

// SetPoolConnections sets the idle and in-use gauges from the pool's
// current counts.
func (c *Collector) SetPoolConnections(idle, inUse int) {
	if c == nil {
		return
	}
	c.poolConnections.WithLabelValues("idle").Set(float64(idle))
	c.poolConnections.WithLabelValues("in_use").Set(float64(inUse))
}

// AcquireWait observes how long a caller blocked in Pool.Acquire.
func (c *Collector) AcquireWait(d time.Duration) {
	if c == nil {
		return
	}
	c.poolWaitSeconds.Observe(d.Seconds())
}

// PoolExhausted increments the exhaustion counter when Acquire gives
// up waiting for a connection.
func (c *Collector) PoolExhausted() {
	if c == nil {
		return
	}
	c.poolExhausted.Inc()
}

// HandshakeCompleted records a handshake attempt's outcome and
// duration. result should be one of "ok", "auth_failed",
// "ssl_failed", or "network_error".
func (c *Collector) HandshakeCompleted(result string, d time.Duration) {
	if c == nil {
		return
	}
	c.handshakeTotal.WithLabelValues(result).Inc()
	if result == "ok" {
		c.handshakeDuration.Observe(d.Seconds())
	}
}

// PingCompleted observes a COM_PING round-trip.
func (c *Collector) PingCompleted(d time.Duration) {
	if c == nil {
		return
	}
	c.pingDuration.Observe(d.Seconds())
}

// QueryCompleted observes an execution's wall time. kind is "query",
// "stmt_execute", or "pipeline".
func (c *Collector) QueryCompleted(kind string, d time.Duration) {
	if c == nil {
		return
	}
	c.queryDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// PreparedStatementOpened/Closed track the live prepared-statement gauge.
func (c *Collector) PreparedStatementOpened() {
	if c == nil {
		return
	}
	c.preparedStatementsActive.Inc()
}

func (c *Collector) PreparedStatementClosed() {
	if c == nil {
		return
	}
	c.preparedStatementsActive.Dec()
}

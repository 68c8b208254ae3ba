package infra

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provides lightweight pipeline observability.
// Uses atomic operations for thread-safety; the reader and the worker
// update it concurrently.
type Metrics struct {
	// Counters
	ticksReceived   atomic.Uint64
	ticksDropped    atomic.Uint64 // Backpressure (drop-oldest)
	decodeMalformed atomic.Uint64
	decodeMismatch  atomic.Uint64
	emptyBooks      atomic.Uint64
	estimates       atomic.Uint64
	pipelineErrors  atomic.Uint64
	sinkErrors      atomic.Uint64
	reconnects      atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64
	latencyHist  prometheus.Histogram // nil for zero-value Metrics

	// Gauges
	activeConnections atomic.Int32
	queueDepth        atomic.Int32
}

// GlobalMetrics is the process-wide metrics instance.
var GlobalMetrics = NewMetrics()

// NewMetrics creates a Metrics with a latency histogram for Prometheus.
func NewMetrics() *Metrics {
	return &Metrics{
		latencyHist: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trade_sim_estimate_latency_seconds",
			Help:    "Time spent inside the cost pipeline per tick",
			Buckets: prometheus.ExponentialBuckets(5e-6, 2, 16), // 5us .. ~160ms
		}),
	}
}

// RecordTick records a tick accepted from the stream.
func (m *Metrics) RecordTick() {
	m.ticksReceived.Add(1)
}

// RecordDrop records a tick discarded by backpressure.
func (m *Metrics) RecordDrop() {
	m.ticksDropped.Add(1)
}

// RecordMalformed records a message dropped as malformed.
func (m *Metrics) RecordMalformed() {
	m.decodeMalformed.Add(1)
}

// RecordMismatch records a message for another exchange/symbol.
func (m *Metrics) RecordMismatch() {
	m.decodeMismatch.Add(1)
}

// RecordEmptyBook records a tick dropped because a side had no levels.
func (m *Metrics) RecordEmptyBook() {
	m.emptyBooks.Add(1)
}

// RecordEstimate records a produced estimate with its internal latency.
func (m *Metrics) RecordEstimate(latency time.Duration) {
	m.estimates.Add(1)
	m.latencySumNs.Add(latency.Nanoseconds())
	m.latencyCount.Add(1)
	if m.latencyHist != nil {
		m.latencyHist.Observe(latency.Seconds())
	}
}

// RecordPipelineError records a skipped estimate.
func (m *Metrics) RecordPipelineError() {
	m.pipelineErrors.Add(1)
}

// RecordSinkError records a result the sink failed to accept.
func (m *Metrics) RecordSinkError() {
	m.sinkErrors.Add(1)
}

// RecordReconnect records a reconnect attempt.
func (m *Metrics) RecordReconnect() {
	m.reconnects.Add(1)
}

// IncrementConnections increments active connections by 1.
func (m *Metrics) IncrementConnections() {
	m.activeConnections.Add(1)
}

// DecrementConnections decrements active connections by 1.
func (m *Metrics) DecrementConnections() {
	m.activeConnections.Add(-1)
}

// SetQueueDepth sets the current dispatch queue depth.
func (m *Metrics) SetQueueDepth(depth int) {
	m.queueDepth.Store(int32(depth))
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	TicksReceived     uint64
	TicksDropped      uint64
	DecodeMalformed   uint64
	DecodeMismatch    uint64
	EmptyBooks        uint64
	Estimates         uint64
	PipelineErrors    uint64
	SinkErrors        uint64
	Reconnects        uint64
	AvgLatencyNs      int64
	ActiveConnections int32
	QueueDepth        int32
	Timestamp         time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		TicksReceived:     m.ticksReceived.Load(),
		TicksDropped:      m.ticksDropped.Load(),
		DecodeMalformed:   m.decodeMalformed.Load(),
		DecodeMismatch:    m.decodeMismatch.Load(),
		EmptyBooks:        m.emptyBooks.Load(),
		Estimates:         m.estimates.Load(),
		PipelineErrors:    m.pipelineErrors.Load(),
		SinkErrors:        m.sinkErrors.Load(),
		Reconnects:        m.reconnects.Load(),
		AvgLatencyNs:      avgLatency,
		ActiveConnections: m.activeConnections.Load(),
		QueueDepth:        m.queueDepth.Load(),
		Timestamp:         time.Now(),
	}
}

// Reset clears all counters (for testing). The histogram is left as is.
func (m *Metrics) Reset() {
	m.ticksReceived.Store(0)
	m.ticksDropped.Store(0)
	m.decodeMalformed.Store(0)
	m.decodeMismatch.Store(0)
	m.emptyBooks.Store(0)
	m.estimates.Store(0)
	m.pipelineErrors.Store(0)
	m.sinkErrors.Store(0)
	m.reconnects.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeConnections.Store(0)
	m.queueDepth.Store(0)
}

package infra

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes a Metrics instance to Prometheus.
type Collector struct {
	m *Metrics

	descs []metricDesc
}

type metricDesc struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
	get       func(MetricsSnapshot) float64
}

// NewCollector creates a collector reading m on every scrape.
func NewCollector(m *Metrics) *Collector {
	counter := func(name, help string, get func(MetricsSnapshot) float64) metricDesc {
		return metricDesc{desc: prometheus.NewDesc("trade_sim_"+name, help, nil, nil), valueType: prometheus.CounterValue, get: get}
	}
	gauge := func(name, help string, get func(MetricsSnapshot) float64) metricDesc {
		return metricDesc{desc: prometheus.NewDesc("trade_sim_"+name, help, nil, nil), valueType: prometheus.GaugeValue, get: get}
	}

	return &Collector{
		m: m,
		descs: []metricDesc{
			counter("ticks_received_total", "Ticks accepted from the stream", func(s MetricsSnapshot) float64 { return float64(s.TicksReceived) }),
			counter("ticks_dropped_total", "Ticks dropped by drop-oldest backpressure", func(s MetricsSnapshot) float64 { return float64(s.TicksDropped) }),
			counter("decode_malformed_total", "Messages dropped as malformed", func(s MetricsSnapshot) float64 { return float64(s.DecodeMalformed) }),
			counter("decode_mismatch_total", "Messages dropped for a different exchange or symbol", func(s MetricsSnapshot) float64 { return float64(s.DecodeMismatch) }),
			counter("empty_books_total", "Ticks dropped with an empty side", func(s MetricsSnapshot) float64 { return float64(s.EmptyBooks) }),
			counter("estimates_total", "Cost estimates produced", func(s MetricsSnapshot) float64 { return float64(s.Estimates) }),
			counter("pipeline_errors_total", "Estimates skipped on pipeline errors", func(s MetricsSnapshot) float64 { return float64(s.PipelineErrors) }),
			counter("sink_errors_total", "Estimates the result sink failed to accept", func(s MetricsSnapshot) float64 { return float64(s.SinkErrors) }),
			counter("reconnects_total", "Stream reconnect attempts", func(s MetricsSnapshot) float64 { return float64(s.Reconnects) }),
			gauge("active_connections", "Open stream connections", func(s MetricsSnapshot) float64 { return float64(s.ActiveConnections) }),
			gauge("queue_depth", "Ticks waiting in the dispatch queue", func(s MetricsSnapshot) float64 { return float64(s.QueueDepth) }),
		},
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d.desc
	}
	if c.m.latencyHist != nil {
		c.m.latencyHist.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.m.Snapshot()
	for _, d := range c.descs {
		ch <- prometheus.MustNewConstMetric(d.desc, d.valueType, d.get(snap))
	}
	if c.m.latencyHist != nil {
		c.m.latencyHist.Collect(ch)
	}
}

// NewRegistry returns a registry holding m plus the Go runtime collectors.
func NewRegistry(m *Metrics) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewCollector(m),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// MetricsHandler serves /metrics and the pprof endpoints.
func MetricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// ServeMetrics runs the metrics listener until ctx is done.
func ServeMetrics(ctx context.Context, addr string, reg *prometheus.Registry) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           MetricsHandler(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("📈 Metrics server started", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Metrics server failed", slog.Any("error", err))
	}
}

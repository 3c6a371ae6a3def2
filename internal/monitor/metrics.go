package monitor

import (
	"net/http"
	"sync"

	"github.com/MalekiRe/bevy-editor/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CyclesTotal counts supervision cycles started.
	CyclesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hotreload_cycles_total",
		Help: "Total number of supervision cycles started",
	})
	// RestartTotal tracks the total number of child restarts, partitioned by reason.
	RestartTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hotreload_restarts_total",
		Help: "Total number of child restarts",
	}, []string{"reason"})
	// RelayedBytes counts bytes written to the forward connection.
	RelayedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hotreload_relayed_bytes_total",
		Help: "Bytes of child output relayed to the viewer",
	})
	// ForwardWriteFailures counts relay iterations abandoned on a write error.
	ForwardWriteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hotreload_forward_write_failures_total",
		Help: "Relay iterations abandoned because the forward write failed",
	})
	// HandshakeAttempts records how many dials the back channel needed.
	HandshakeAttempts = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "hotreload_handshake_attempts",
		Help:    "Dial attempts needed to open the back channel",
		Buckets: []float64{1, 2, 3, 5, 10, 20, 50},
	})
	// DegradedMode is 1 while the next child launches in UI-only mode.
	DegradedMode = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hotreload_degraded_mode",
		Help: "1 when the child is launched in UI-only mode",
	})
)

// Restart reasons
const (
	ReasonFaultyExit = "faulty_exit"
)

var registerOnce sync.Once

// Register adds the watcher metrics to the default registry. Safe to call repeatedly.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(CyclesTotal, RestartTotal, RelayedBytes, ForwardWriteFailures, HandshakeAttempts, DegradedMode)
	})
}

// InitMetrics registers Prometheus metrics and, when addr is non-empty,
// starts an HTTP server exposing them on /metrics.
func InitMetrics(addr string) {
	Register()
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		logger.Log.Info("Metrics server starting", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Log.Error("Metrics server failed", "err", err)
		}
	}()
}

// SetDegraded mirrors the degraded-mode flag into the gauge.
func SetDegraded(degraded bool) {
	if degraded {
		DegradedMode.Set(1)
	} else {
		DegradedMode.Set(0)
	}
}

// Personal.AI order the ending

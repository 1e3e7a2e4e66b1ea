// Package tcspmetrics exposes Prometheus counters for frame-level activity
// on both buses plus the dispatch loop.
package tcspmetrics

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shannmu/tcsp-server/internal/logging"
)

var (
	CanRxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcsp_can_rx_frames_total",
		Help: "Total Ty CAN wire frames read from the CAN interface.",
	})
	CanTxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcsp_can_tx_frames_total",
		Help: "Total Ty CAN wire frames written to the CAN interface.",
	})
	UartRxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcsp_uart_rx_frames_total",
		Help: "Total Ty UART wire frames read from the serial port.",
	})
	UartTxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcsp_uart_tx_frames_total",
		Help: "Total Ty UART wire frames written to the serial port.",
	})
	MalformedFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tcsp_malformed_frames_total",
		Help: "Rejected malformed frames by bus.",
	}, []string{"bus"})
	ChecksumFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcsp_checksum_failures_total",
		Help: "Total checksum mismatches during multi-frame CAN reassembly.",
	})
	SlotResets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcsp_slot_resets_total",
		Help: "Total CAN reassembly slots reset due to error or overflow.",
	})
	CanResets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcsp_can_resets_total",
		Help: "Total CAN bus reset/recovery cycles triggered.",
	})
	DispatchedFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tcsp_dispatched_frames_total",
		Help: "Total frames routed to an application handler, by application id.",
	}, []string{"application"})
	HandlerNotFound = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcsp_handler_not_found_total",
		Help: "Total frames whose application id had no registered handler.",
	})
	HandlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tcsp_handler_errors_total",
		Help: "Total application handler errors, by application id.",
	}, []string{"application"})
	FallbackCalls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcsp_fallback_calls_total",
		Help: "Total requests forwarded to the fallback side-channel.",
	})
	FallbackTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcsp_fallback_timeouts_total",
		Help: "Total fallback side-channel calls that timed out.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tcsp_build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Bus label constants (stable label values to bound cardinality).
const (
	BusCAN  = "can"
	BusUART = "uart"
)

// StartHTTP serves Prometheus metrics at /metrics and a readiness probe at
// /ready.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

func IncMalformed(bus string)           { MalformedFrames.WithLabelValues(bus).Inc() }
func IncChecksumFailure()               { ChecksumFailures.Inc() }
func IncSlotReset()                     { SlotResets.Inc() }
func IncCanReset()                      { CanResets.Inc() }
func IncDispatched(application uint8)   { DispatchedFrames.WithLabelValues(appLabel(application)).Inc() }
func IncHandlerNotFound()               { HandlerNotFound.Inc() }
func IncHandlerError(application uint8) { HandlerErrors.WithLabelValues(appLabel(application)).Inc() }
func IncFallbackCall()                  { FallbackCalls.Inc() }
func IncFallbackTimeout()               { FallbackTimeouts.Inc() }

func appLabel(id uint8) string { return strconv.Itoa(int(id)) }

// InitBuildInfo sets the build info gauge (called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}

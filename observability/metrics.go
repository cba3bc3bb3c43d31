package observability

import (
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests   *prometheus.CounterVec
	errors     *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	throttles  *prometheus.CounterVec
	rejections *prometheus.CounterVec
}

type ledgerMetrics struct {
	pools        *prometheus.GaugeVec
	stakes       prometheus.Gauge
	currentEpoch prometheus.Gauge
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	ledgerMetricsOnce sync.Once
	ledgerRegistry    *ledgerMetrics
)

// ModuleMetrics returns the lazily-initialised registry recording API calls
// into the ledger modules.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakevault",
				Subsystem: "module",
				Name:      "requests_total",
				Help:      "Total ledger API requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakevault",
				Subsystem: "module",
				Name:      "errors_total",
				Help:      "Total ledger API errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "stakevault",
				Subsystem: "module",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for ledger API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakevault",
				Subsystem: "module",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakevault",
				Subsystem: "module",
				Name:      "rejections_total",
				Help:      "Ledger calls rejected segmented by stable error code.",
			}, []string{"module", "code"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
			moduleRegistry.rejections,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason.
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// RecordRejection counts a ledger error by its stable code.
func (m *moduleMetrics) RecordRejection(module, code string) {
	if m == nil || code == "" {
		return
	}
	if module == "" {
		module = "unknown"
	}
	m.rejections.WithLabelValues(module, code).Inc()
}

// Ledger returns the gauges mirroring ledger state.
func Ledger() *ledgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &ledgerMetrics{
			pools: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "stakevault",
				Subsystem: "stake",
				Name:      "pool_balance",
				Help:      "Pool counters in token base units segmented by bucket.",
			}, []string{"bucket"}),
			stakes: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "stakevault",
				Subsystem: "stake",
				Name:      "stakes_total",
				Help:      "Number of stakes recorded since genesis.",
			}),
			currentEpoch: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "stakevault",
				Subsystem: "rewards",
				Name:      "current_epoch",
				Help:      "Currently active reward claim epoch.",
			}),
		}
		prometheus.MustRegister(ledgerRegistry.pools, ledgerRegistry.stakes, ledgerRegistry.currentEpoch)
	})
	return ledgerRegistry
}

// SetPool records a pool counter. Values beyond float64 precision are
// approximated.
func (m *ledgerMetrics) SetPool(bucket string, value *big.Int) {
	if m == nil {
		return
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		bucket = "unknown"
	}
	m.pools.WithLabelValues(bucket).Set(bigToFloat(value))
}

// SetStakeCount records the number of stakes ever created.
func (m *ledgerMetrics) SetStakeCount(count uint64) {
	if m == nil {
		return
	}
	m.stakes.Set(float64(count))
}

// SetCurrentEpoch records the active reward epoch.
func (m *ledgerMetrics) SetCurrentEpoch(epoch uint64) {
	if m == nil {
		return
	}
	m.currentEpoch.Set(float64(epoch))
}

func bigToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

package observability

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	marketMetricsOnce sync.Once
	marketRegistry    *MarketMetrics
)

// ModuleMetrics returns the lazily-initialised registry used to record HTTP
// API activity per module and route.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "mm",
				Subsystem: "module",
				Name:      "requests_total",
				Help:      "Total API requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "mm",
				Subsystem: "module",
				Name:      "errors_total",
				Help:      "Total API errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "mm",
				Subsystem: "module",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "mm",
				Subsystem: "module",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a request. The status code should be the
// HTTP status that was ultimately written to the response writer.
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
// reason. Reasons should be stable strings such as "rate_limit".
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

// MarketMetrics tracks deposit and redeem activity of the money market.
type MarketMetrics struct {
	deposits     prometheus.Counter
	redemptions  prometheus.Counter
	failures     *prometheus.CounterVec
	exchangeRate prometheus.Gauge
	minted       prometheus.Counter
	redeemed     prometheus.Counter
}

// Market returns the singleton metrics registry for the market handlers.
func Market() *MarketMetrics {
	marketMetricsOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			deposits: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "mm",
				Subsystem: "market",
				Name:      "deposits_total",
				Help:      "Count of committed deposits.",
			}),
			redemptions: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "mm",
				Subsystem: "market",
				Name:      "redemptions_total",
				Help:      "Count of committed redemptions.",
			}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "mm",
				Subsystem: "market",
				Name:      "failures_total",
				Help:      "Count of aborted calls segmented by operation and error kind.",
			}, []string{"op", "kind"}),
			exchangeRate: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "mm",
				Subsystem: "market",
				Name:      "exchange_rate",
				Help:      "Receipt share price observed by the last committed call.",
			}),
			minted: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "mm",
				Subsystem: "market",
				Name:      "minted_total",
				Help:      "Receipt shares minted by deposits.",
			}),
			redeemed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "mm",
				Subsystem: "market",
				Name:      "redeemed_total",
				Help:      "Base asset owed by redemptions before tax.",
			}),
		}
		prometheus.MustRegister(
			marketRegistry.deposits,
			marketRegistry.redemptions,
			marketRegistry.failures,
			marketRegistry.exchangeRate,
			marketRegistry.minted,
			marketRegistry.redeemed,
		)
	})
	return marketRegistry
}

// RecordDeposit counts a committed deposit and the shares it minted. Amounts
// are exported as floats and lose precision above 2^53.
func (m *MarketMetrics) RecordDeposit(minted float64) {
	if m == nil {
		return
	}
	m.deposits.Inc()
	if minted > 0 {
		m.minted.Add(minted)
	}
}

// RecordRedeem counts a committed redemption and the base asset it released.
func (m *MarketMetrics) RecordRedeem(redeemed float64) {
	if m == nil {
		return
	}
	m.redemptions.Inc()
	if redeemed > 0 {
		m.redeemed.Add(redeemed)
	}
}

// RecordFailure counts an aborted call.
func (m *MarketMetrics) RecordFailure(op, kind string) {
	if m == nil {
		return
	}
	op = strings.TrimSpace(op)
	if op == "" {
		op = "unknown"
	}
	kind = strings.TrimSpace(kind)
	if kind == "" {
		kind = "unknown"
	}
	m.failures.WithLabelValues(op, kind).Inc()
}

// SetExchangeRate publishes the latest observed share price.
func (m *MarketMetrics) SetExchangeRate(rate float64) {
	if m == nil {
		return
	}
	m.exchangeRate.Set(rate)
}

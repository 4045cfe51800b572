// Package metrics exposes prometheus collectors for trade execution.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collector records trade and RPC outcomes.
type Collector struct {
	trades        *prometheus.CounterVec
	tradeDuration *prometheus.HistogramVec
	confirmations *prometheus.CounterVec
	rpcLatency    prometheus.Histogram
}

func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		trades: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trade_engine",
			Name:      "trades_total",
			Help:      "Trade attempts by operation, venue and outcome.",
		}, []string{"operation", "venue", "outcome"}),
		tradeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trade_engine",
			Name:      "trade_duration_seconds",
			Help:      "Wall time of trade attempts from quote to submission.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"operation", "venue"}),
		confirmations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trade_engine",
			Name:      "confirmations_total",
			Help:      "Confirmation poll results.",
		}, []string{"outcome"}),
		rpcLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "trade_engine",
			Name:      "rpc_latency_seconds",
			Help:      "Latency of upstream RPC reads.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}
}

func (c *Collector) RecordTrade(operation, venue string, duration time.Duration, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	c.trades.WithLabelValues(operation, venue, outcome).Inc()
	c.tradeDuration.WithLabelValues(operation, venue).Observe(duration.Seconds())
}

func (c *Collector) RecordConfirmation(outcome string) {
	c.confirmations.WithLabelValues(outcome).Inc()
}

func (c *Collector) ObserveRPCLatency(d time.Duration) {
	c.rpcLatency.Observe(d.Seconds())
}

// Serve exposes /metrics until the listener fails; intended to run in its
// own goroutine.
func Serve(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics listener stopped", zap.Error(err))
	}
}

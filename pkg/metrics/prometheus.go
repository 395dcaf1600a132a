package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the settlement engine metrics.
type Collector struct {
	registry               *prometheus.Registry
	settlementsTotal       *prometheus.CounterVec
	settlementsFailed      *prometheus.CounterVec
	settlementDuration     prometheus.Histogram
	riskScoreDistribution  prometheus.Histogram
	verificationFailures   prometheus.Counter
	concurrencyConflicts   prometheus.Counter
	balanceGauge           *prometheus.GaugeVec
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	return &Collector{
		registry: registry,
		settlementsTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_settlements_total",
			Help: "Total number of settlement attempts by action",
		}, []string{"action"}),
		settlementsFailed: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_settlements_failed_total",
			Help: "Total number of failed settlement attempts by reason",
		}, []string{"action", "reason"}),
		settlementDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "wallet_settlement_duration_seconds",
			Help:    "Time taken to settle a withdrawal",
			Buckets: prometheus.DefBuckets,
		}),
		riskScoreDistribution: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "wallet_withdrawal_risk_score",
			Help:    "Distribution of withdrawal risk scores",
			Buckets: []float64{0, 20, 40, 60, 80, 100},
		}),
		verificationFailures: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "wallet_balance_verification_failures_total",
			Help: "Post-write balance verification mismatches, each one is a data-integrity incident",
		}),
		concurrencyConflicts: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "wallet_balance_cas_conflicts_total",
			Help: "Compare-and-swap balance updates that lost a race",
		}),
		balanceGauge: promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
			Name: "wallet_user_balance",
			Help: "Last observed real balance per user",
		}, []string{"user_id"}),
	}
}

func (c *Collector) RecordSettlement(action string, duration time.Duration, err error, reason string) {
	c.settlementsTotal.WithLabelValues(action).Inc()
	c.settlementDuration.Observe(duration.Seconds())
	if err != nil {
		c.settlementsFailed.WithLabelValues(action, reason).Inc()
	}
}

func (c *Collector) RecordRiskScore(score int) {
	c.riskScoreDistribution.Observe(float64(score))
}

func (c *Collector) RecordVerificationFailure() {
	c.verificationFailures.Inc()
}

func (c *Collector) RecordCASConflict() {
	c.concurrencyConflicts.Inc()
}

func (c *Collector) SetBalance(userID string, balance float64) {
	c.balanceGauge.WithLabelValues(userID).Set(balance)
}

// Handler exposes the registry for the /metrics route.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Package metrics provides Prometheus metrics for the betting engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// EngineMetrics collects and exposes engine-related Prometheus metrics.
type EngineMetrics struct {
	registry *prometheus.Registry

	// Prediction metrics
	PredictionsTotal   *prometheus.CounterVec
	PredictionDuration *prometheus.HistogramVec
	SnapshotMatches    *prometheus.GaugeVec
	SnapshotAge        *prometheus.GaugeVec

	// Value signal metrics
	ValueBetsTotal *prometheus.CounterVec
	SignalEV       *prometheus.HistogramVec
	SignalKelly    *prometheus.HistogramVec

	// Ledger metrics
	BetsPlacedTotal  *prometheus.CounterVec
	BetsSettledTotal *prometheus.CounterVec
	SettleConflicts  *prometheus.CounterVec
	Bankroll         *prometheus.GaugeVec
	OpenBets         *prometheus.GaugeVec
	OpenExposure     *prometheus.GaugeVec

	// Policy metrics
	PolicyRejections *prometheus.CounterVec
}

// NewEngineMetrics creates a new engine metrics collector.
func NewEngineMetrics() *EngineMetrics {
	registry := prometheus.NewRegistry()

	em := &EngineMetrics{
		registry: registry,

		// Prediction metrics
		PredictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oddsengine_predictions_total",
				Help: "Total number of fixture predictions produced",
			},
			[]string{"league"},
		),
		PredictionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oddsengine_prediction_duration_seconds",
				Help:    "Time to price all markets for one fixture",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 100us to ~400ms
			},
			[]string{},
		),
		SnapshotMatches: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "oddsengine_snapshot_matches",
				Help: "Number of finished matches in the current snapshot",
			},
			[]string{},
		),
		SnapshotAge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "oddsengine_snapshot_age_seconds",
				Help: "Seconds since the current snapshot was built",
			},
			[]string{},
		),

		// Value signal metrics
		ValueBetsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oddsengine_value_bets_total",
				Help: "Total number of value opportunities found",
			},
			[]string{"tier", "market"},
		),
		SignalEV: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oddsengine_signal_ev",
				Help:    "Expected value multiple of detected signals",
				Buckets: []float64{1.0, 1.05, 1.1, 1.15, 1.2, 1.3, 1.5, 2.0},
			},
			[]string{},
		),
		SignalKelly: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oddsengine_signal_kelly",
				Help:    "Capped Kelly fraction of detected signals",
				Buckets: prometheus.LinearBuckets(0, 0.025, 11), // 0 to 0.25
			},
			[]string{},
		),

		// Ledger metrics
		BetsPlacedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oddsengine_bets_placed_total",
				Help: "Total number of bets recorded in the ledger",
			},
			[]string{"tier", "market"},
		),
		BetsSettledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oddsengine_bets_settled_total",
				Help: "Total number of bets settled",
			},
			[]string{"result", "tier"},
		),
		SettleConflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oddsengine_settle_conflicts_total",
				Help: "Settlements skipped because the bet was no longer pending",
			},
			[]string{},
		),
		Bankroll: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "oddsengine_bankroll_units",
				Help: "Current bankroll in stake units",
			},
			[]string{},
		),
		OpenBets: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "oddsengine_open_bets",
				Help: "Current number of pending bets",
			},
			[]string{},
		),
		OpenExposure: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "oddsengine_open_exposure_units",
				Help: "Total stake at risk on pending bets",
			},
			[]string{},
		),

		// Policy metrics
		PolicyRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oddsengine_policy_rejections_total",
				Help: "Stakes rejected by bankroll policy",
			},
			[]string{},
		),
	}

	em.registerAll()

	return em
}

func (em *EngineMetrics) registerAll() {
	em.registry.MustRegister(
		em.PredictionsTotal,
		em.PredictionDuration,
		em.SnapshotMatches,
		em.SnapshotAge,
		em.ValueBetsTotal,
		em.SignalEV,
		em.SignalKelly,
		em.BetsPlacedTotal,
		em.BetsSettledTotal,
		em.SettleConflicts,
		em.Bankroll,
		em.OpenBets,
		em.OpenExposure,
		em.PolicyRejections,
	)
}

// Registry returns the prometheus registry.
func (em *EngineMetrics) Registry() *prometheus.Registry {
	return em.registry
}

// --- Helper methods for recording metrics ---

// RecordPrediction records one fixture prediction.
func (em *EngineMetrics) RecordPrediction(league string, durationSec float64) {
	em.PredictionsTotal.WithLabelValues(league).Inc()
	if durationSec > 0 {
		em.PredictionDuration.WithLabelValues().Observe(durationSec)
	}
}

// UpdateSnapshot updates snapshot freshness gauges.
func (em *EngineMetrics) UpdateSnapshot(matchCount int, ageSec float64) {
	em.SnapshotMatches.WithLabelValues().Set(float64(matchCount))
	em.SnapshotAge.WithLabelValues().Set(ageSec)
}

// RecordValueBet records a detected value opportunity.
func (em *EngineMetrics) RecordValueBet(tier, market string, ev, kelly float64) {
	em.ValueBetsTotal.WithLabelValues(tier, market).Inc()
	em.SignalEV.WithLabelValues().Observe(ev)
	em.SignalKelly.WithLabelValues().Observe(kelly)
}

// RecordBetPlaced records a ledger placement.
func (em *EngineMetrics) RecordBetPlaced(tier, market string) {
	em.BetsPlacedTotal.WithLabelValues(tier, market).Inc()
}

// RecordSettlement records a settled bet.
func (em *EngineMetrics) RecordSettlement(result, tier string) {
	em.BetsSettledTotal.WithLabelValues(result, tier).Inc()
}

// RecordSettleConflict records a settlement skipped by the status guard.
func (em *EngineMetrics) RecordSettleConflict() {
	em.SettleConflicts.WithLabelValues().Inc()
}

// UpdateBankroll updates the bankroll and exposure gauges.
func (em *EngineMetrics) UpdateBankroll(bankroll decimal.Decimal, openBets int, openExposure decimal.Decimal) {
	em.Bankroll.WithLabelValues().Set(DecimalToFloat64(bankroll))
	em.OpenBets.WithLabelValues().Set(float64(openBets))
	em.OpenExposure.WithLabelValues().Set(DecimalToFloat64(openExposure))
}

// RecordPolicyRejection records a stake rejected by policy.
func (em *EngineMetrics) RecordPolicyRejection() {
	em.PolicyRejections.WithLabelValues().Inc()
}

// --- Decimal helpers ---

// DecimalToFloat64 safely converts decimal.Decimal to float64 for metrics.
func DecimalToFloat64(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// Global instance for convenience
var defaultMetrics *EngineMetrics
var once sync.Once

// Default returns the default global metrics instance.
func Default() *EngineMetrics {
	once.Do(func() {
		defaultMetrics = NewEngineMetrics()
	})
	return defaultMetrics
}

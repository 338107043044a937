// Package metrics exposes Prometheus collectors for the discovery service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchBranchesTotal      *prometheus.CounterVec
	fetchDurationSeconds    *prometheus.HistogramVec
	enrichStagesTotal       *prometheus.CounterVec
	enrichStageSeconds      *prometheus.HistogramVec
	imageTierWinsTotal      *prometheus.CounterVec
	heroUpsertsTotal        *prometheus.CounterVec
	relevanceRejectionTotal prometheus.Counter
	qualityRejectionTotal   prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors. Observe helpers call
// it lazily, so it is safe to call multiple times from any goroutine.
func Init() {
	once.Do(func() {
		fetchBranchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discovery_fetch_branches_total",
				Help: "Fetch attempts, labeled by branch and fetch class.",
			},
			[]string{"branch", "class"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "discovery_fetch_duration_seconds",
				Help:    "Histogram of per-branch fetch latencies.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
			},
			[]string{"branch"},
		)

		enrichStagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discovery_enrich_stages_total",
				Help: "Enrichment stage completions, labeled by phase and outcome.",
			},
			[]string{"phase", "outcome"},
		)

		enrichStageSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "discovery_enrich_stage_duration_seconds",
				Help:    "Histogram of enrichment stage latencies.",
				Buckets: []float64{0.05, 0.25, 1, 2, 5, 10, 30},
			},
			[]string{"phase"},
		)

		imageTierWinsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discovery_image_tier_wins_total",
				Help: "Which image fallback tier produced the hero image.",
			},
			[]string{"tier"},
		)

		heroUpsertsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discovery_hero_upserts_total",
				Help: "Hero upsert outcomes, labeled created|existing|race_lost.",
			},
			[]string{"outcome"},
		)

		relevanceRejectionTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "discovery_relevance_rejections_total",
				Help: "Candidates rejected by the group-profile matcher.",
			},
		)

		qualityRejectionTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "discovery_quality_rejections_total",
				Help: "Candidates rejected by the content quality validator.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetchBranch records one branch attempt.
func ObserveFetchBranch(branch, class string, duration time.Duration) {
	Init()
	fetchBranchesTotal.WithLabelValues(branch, class).Inc()
	fetchDurationSeconds.WithLabelValues(branch).Observe(duration.Seconds())
}

// ObserveEnrichStage records one enrichment stage completion.
func ObserveEnrichStage(phase string, ok bool, duration time.Duration) {
	Init()
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	enrichStagesTotal.WithLabelValues(phase, outcome).Inc()
	enrichStageSeconds.WithLabelValues(phase).Observe(duration.Seconds())
}

// ObserveImageTier records the tier that won the image fallback chain.
func ObserveImageTier(tier string) {
	Init()
	imageTierWinsTotal.WithLabelValues(tier).Inc()
}

// ObserveHeroUpsert records a hero upsert outcome.
func ObserveHeroUpsert(outcome string) {
	Init()
	heroUpsertsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRelevanceRejection counts a relevance-gate rejection.
func ObserveRelevanceRejection() {
	Init()
	relevanceRejectionTotal.Inc()
}

// ObserveQualityRejection counts a quality-gate rejection.
func ObserveQualityRejection() {
	Init()
	qualityRejectionTotal.Inc()
}

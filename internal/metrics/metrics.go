package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Wallet analysis metrics
	WalletsAnalyzed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletrank_wallets_analyzed_total",
			Help: "Total number of wallet analyses",
		},
		[]string{"status"}, // new, existing, invalid_invite, provider_error, error
	)

	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "walletrank_analysis_duration_seconds",
			Help:    "Duration of a full wallet analysis",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	// Score distribution (0-100 composite)
	CompositeScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "walletrank_composite_scores",
			Help:    "Distribution of composite wallet scores",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	RanksAssigned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletrank_ranks_assigned_total",
			Help: "Total number of ranks assigned",
		},
		[]string{"rank"},
	)

	// Provider metrics
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletrank_provider_requests_total",
			Help: "Total number of provider API requests",
		},
		[]string{"endpoint", "status"},
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "walletrank_provider_request_duration_seconds",
			Help:    "Duration of provider API requests",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	// Dataset cache metrics
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletrank_dataset_cache_lookups_total",
			Help: "Total number of dataset cache lookups",
		},
		[]string{"result"}, // hit, miss
	)

	// Invite code metrics
	InviteCodesGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "walletrank_invite_codes_generated_total",
			Help: "Total number of invite codes generated",
		},
	)

	ReferralStatsDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "walletrank_referral_stats_duration_seconds",
			Help:    "Duration of referral stats computation",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// System health
	HealthChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletrank_health_checks_total",
			Help: "Total number of health check requests",
		},
		[]string{"status"}, // healthy/unhealthy
	)
)

// RecordAnalysis records one wallet analysis
func RecordAnalysis(duration time.Duration, status string) {
	WalletsAnalyzed.WithLabelValues(status).Inc()
	AnalysisDuration.Observe(duration.Seconds())
}

// RecordScore records the composite score and rank assigned to a new user
func RecordScore(composite int, rank string) {
	CompositeScores.Observe(float64(composite))
	RanksAssigned.WithLabelValues(rank).Inc()
}

// RecordProviderRequest records a provider API request
func RecordProviderRequest(endpoint string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ProviderRequests.WithLabelValues(endpoint, status).Inc()
	ProviderRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordCacheLookup records a dataset cache hit or miss
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(result).Inc()
}

// RecordReferralStats records one referral stats computation
func RecordReferralStats(duration time.Duration) {
	ReferralStatsDuration.Observe(duration.Seconds())
}

// RecordHealthCheck records health check status
func RecordHealthCheck(healthy bool) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	HealthChecks.WithLabelValues(status).Inc()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "articles"

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	SnapshotsApplied = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "list_snapshots_applied_total", Help: "Collection snapshots applied by list view models."},
	)
	SubscriptionErrors = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "list_subscription_errors_total", Help: "Subscription failures seen by list view models."},
	)
	ActiveSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "list_active_subscriptions", Help: "Currently active list view models."},
	)
	Deletes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "delete_requests_total", Help: "Article delete attempts by result (cancelled, deleted, failed)."},
		[]string{"result"},
	)
	DetailFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "detail_fetches_total", Help: "Article detail fetches by outcome (found, not_found, failed)."},
		[]string{"outcome"},
	)
	SignIns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "sign_ins_total", Help: "Sign-in attempts by result."},
		[]string{"result"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(SnapshotsApplied)
	reg.MustRegister(SubscriptionErrors)
	reg.MustRegister(ActiveSubscriptions)
	reg.MustRegister(Deletes)
	reg.MustRegister(DetailFetches)
	reg.MustRegister(SignIns)
}

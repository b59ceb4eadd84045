package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ResponseTimeHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_time_seconds",
			Help:    "Histogram of response times",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	PurchasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_purchases_total",
			Help: "Purchases processed, by outcome",
		},
		[]string{"outcome"},
	)

	EarningsCreditedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_earnings_credited_total",
			Help: "Earning records credited, by level",
		},
		[]string{"level"},
	)

	CommissionAmountTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_commission_amount_total",
			Help: "Sum of credited commission amounts, by level",
		},
		[]string{"level"},
	)

	PurchaseDurationHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "referral_purchase_duration_seconds",
			Help:    "Time spent processing a purchase end to end",
			Buckets: prometheus.DefBuckets,
		},
	)

	UsersRegisteredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "referral_users_registered_total",
			Help: "Users registered",
		},
	)

	MirrorFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "referral_mirror_failures_total",
			Help: "Earnings that could not be posted to the external ledger",
		},
	)

	PushClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "referral_push_clients",
			Help: "Connected websocket clients",
		},
	)
)

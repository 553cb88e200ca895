package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	CredentialsIssued  prometheus.Counter
	GradeUpgrades      prometheus.Counter
	IssuerErrors       prometheus.Counter
	GroupsSynced       prometheus.Counter
	WebhookDuration    prometheus.Histogram
	IssuerCallDuration *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics. Use NewWith to register
// against a private registry in tests.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metric set on the given registerer.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CredentialsIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "credbridge_credentials_issued_total",
			Help: "Total number of credentials issued through the Issuer API",
		}),
		GradeUpgrades: factory.NewCounter(prometheus.CounterOpts{
			Name: "credbridge_grade_upgrades_total",
			Help: "Total number of grade evidence items upgraded in place",
		}),
		IssuerErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "credbridge_issuer_errors_total",
			Help: "Total number of failed Issuer API round-trips",
		}),
		GroupsSynced: factory.NewCounter(prometheus.CounterOpts{
			Name: "credbridge_groups_synced_total",
			Help: "Total number of course-to-group sync operations",
		}),
		WebhookDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "credbridge_webhook_duration_seconds",
			Help:    "Latency of host event webhook handling",
			Buckets: prometheus.DefBuckets,
		}),
		IssuerCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "credbridge_issuer_call_duration_seconds",
			Help:    "Latency of Issuer API calls by operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

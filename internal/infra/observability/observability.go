// Package observability exposes Prometheus metrics for the ledger daemon.
//
// Counters cover the balance-mutating operations (signups, referral credits,
// task purchases, daily claims) plus a per-operation error counter, so drift
// between operation volume and log growth is visible on a dashboard.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the ledger operation counters. A nil *Metrics is valid and
// records nothing, so wiring metrics stays optional.
type Metrics struct {
	Signups         prometheus.Counter
	ReferralCredits prometheus.Counter
	Purchases       prometheus.Counter
	Claims          prometheus.Counter
	Errors          *prometheus.CounterVec
}

// NewMetrics registers the ledger counters with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Signups: factory.NewCounter(prometheus.CounterOpts{
			Name: "earnly_signups_total",
			Help: "Accounts created.",
		}),
		ReferralCredits: factory.NewCounter(prometheus.CounterOpts{
			Name: "earnly_referral_credits_total",
			Help: "Referral bonuses credited to inviters.",
		}),
		Purchases: factory.NewCounter(prometheus.CounterOpts{
			Name: "earnly_task_purchases_total",
			Help: "Task subscriptions purchased.",
		}),
		Claims: factory.NewCounter(prometheus.CounterOpts{
			Name: "earnly_claims_total",
			Help: "Daily rewards claimed.",
		}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "earnly_operation_errors_total",
			Help: "Ledger operations that returned an error.",
		}, []string{"op"}),
	}
}

// ObserveSignup records a successful signup, with or without a referral.
func (m *Metrics) ObserveSignup(referred bool) {
	if m == nil {
		return
	}
	m.Signups.Inc()
	if referred {
		m.ReferralCredits.Inc()
	}
}

// ObservePurchase records a successful task purchase.
func (m *Metrics) ObservePurchase() {
	if m == nil {
		return
	}
	m.Purchases.Inc()
}

// ObserveClaim records a successful daily claim.
func (m *Metrics) ObserveClaim() {
	if m == nil {
		return
	}
	m.Claims.Inc()
}

// ObserveError records a failed ledger operation.
func (m *Metrics) ObserveError(op string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(op).Inc()
}

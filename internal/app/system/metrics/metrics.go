// Package metrics exposes Prometheus instruments for the membership
// lifecycle. All methods are safe on a nil *Metrics so components can run
// without instrumentation in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for registration, payments and renewals.
type Metrics struct {
	// Registration outcomes: provisioned, payment_required, duplicate, rolled_back, failed
	Registrations *prometheus.CounterVec

	// Fee completions by method and fee type
	FeesCompleted *prometheus.CounterVec

	// Payment callbacks refused by reason: signature, order_mismatch, already_completed
	PaymentsRejected *prometheus.CounterVec

	// Activations by kind: first, renewal
	Activations *prometheus.CounterVec

	// Renewal sweep results
	SweepDuration prometheus.Histogram
	Reminders     prometheus.Counter
	Expirations   prometheus.Counter

	// Notification dispatch results by kind and outcome
	Notifications *prometheus.CounterVec

	// Current user counts by tier and state, refreshed by a background job
	Members *prometheus.GaugeVec
	// Current open (pending) fee records
	PendingFees prometheus.Gauge
}

// New registers all instruments with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Registrations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "memberhub_registrations_total",
			Help: "Registration attempts by outcome",
		}, []string{"outcome"}),

		FeesCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "memberhub_fees_completed_total",
			Help: "Fee records moved to completed, by payment method and fee type",
		}, []string{"method", "fee_type"}),

		PaymentsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "memberhub_payments_rejected_total",
			Help: "Payment completions refused, by reason",
		}, []string{"reason"}),

		Activations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "memberhub_activations_total",
			Help: "Users moved from inactive to active",
		}, []string{"kind"}),

		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "memberhub_renewal_sweep_duration_seconds",
			Help:    "Duration of one renewal sweep pass",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),

		Reminders: f.NewCounter(prometheus.CounterOpts{
			Name: "memberhub_renewal_reminders_total",
			Help: "Renewal reminders dispatched",
		}),

		Expirations: f.NewCounter(prometheus.CounterOpts{
			Name: "memberhub_expirations_total",
			Help: "Users demoted to inactive at the end of their period",
		}),

		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "memberhub_notifications_total",
			Help: "Notification dispatch attempts by kind and outcome",
		}, []string{"kind", "outcome"}),

		Members: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "memberhub_members",
			Help: "Current users by tier and state",
		}, []string{"tier", "state"}),

		PendingFees: f.NewGauge(prometheus.GaugeOpts{
			Name: "memberhub_pending_fees",
			Help: "Fee records currently pending",
		}),
	}
}

func (m *Metrics) IncRegistration(outcome string) {
	if m != nil {
		m.Registrations.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncFeeCompleted(method, feeType string) {
	if m != nil {
		m.FeesCompleted.WithLabelValues(method, feeType).Inc()
	}
}

func (m *Metrics) IncPaymentRejected(reason string) {
	if m != nil {
		m.PaymentsRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncActivation(kind string) {
	if m != nil {
		m.Activations.WithLabelValues(kind).Inc()
	}
}

// ObserveSweep records one sweep pass.
func (m *Metrics) ObserveSweep(d time.Duration, reminders, expirations int) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(d.Seconds())
	m.Reminders.Add(float64(reminders))
	m.Expirations.Add(float64(expirations))
}

func (m *Metrics) IncNotification(kind, outcome string) {
	if m != nil {
		m.Notifications.WithLabelValues(kind, outcome).Inc()
	}
}

// SetMemberCount sets the gauge for one (tier, state) pair.
func (m *Metrics) SetMemberCount(tier, state string, n int64) {
	if m != nil {
		m.Members.WithLabelValues(tier, state).Set(float64(n))
	}
}

func (m *Metrics) SetPendingFees(n int64) {
	if m != nil {
		m.PendingFees.Set(float64(n))
	}
}

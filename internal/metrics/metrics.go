package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	CreditsSpent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quota_credits_spent_total",
			Help: "Credits charged for answered requests",
		},
	)
	QuotaExhausted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quota_exhausted_total",
			Help: "Requests refused because the balance was empty",
		},
	)
	RefillsGranted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quota_refills_granted_total",
			Help: "Daily refills actually applied",
		},
	)
	ReferralsRegistered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "referrals_registered_total",
			Help: "Referral edges created for the first time",
		},
	)
	MilestonesReached = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_milestones_reached_total",
			Help: "Referral milestones recorded for the first time",
		},
		[]string{"milestone"},
	)
	BroadcastDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_deliveries_total",
			Help: "Broadcast delivery attempts by outcome",
		},
		[]string{"outcome"},
	)
	CollaboratorFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collaborator_failures_total",
			Help: "Failed calls to OCR and answer generation",
		},
		[]string{"collaborator"},
	)
)

func init() {
	prometheus.MustRegister(CreditsSpent)
	prometheus.MustRegister(QuotaExhausted)
	prometheus.MustRegister(RefillsGranted)
	prometheus.MustRegister(ReferralsRegistered)
	prometheus.MustRegister(MilestonesReached)
	prometheus.MustRegister(BroadcastDeliveries)
	prometheus.MustRegister(CollaboratorFailures)
}

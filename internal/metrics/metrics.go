// Package metrics holds the Prometheus instruments for the registration and
// check-in flow. Collectors register with the default registry on import and
// are exposed on /metrics by the server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Check-in outcome label values.
const (
	OutcomeCheckedIn        = "checked_in"
	OutcomeAlreadyCheckedIn = "already_checked_in"
	OutcomeNotFound         = "not_found"
	OutcomeMalformed        = "malformed"
)

var (
	FormPublishes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eventdesk_form_publishes_total",
			Help: "Number of successful form publish operations.",
		})

	Registrations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eventdesk_registrations_total",
			Help: "Number of registrations created.",
		})

	RejectedSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventdesk_rejected_submissions_total",
			Help: "Submissions rejected before a registration was created, by reason.",
		}, []string{"reason"})

	TokenCollisions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eventdesk_token_collisions_total",
			Help: "Minted tokens discarded because they were already taken.",
		})

	CheckIns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventdesk_checkins_total",
			Help: "Check-in attempts by outcome.",
		}, []string{"outcome"})

	CodeArchiveJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventdesk_code_archive_jobs_total",
			Help: "QR archive jobs processed by the worker, by result.",
		}, []string{"result"})
)

func init() {
	prometheus.MustRegister(
		FormPublishes,
		Registrations,
		RejectedSubmissions,
		TokenCollisions,
		CheckIns,
		CodeArchiveJobs,
	)
}

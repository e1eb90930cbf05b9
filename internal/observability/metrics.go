package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ComplaintsSubmitted counts accepted submissions by category and routing
	// target (mp, local_deputy).
	ComplaintsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "complaints_submitted_total",
			Help: "Total number of complaints submitted.",
		},
		[]string{"category", "assigned_to"},
	)

	// ComplaintTransitions counts status changes by edge.
	ComplaintTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "complaint_transitions_total",
			Help: "Total number of complaint status transitions.",
		},
		[]string{"from", "to"},
	)

	// ComplaintForwards counts hand-offs by method (system, whatsapp, ministry).
	ComplaintForwards = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "complaint_forwards_total",
			Help: "Total number of complaint forwards.",
		},
		[]string{"method"},
	)

	// UnassignedComplaints counts submissions that resolved no official.
	UnassignedComplaints = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "complaints_unassigned_total",
			Help: "Complaints created without a resolvable official.",
		},
	)
)

func init() {
	prometheus.MustRegister(ComplaintsSubmitted, ComplaintTransitions, ComplaintForwards, UnassignedComplaints)
}

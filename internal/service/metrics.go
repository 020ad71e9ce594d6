package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reservationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_reservations_created_total",
		Help: "Reservations created, by flow",
	}, []string{"flow"})

	bookingsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_requests_rejected_total",
		Help: "Rejected booking requests, by error kind",
	}, []string{"kind"})

	statusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_status_transitions_total",
		Help: "Reservation status transitions, by target status",
	}, []string{"status"})

	paymentOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_payment_outcomes_total",
		Help: "Payment webhook outcomes, by normalized status",
	}, []string{"status"})

	notificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booking_notification_failures_total",
		Help: "Notifications that could not be delivered",
	})
)

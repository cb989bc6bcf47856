// Package metrics registers the Prometheus collectors for the payment flows.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IntentsCreated counts payment intents by type (contribution/escrow).
	IntentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "juntas_payment_intents_created_total",
		Help: "Payment intents created, by payment type.",
	}, []string{"type"})

	// EscrowsReleased counts captured escrow holds.
	EscrowsReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "juntas_escrows_released_total",
		Help: "Escrow holds captured by an admin.",
	})

	// Payouts counts settlement attempts by outcome
	// (completed/compensated).
	Payouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "juntas_payouts_total",
		Help: "Payout settlement attempts, by outcome.",
	}, []string{"outcome"})

	// ProcessorErrors counts failed calls to the payment processor.
	ProcessorErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "juntas_processor_errors_total",
		Help: "Errors returned by the payment processor.",
	})
)

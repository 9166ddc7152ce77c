package usecase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomePlaced      = "placed"
	outcomeInvalid     = "invalid_request"
	outcomeRejected    = "gateway_rejected"
	outcomeUnavailable = "gateway_unavailable"
	outcomeUnrecorded  = "charged_without_order"
)

var (
	checkoutOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_outcomes_total",
			Help: "Checkout attempts by terminal outcome",
		},
		[]string{"outcome"},
	)

	chargeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checkout_charge_duration_ms",
			Help:    "Time spent waiting on the payment gateway in ms",
			Buckets: []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000},
		},
	)
)

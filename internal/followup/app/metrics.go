package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	followupsScheduledCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "followup",
			Name:      "scheduled_total",
			Help:      "Total number of followup records created by the scheduler.",
		},
	)
	followupsProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "followup",
			Name:      "processed_total",
			Help:      "Total number of due followups handled, by outcome.",
		},
		[]string{"outcome"}, // sent, cancelled, error, skipped
	)
	followupProcessingDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "followup",
			Name:      "processing_duration_seconds",
			Help:      "Duration of single followup processing.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
	followupsCancelledCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "followup",
			Name:      "cancelled_total",
			Help:      "Total number of followups cancelled, by reason.",
		},
		[]string{"reason"},
	)
	followupsRetriedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "followup",
			Name:      "retried_total",
			Help:      "Total number of error followups re-queued by the retry service.",
		},
	)
)

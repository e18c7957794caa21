package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	evaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kestrel",
		Subsystem: "engine",
		Name:      "evaluations_total",
		Help:      "Evaluations completed, by catalogue and verdict severity.",
	}, []string{"catalogue", "severity"})

	signatureFaults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kestrel",
		Subsystem: "engine",
		Name:      "signature_faults_total",
		Help:      "Signature predicates that panicked and were skipped.",
	}, []string{"catalogue", "signature"})
)

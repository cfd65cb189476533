package analyzer

import "github.com/prometheus/client_golang/prometheus"

var (
	predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fakedetect",
			Subsystem: "analyzer",
			Name:      "predictions_total",
			Help:      "Total number of successful predictions by reported label",
		},
		[]string{"result"},
	)

	failuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fakedetect",
			Subsystem: "analyzer",
			Name:      "failures_total",
			Help:      "Total number of failed predictions by stage",
		},
		[]string{"stage"},
	)

	inferenceDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fakedetect",
			Subsystem: "analyzer",
			Name:      "inference_duration_seconds",
			Help:      "Duration of the forward pass in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	poolWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fakedetect",
			Subsystem: "analyzer",
			Name:      "pool_wait_seconds",
			Help:      "Time spent waiting for a free inference session",
			Buckets:   prometheus.DefBuckets,
		},
	)

	sessionsInUse = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fakedetect",
			Subsystem: "analyzer",
			Name:      "sessions_in_use",
			Help:      "Inference sessions currently running a forward pass",
		},
	)
)

func init() {
	prometheus.MustRegister(predictionsTotal, failuresTotal, inferenceDuration, poolWaitDuration, sessionsInUse)
}

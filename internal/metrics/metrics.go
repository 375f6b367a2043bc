package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels completed diagnoses.
	OutcomeSuccess = "success"
	// OutcomeError labels failed diagnoses (pipeline or dependency issues).
	OutcomeError = "error"
)

var (
	diagnosesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triage",
			Name:      "diagnoses_total",
			Help:      "Total number of diagnostic jobs handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	diagnosisDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "triage",
			Name:      "diagnosis_seconds",
			Help:      "Diagnostic pipeline latency in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 15, 20, 30, 45, 60},
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "triage",
			Name:      "queue_depth",
			Help:      "Number of requests waiting for a worker.",
		},
	)

	activeJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "triage",
			Name:      "active_jobs",
			Help:      "Number of diagnostic jobs currently processing.",
		},
	)

	caseRowsLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "triage",
			Name:      "case_rows_loaded",
			Help:      "Historical case rows loaded from the archive at startup.",
		},
	)

	caseRowsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "triage",
			Name:      "case_rows_skipped_total",
			Help:      "Malformed case rows skipped during archive load.",
		},
	)
)

// Register attaches triage collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		diagnosesTotal,
		diagnosisDurationSeconds,
		queueDepth,
		activeJobs,
		caseRowsLoaded,
		caseRowsSkipped,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveDiagnosis records a pipeline duration and outcome label.
func ObserveDiagnosis(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	diagnosesTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	diagnosisDurationSeconds.Observe(duration.Seconds())
}

// SetQueueDepth updates the queued-request gauge.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// SetActiveJobs updates the processing gauge.
func SetActiveJobs(n int) {
	activeJobs.Set(float64(n))
}

// SetCaseRows records the archive load outcome.
func SetCaseRows(loaded, skipped int) {
	caseRowsLoaded.Set(float64(loaded))
	caseRowsSkipped.Add(float64(skipped))
}

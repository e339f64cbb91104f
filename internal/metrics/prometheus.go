// Package metrics records batch scoring metrics in Prometheus form. A batch
// CLI has no scrape endpoint, so the registry is written out as a node
// exporter textfile when the run ends.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns the run metrics. A nil *Manager is valid and records nothing.
type Manager struct {
	namespace    string
	subsystem    string
	scoreBuckets []float64
	constLabels  map[string]string
	enabled      bool
	registry     *prometheus.Registry

	membersScored  *prometheus.CounterVec
	membersSkipped prometheus.Counter
	findings       *prometheus.CounterVec
	riskScore      prometheus.Histogram
	memberLatency  prometheus.Histogram
	recordsWritten prometheus.Counter
	phaseDuration  *prometheus.GaugeVec
	runs           *prometheus.CounterVec
	crossValDelta  prometheus.Histogram
}

// NewManager creates a metrics manager on its own registry unless WithRegistry is given.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:    "hcc",
		subsystem:    "scoring",
		scoreBuckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		constLabels:  map[string]string{},
		enabled:      true,
		registry:     prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.membersScored = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "members_scored_total",
		Help:        "Members scored, by sub-model",
		ConstLabels: m.constLabels,
	}, []string{"sub_model"})

	m.membersSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "members_skipped_total",
		Help:        "Members excluded because their input could not be scored",
		ConstLabels: m.constLabels,
	})

	m.findings = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "findings_total",
		Help:        "Non-fatal findings, by kind",
		ConstLabels: m.constLabels,
	}, []string{"kind"})

	m.riskScore = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "risk_score",
		Help:        "Distribution of member total risk scores",
		Buckets:     m.scoreBuckets,
		ConstLabels: m.constLabels,
	})

	m.memberLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "member_latency_seconds",
		Help:        "Time to score one member",
		Buckets:     prometheus.ExponentialBuckets(1e-6, 4, 10),
		ConstLabels: m.constLabels,
	})

	m.recordsWritten = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "records_written_total",
		Help:        "Score records committed to the store",
		ConstLabels: m.constLabels,
	})

	m.phaseDuration = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "phase_duration_seconds",
		Help:        "Wall time of the last execution of each pipeline phase",
		ConstLabels: m.constLabels,
	}, []string{"phase"})

	m.runs = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "runs_total",
		Help:        "Finished runs, by analysis type and final status",
		ConstLabels: m.constLabels,
	}, []string{"analysis_type", "status"})

	m.crossValDelta = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "crossval_abs_delta",
		Help:        "Absolute score difference between two scorers for the same member",
		Buckets:     []float64{1e-9, 1e-6, 1e-4, 1e-3, 0.01, 0.1, 1},
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) on() bool { return m != nil && m.enabled }

// RecordScored counts one scored member.
func (m *Manager) RecordScored(subModel string, score float64, took time.Duration) {
	if !m.on() {
		return
	}
	m.membersScored.WithLabelValues(subModel).Inc()
	m.riskScore.Observe(score)
	m.memberLatency.Observe(took.Seconds())
}

// RecordSkipped counts one skipped member.
func (m *Manager) RecordSkipped() {
	if !m.on() {
		return
	}
	m.membersSkipped.Inc()
}

// RecordFinding counts one finding of the given kind.
func (m *Manager) RecordFinding(kind string) {
	if !m.on() {
		return
	}
	m.findings.WithLabelValues(kind).Inc()
}

// RecordWritten adds committed records.
func (m *Manager) RecordWritten(n int64) {
	if !m.on() {
		return
	}
	m.recordsWritten.Add(float64(n))
}

// ObservePhase records how long a pipeline phase took.
func (m *Manager) ObservePhase(phase string, took time.Duration) {
	if !m.on() {
		return
	}
	m.phaseDuration.WithLabelValues(phase).Set(took.Seconds())
}

// RecordRun counts a run that reached a terminal status.
func (m *Manager) RecordRun(analysisType, status string) {
	if !m.on() {
		return
	}
	m.runs.WithLabelValues(analysisType, status).Inc()
}

// ObserveCrossValDelta records |a-b| for one cross-validated member.
func (m *Manager) ObserveCrossValDelta(delta float64) {
	if !m.on() {
		return
	}
	if delta < 0 {
		delta = -delta
	}
	m.crossValDelta.Observe(delta)
}

// Gatherer exposes the registry, e.g. for tests.
func (m *Manager) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes all metrics in the text exposition format to path.
func (m *Manager) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

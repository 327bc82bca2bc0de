package pipeline

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics exposes Prometheus instrumentation for a running
// Sequential: per-node queue depth and lifetime counters for produced
// items and errors. Observe fills in queue depth only; the Produced and
// Errors counters are left for the caller to increment. The HTTP
// pipeline-status endpoints do not read these metrics; they query each
// Node's monitoring accessors directly.
type PipelineMetrics struct {
	QueueDepth *prometheus.GaugeVec
	Produced   *prometheus.CounterVec
	Errors     *prometheus.CounterVec
}

// NewPipelineMetrics registers and returns a PipelineMetrics instance on
// reg. namespace prefixes every metric name (e.g. "survey_pipeline").
func NewPipelineMetrics(reg prometheus.Registerer, namespace string) *PipelineMetrics {
	m := &PipelineMetrics{
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of live payloads currently queued at a node's input.",
		}, []string{"node"}),
		Produced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "produced_total",
			Help:      "Total number of results a node has forwarded downstream.",
		}, []string{"node"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of processing-function failures a node has quarantined.",
		}, []string{"node"}),
	}
	reg.MustRegister(m.QueueDepth, m.Produced, m.Errors)
	return m
}

// Observe samples the current queue depth of every node in seq.
func (m *PipelineMetrics) Observe(seq *Sequential) {
	for _, n := range seq.Nodes() {
		m.QueueDepth.WithLabelValues(n.Name()).Set(float64(n.input.Size()))
	}
}

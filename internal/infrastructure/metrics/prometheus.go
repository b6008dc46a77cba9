package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"Encyclopedia/internal/domain"
	"Encyclopedia/internal/ports"
)

// Prometheus exposes engine activity as Prometheus collectors.
type Prometheus struct {
	versions    prometheus.Counter
	decisions   *prometheus.CounterVec
	generations *prometheus.CounterVec
	lastBatch   *prometheus.GaugeVec
}

var _ ports.Metrics = (*Prometheus)(nil)

// NewPrometheus registers the collectors with reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	m := &Prometheus{
		versions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "encyclopedia_versions_appended_total",
			Help: "Total number of article versions appended.",
		}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "encyclopedia_revision_decisions_total",
			Help: "Moderation decisions by outcome.",
		}, []string{"outcome"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "encyclopedia_generation_items_total",
			Help: "Generated articles by outcome.",
		}, []string{"outcome"}),
		lastBatch: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "encyclopedia_last_batch_articles",
			Help: "Articles created and unmet by the most recent batch.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.versions, m.decisions, m.generations, m.lastBatch)
	return m
}

func (m *Prometheus) VersionAppended() { m.versions.Inc() }

func (m *Prometheus) RevisionDecided(outcome domain.RevisionStatus) {
	m.decisions.WithLabelValues(string(outcome)).Inc()
}

func (m *Prometheus) GenerationItem(outcome string) {
	m.generations.WithLabelValues(outcome).Inc()
}

func (m *Prometheus) BatchFinished(result domain.BatchResult) {
	m.lastBatch.WithLabelValues("created").Set(float64(result.Created))
	m.lastBatch.WithLabelValues("unmet").Set(float64(result.Unmet()))
}

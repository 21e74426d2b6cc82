package regalloc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts allocator activity. Collectors are safe to share between
// concurrent compilations; a nil *Metrics records nothing.
type Metrics struct {
	attempts    prometheus.Counter
	spills      prometheus.Counter
	results     *prometheus.CounterVec
	spillRounds prometheus.Histogram
}

// NewMetrics registers the allocator collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		attempts: f.NewCounter(prometheus.CounterOpts{
			Name: "ralph_ra_attempts_total",
			Help: "Coloring attempts, including retries after spilling.",
		}),
		spills: f.NewCounter(prometheus.CounterOpts{
			Name: "ralph_ra_spills_total",
			Help: "Values spilled to scratch memory.",
		}),
		results: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ralph_ra_allocations_total",
			Help: "Finished allocations by result.",
		}, []string{"result"}),
		spillRounds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ralph_ra_spill_iterations",
			Help:    "Spill iterations needed by successful allocations.",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
		}),
	}
}

func (m *Metrics) attempt() {
	if m != nil {
		m.attempts.Inc()
	}
}

func (m *Metrics) spill() {
	if m != nil {
		m.spills.Inc()
	}
}

func (m *Metrics) done(result string, iterations int) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(result).Inc()
	if result == "ok" {
		m.spillRounds.Observe(float64(iterations))
	}
}

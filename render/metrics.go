package render

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/soypat/brep/dc"
)

const stateLabel = "state"

// Metrics instruments builds. A nil *Metrics records nothing.
type Metrics struct {
	intervals     *prometheus.CounterVec
	leaves        *prometheus.CounterVec
	collapses     *prometheus.CounterVec
	buildDuration prometheus.Histogram
}

// NewMetrics registers build metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		intervals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brep_interval_evaluations_total",
			Help: "The total number of cells classified by interval evaluation.",
		}, []string{stateLabel}),

		leaves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brep_leaf_evaluations_total",
			Help: "The total number of cells evaluated as leaves.",
		}, []string{stateLabel}),

		collapses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brep_collapse_attempts_total",
			Help: "The total number of attempts to merge the children of a branch.",
		}, []string{"collapsed"}),

		buildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "brep_build_duration_seconds",
			Help:    "The time taken to build a cell tree.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
}

func (m *Metrics) observeInterval(s dc.State) {
	if m == nil {
		return
	}
	m.intervals.With(prometheus.Labels{stateLabel: s.String()}).Inc()
}

func (m *Metrics) observeLeaf(s dc.State) {
	if m == nil {
		return
	}
	m.leaves.With(prometheus.Labels{stateLabel: s.String()}).Inc()
}

func (m *Metrics) observeCollapse(ok bool) {
	if m == nil {
		return
	}
	label := "false"
	if ok {
		label = "true"
	}
	m.collapses.With(prometheus.Labels{"collapsed": label}).Inc()
}

func (m *Metrics) observeBuild(d time.Duration) {
	if m == nil {
		return
	}
	m.buildDuration.Observe(d.Seconds())
}

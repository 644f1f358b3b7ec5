// Package metrics exports scheduler activity as Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"phasebot/pkg/encounter"
)

const namespace = "phasebot"

// Metrics implements encounter.Observer on a private registry. Scheduler
// names of the form "name#id" are reported under "name" to bound label
// cardinality.
type Metrics struct {
	reg *prometheus.Registry

	eventsFired  *prometheus.CounterVec
	tasksFired   *prometheus.CounterVec
	tasksDropped *prometheus.CounterVec
	phases       *prometheus.CounterVec
	ended        *prometheus.CounterVec
	tickWork     *prometheus.HistogramVec
	tickLag      prometheus.Histogram
	overruns     prometheus.Counter
}

var _ encounter.Observer = (*Metrics)(nil)

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		eventsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_fired_total",
			Help:      "Timed events delivered to a handler.",
		}, []string{"encounter", "phase"}),
		tasksFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_fired_total",
			Help:      "Continuations run.",
		}, []string{"encounter"}),
		tasksDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_dropped_total",
			Help:      "Continuations discarded by a validator.",
		}, []string{"encounter", "reason"}),
		phases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_entries_total",
			Help:      "Phase transitions.",
		}, []string{"encounter", "phase"}),
		ended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encounters_ended_total",
			Help:      "Encounters that ended.",
		}, []string{"encounter"}),
		tickWork: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_work_items",
			Help:      "Events plus continuations run per scheduler tick.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32},
		}, []string{"encounter"}),
		tickLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time spent in one world tick.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
		overruns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tick_overruns_total",
			Help:      "Realtime ticks that took longer than the tick interval.",
		}),
	}
	m.reg.MustRegister(
		m.eventsFired, m.tasksFired, m.tasksDropped, m.phases, m.ended,
		m.tickWork, m.tickLag, m.overruns,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry exposes the private registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) EventFired(name string, _ encounter.EventID, p encounter.Phase) {
	m.eventsFired.WithLabelValues(base(name), strconv.Itoa(int(p))).Inc()
}

func (m *Metrics) TaskFired(name string, _ encounter.Group) {
	m.tasksFired.WithLabelValues(base(name)).Inc()
}

func (m *Metrics) TaskDropped(name string, _ encounter.Group, reason encounter.DropReason) {
	m.tasksDropped.WithLabelValues(base(name), string(reason)).Inc()
}

func (m *Metrics) PhaseEntered(name string, p encounter.Phase) {
	m.phases.WithLabelValues(base(name), strconv.Itoa(int(p))).Inc()
}

func (m *Metrics) Ended(name string) {
	m.ended.WithLabelValues(base(name)).Inc()
}

func (m *Metrics) Ticked(name string, _ time.Duration, events, tasks int) {
	m.tickWork.WithLabelValues(base(name)).Observe(float64(events + tasks))
}

// ObserveTick records the wall time of one world tick.
func (m *Metrics) ObserveTick(d time.Duration) { m.tickLag.Observe(d.Seconds()) }

// Overrun counts a realtime tick that ran late.
func (m *Metrics) Overrun() { m.overruns.Inc() }

func base(name string) string {
	if i := strings.LastIndexByte(name, '#'); i > 0 {
		return name[:i]
	}
	return name
}

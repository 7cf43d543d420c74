// Package metrics exposes reprogramming activity as Prometheus
// metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/frobware/go-flowreprog/compute"
)

const namespace = "flowreprog"

// Metrics holds the reprogrammer collectors. It implements
// reprogrammer.Recorder.
type Metrics struct {
	Updates  *prometheus.CounterVec
	Outcomes *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	Pending  prometheus.GaugeFunc
}

// New creates the collectors and registers them with reg. pending is
// sampled at scrape time and must be safe to call from any goroutine.
func New(reg prometheus.Registerer, pending func() int) (*Metrics, error) {
	m := &Metrics{
		Updates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reprogrammer",
				Name:      "updates_total",
				Help:      "UpdateFlow calls by kind (install, reprogram, retarget, noop, fallback, refused)",
			},
			[]string{"kind"},
		),
		Outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reprogrammer",
				Name:      "outcomes_total",
				Help:      "Finished reprogramming requests by outcome and cause",
			},
			[]string{"outcome", "cause"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "reprogrammer",
				Name:      "duration_seconds",
				Help:      "Time from UpdateFlow to the end of the request",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"outcome"},
		),
		Pending: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "reprogrammer",
				Name:      "pending",
				Help:      "Flows currently being reprogrammed",
			},
			func() float64 { return float64(pending()) },
		),
	}

	for _, c := range []prometheus.Collector{m.Updates, m.Outcomes, m.Duration, m.Pending} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// UpdateRequested counts an UpdateFlow call.
func (m *Metrics) UpdateRequested(kind string) {
	m.Updates.WithLabelValues(kind).Inc()
}

// RequestFinished records a finished request.
func (m *Metrics) RequestFinished(o compute.Outcome, elapsed time.Duration) {
	cause := string(o.Cause)
	if cause == "" {
		cause = "none"
	}
	m.Outcomes.WithLabelValues(o.Kind.String(), cause).Inc()
	m.Duration.WithLabelValues(o.Kind.String()).Observe(elapsed.Seconds())
}

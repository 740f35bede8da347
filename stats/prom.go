package stats

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bjaus/hoard"
)

// PromSink exports outcome counts as a Prometheus counter vector
// labeled by operation and result.
type PromSink struct {
	outcomes *prometheus.CounterVec
}

// Compile-time interface assertion.
var _ hoard.Sink = (*PromSink)(nil)

// NewProm builds a Prometheus-backed sink and registers its collector
// with reg. Use prometheus.DefaultRegisterer outside of tests.
func NewProm(namespace string, reg prometheus.Registerer) (*PromSink, error) {
	s := &PromSink{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "outcomes_total",
			Help:      "Number of cache operation outcomes by operation and result.",
		}, []string{"op", "result"}),
	}
	if err := reg.Register(s.outcomes); err != nil {
		return nil, err
	}
	return s, nil
}

// Record implements hoard.Sink.
func (s *PromSink) Record(ev hoard.Event) {
	s.outcomes.WithLabelValues(string(ev.Op), string(ev.Result)).Inc()
}

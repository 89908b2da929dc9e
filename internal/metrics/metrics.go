// Package metrics counts the outcomes of the WS-Security pipelines.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sirosfoundation/go-wssec/pkg/security"
)

// Metrics implements wss.Recorder with Prometheus counters.
type Metrics struct {
	messages   *prometheus.CounterVec
	violations prometheus.Counter
}

// New creates the counters and registers them on reg.
func New(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Counter of processed messages by direction and outcome.",
		}, []string{"direction", "outcome"}),
		violations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_violations_total",
			Help:      "Counter of violated policy assertions.",
		}),
	}
	for _, c := range []prometheus.Collector{m.messages, m.violations} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MessageProcessed counts a message under the kind of err, "ok" for nil.
func (m *Metrics) MessageProcessed(direction string, err error) {
	m.messages.WithLabelValues(direction, security.ErrorKind(err)).Inc()
}

// PolicyViolations adds n to the policy violation counter.
func (m *Metrics) PolicyViolations(n int) {
	m.violations.Add(float64(n))
}

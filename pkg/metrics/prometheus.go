package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus exports observations as a latency histogram and an error
// counter, both labelled by operation.
type Prometheus struct {
	opLatency *prometheus.HistogramVec
	opErrors  *prometheus.CounterVec
}

// NewPrometheus registers the collectors on reg.
func NewPrometheus(reg prometheus.Registerer, namespace string) (*Prometheus, error) {
	p := &Prometheus{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of record codec operations.",
			Buckets:   prometheus.ExponentialBuckets(0.000_001, 4, 10),
		}, []string{"op"}),
		opErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Number of failed record codec operations.",
		}, []string{"op"}),
	}

	for _, c := range []prometheus.Collector{p.opLatency, p.opErrors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) Observe(op string, duration time.Duration, err error) {
	p.opLatency.WithLabelValues(op).Observe(duration.Seconds())
	if err != nil {
		p.opErrors.WithLabelValues(op).Inc()
	}
}

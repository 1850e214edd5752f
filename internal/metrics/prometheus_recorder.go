package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once         sync.Once
	passDuration *prom.HistogramVec
	passOutcomes *prom.CounterVec
	records      *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.passDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "retentiond",
			Name:      "pass_duration_seconds",
			Help:      "Duration of retention passes",
			Buckets:   prom.DefBuckets,
		}, []string{"pass"})
		pr.passOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "retentiond",
			Name:      "pass_outcomes_total",
			Help:      "Retention pass results by outcome",
		}, []string{"pass", "outcome"})
		pr.records = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "retentiond",
			Name:      "records_total",
			Help:      "Retention records moved, by pass and operation",
		}, []string{"pass", "op"})
		reg.MustRegister(pr.passDuration, pr.passOutcomes, pr.records)
	})
	return pr
}

func (p *PrometheusRecorder) ObservePassDuration(pass string, d time.Duration) {
	if p == nil || p.passDuration == nil {
		return
	}
	p.passDuration.WithLabelValues(pass).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPassOutcome(pass string, outcome OutcomeLabel) {
	if p == nil || p.passOutcomes == nil {
		return
	}
	p.passOutcomes.WithLabelValues(pass, string(outcome)).Inc()
}

func (p *PrometheusRecorder) AddRecords(pass, op string, n int) {
	if p == nil || p.records == nil || n <= 0 {
		return
	}
	p.records.WithLabelValues(pass, op).Add(float64(n))
}

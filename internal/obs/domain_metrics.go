package obs

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// RecomputeTotal counts distribution charge recompute outcomes.
	RecomputeTotal *prometheus.CounterVec
	// RecomputeDuration records recompute latency in milliseconds.
	RecomputeDuration prometheus.Histogram
	// AdjustmentsWritten counts adjustments persisted per recompute scope.
	AdjustmentsWritten *prometheus.CounterVec
	// TagRuleEvaluations counts tag rule filter evaluations by rule kind.
	TagRuleEvaluations *prometheus.CounterVec
	// RecomputeJobsEnqueued counts recompute jobs scheduled from domain events.
	RecomputeJobsEnqueued prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		RecomputeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "distribution_recompute_total",
			Help:      "Count of distribution charge recompute outcomes.",
		}, []string{"result"})
		RecomputeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "distribution_recompute_duration_ms",
			Help:      "Latency of distribution charge recomputes in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		})
		AdjustmentsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adjustments_written_total",
			Help:      "Adjustments persisted by recomputes, by scope.",
		}, []string{"scope"})
		TagRuleEvaluations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tag_rule_evaluations_total",
			Help:      "Tag rule filter evaluations by rule kind.",
		}, []string{"kind"})
		RecomputeJobsEnqueued = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recompute_jobs_enqueued_total",
			Help:      "Recompute jobs scheduled from domain events.",
		})

		mustRegisterCollector(reg, RecomputeTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RecomputeTotal = v
			}
		})
		mustRegisterCollector(reg, RecomputeDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				RecomputeDuration = v
			}
		})
		mustRegisterCollector(reg, AdjustmentsWritten, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				AdjustmentsWritten = v
			}
		})
		mustRegisterCollector(reg, TagRuleEvaluations, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				TagRuleEvaluations = v
			}
		})
		mustRegisterCollector(reg, RecomputeJobsEnqueued, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				RecomputeJobsEnqueued = v
			}
		})
	})
}

// ObserveRecompute records one recompute outcome. Safe to call before
// MustRegisterDomainMetrics; it is a no-op until collectors exist.
func ObserveRecompute(elapsed time.Duration, err error) {
	if RecomputeTotal == nil || RecomputeDuration == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	RecomputeTotal.WithLabelValues(result).Inc()
	RecomputeDuration.Observe(DurationMillis(elapsed))
}

// CountTagRuleEvaluation records one filter evaluation for the rule kind.
func CountTagRuleEvaluation(kind string) {
	if TagRuleEvaluations == nil {
		return
	}
	TagRuleEvaluations.WithLabelValues(kind).Inc()
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}

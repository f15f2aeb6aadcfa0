package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once sync.Once

	taskOutcomes     *prom.CounterVec
	taskDuration     *prom.HistogramVec
	queueDepth       prom.Gauge
	adapterCalls     *prom.CounterVec
	retries          *prom.CounterVec
	retriesExhausted *prom.CounterVec
	restarts         *prom.CounterVec
	restartCount     prom.Gauge
	advisorCalls     *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg.
// Each call registers a fresh set, so calling it twice with the same
// registry panics on the duplicate registration.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.taskOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "depwatch",
			Name:      "task_outcomes_total",
			Help:      "Reconciliation task outcomes by ecosystem and outcome",
		}, []string{"ecosystem", "outcome"})
		pr.taskDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "depwatch",
			Name:      "task_duration_seconds",
			Help:      "Duration of reconciliation task handling",
			Buckets:   prom.DefBuckets,
		}, []string{"ecosystem"})
		pr.queueDepth = prom.NewGauge(prom.GaugeOpts{
			Namespace: "depwatch",
			Name:      "task_queue_depth",
			Help:      "Current number of pending tasks in the queue",
		})
		pr.adapterCalls = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "depwatch",
			Name:      "adapter_invocations_total",
			Help:      "Package manager adapter invocations by ecosystem, action, and result",
		}, []string{"ecosystem", "action", "result"})
		pr.retries = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "depwatch",
			Name:      "adapter_retries_total",
			Help:      "Total adapter call retries (transient failures)",
		}, []string{"stage"})
		pr.retriesExhausted = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "depwatch",
			Name:      "adapter_retry_exhausted_total",
			Help:      "Count of stages where retries were exhausted",
		}, []string{"stage"})
		pr.restarts = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "depwatch",
			Name:      "supervisor_restarts_total",
			Help:      "Daemon restarts performed by the supervisor, by reason",
		}, []string{"reason"})
		pr.restartCount = prom.NewGauge(prom.GaugeOpts{
			Namespace: "depwatch",
			Name:      "supervisor_restart_count",
			Help:      "Cumulative restart count tracked in WatchdogState",
		})
		pr.advisorCalls = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "depwatch",
			Name:      "advisor_calls_total",
			Help:      "Advisor analyze calls by result",
		}, []string{"result"})
		reg.MustRegister(pr.taskOutcomes, pr.taskDuration, pr.queueDepth, pr.adapterCalls,
			pr.retries, pr.retriesExhausted, pr.restarts, pr.restartCount, pr.advisorCalls)
	})
	return pr
}

func (p *PrometheusRecorder) IncTaskOutcome(ecosystem string, outcome TaskOutcome) {
	if p == nil || p.taskOutcomes == nil {
		return
	}
	p.taskOutcomes.WithLabelValues(ecosystem, string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveTaskDuration(ecosystem string, d time.Duration) {
	if p == nil || p.taskDuration == nil {
		return
	}
	p.taskDuration.WithLabelValues(ecosystem).Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetQueueDepth(n int) {
	if p == nil || p.queueDepth == nil {
		return
	}
	p.queueDepth.Set(float64(n))
}

func (p *PrometheusRecorder) IncAdapterInvocation(ecosystem, action string, ok bool) {
	if p == nil || p.adapterCalls == nil {
		return
	}
	result := "failure"
	if ok {
		result = "success"
	}
	p.adapterCalls.WithLabelValues(ecosystem, action, result).Inc()
}

func (p *PrometheusRecorder) IncBuildRetry(stage string) {
	if p == nil || p.retries == nil {
		return
	}
	p.retries.WithLabelValues(stage).Inc()
}

func (p *PrometheusRecorder) IncBuildRetryExhausted(stage string) {
	if p == nil || p.retriesExhausted == nil {
		return
	}
	p.retriesExhausted.WithLabelValues(stage).Inc()
}

func (p *PrometheusRecorder) IncRestart(reason string) {
	if p == nil || p.restarts == nil {
		return
	}
	p.restarts.WithLabelValues(reason).Inc()
}

func (p *PrometheusRecorder) SetRestartCount(n int) {
	if p == nil || p.restartCount == nil {
		return
	}
	p.restartCount.Set(float64(n))
}

func (p *PrometheusRecorder) IncAdvisorCall(ok bool) {
	if p == nil || p.advisorCalls == nil {
		return
	}
	result := "failure"
	if ok {
		result = "success"
	}
	p.advisorCalls.WithLabelValues(result).Inc()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for flowbench
type Metrics struct {
	// Sandbox execution metrics
	SandboxExecutions *prometheus.CounterVec
	SandboxDuration   *prometheus.HistogramVec
	SandboxTimeouts   *prometheus.CounterVec

	// Scheduler metrics
	SchedulerTasks        *prometheus.CounterVec
	SchedulerTaskDuration *prometheus.HistogramVec

	// Batch processing metrics
	BatchItems    *prometheus.CounterVec
	BatchFailures *prometheus.CounterVec

	// Aggregation metrics
	Aggregations *prometheus.CounterVec

	// Agent invocation metrics
	AgentCalls   *prometheus.CounterVec
	AgentLatency *prometheus.HistogramVec
	AgentTokens  *prometheus.CounterVec

	// Pipeline metrics
	StepExecutions *prometheus.CounterVec
	StepDuration   *prometheus.HistogramVec
	SampleRuns     *prometheus.CounterVec
	SampleDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		// Sandbox metrics
		SandboxExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowbench_sandbox_executions_total",
				Help: "Total number of sandbox executions",
			},
			[]string{"language", "status"},
		),
		SandboxDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowbench_sandbox_duration_seconds",
				Help:    "Sandbox execution duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"language"},
		),
		SandboxTimeouts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowbench_sandbox_timeouts_total",
				Help: "Total number of sandbox executions terminated on timeout",
			},
			[]string{"language"},
		),

		// Scheduler metrics
		SchedulerTasks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowbench_scheduler_tasks_total",
				Help: "Total number of scheduled tasks by terminal status",
			},
			[]string{"status"},
		),
		SchedulerTaskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowbench_scheduler_task_duration_seconds",
				Help:    "Task execution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{},
		),

		// Batch metrics
		BatchItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowbench_batch_items_total",
				Help: "Total number of batch items processed",
			},
			[]string{"mode"},
		),
		BatchFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowbench_batch_failures_total",
				Help: "Total number of batch items degraded to failure sentinels",
			},
			[]string{"mode"},
		),

		// Aggregation metrics
		Aggregations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowbench_aggregations_total",
				Help: "Total number of aggregation calls",
			},
			[]string{"strategy", "success"},
		),

		// Agent metrics
		AgentCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowbench_agent_calls_total",
				Help: "Total number of agent flow invocations",
			},
			[]string{"flow", "success"},
		),
		AgentLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowbench_agent_latency_seconds",
				Help:    "Agent flow invocation latency in seconds",
				Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"flow"},
		),
		AgentTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowbench_agent_tokens_total",
				Help: "Total token usage reported by agent flows",
			},
			[]string{"token_type"},
		),

		// Pipeline metrics
		StepExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowbench_step_executions_total",
				Help: "Total number of pipeline step executions",
			},
			[]string{"kind", "success"},
		),
		StepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowbench_step_duration_seconds",
				Help:    "Pipeline step duration in seconds",
				Buckets: []float64{0.05, 0.25, 1.0, 5.0, 15.0, 60.0, 300.0},
			},
			[]string{"kind"},
		),
		SampleRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowbench_sample_runs_total",
				Help: "Total number of evaluated samples by outcome",
			},
			[]string{"status"},
		),
		SampleDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowbench_sample_duration_seconds",
				Help:    "Per-sample pipeline duration in seconds",
				Buckets: []float64{0.1, 0.5, 1.0, 5.0, 15.0, 60.0, 300.0},
			},
			[]string{},
		),
	}
}

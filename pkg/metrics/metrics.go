// Package metrics exposes the engine's Prometheus metrics: queue depth,
// active workers, cycle count, and task completion/failure counters. The
// collector shape (config-driven optional HTTP server, enabled/disabled
// no-op mode, Shutdown(ctx)) is grounded on the pack's
// internal/infra/observability metrics collector.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config controls whether metrics are collected and, if so, whether they
// are served over HTTP.
type Config struct {
	Enabled        bool
	PrometheusPort int
}

// Collector owns the engine's metric instruments. A disabled Collector is a
// safe no-op: every Record/Set/Increment method can be called unconditionally.
type Collector struct {
	enabled bool
	server  *http.Server

	queueDepth      prometheus.Gauge
	activeWorkers   prometheus.Gauge
	cycleCount      prometheus.Counter
	tasksCompleted  *prometheus.CounterVec
	tasksFailed     *prometheus.CounterVec
	taskDuration    *prometheus.HistogramVec
	planExecutions  *prometheus.CounterVec
	reactCycleTotal prometheus.Counter
}

// New builds a Collector. If cfg.Enabled and cfg.PrometheusPort > 0 it also
// starts a background HTTP server exposing /metrics; a zero port means
// metrics are collected in-process without a server (useful for tests).
func New(cfg Config) (*Collector, error) {
	c := &Collector{enabled: cfg.Enabled}
	if !cfg.Enabled {
		return c, nil
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	c.queueDepth = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "loopagent",
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Number of tasks currently pending or ready in the task queue.",
	})
	c.activeWorkers = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "loopagent",
		Subsystem: "queue",
		Name:      "active_workers",
		Help:      "Number of tasks currently running.",
	})
	c.cycleCount = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "loopagent",
		Subsystem: "lifecycle",
		Name:      "cycles_total",
		Help:      "Number of main cycle loop iterations completed.",
	})
	c.tasksCompleted = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loopagent",
		Subsystem: "queue",
		Name:      "tasks_completed_total",
		Help:      "Number of tasks completed successfully, by task type.",
	}, []string{"task_type"})
	c.tasksFailed = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loopagent",
		Subsystem: "queue",
		Name:      "tasks_failed_total",
		Help:      "Number of tasks that failed, by task type.",
	}, []string{"task_type"})
	c.taskDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "loopagent",
		Subsystem: "queue",
		Name:      "task_duration_seconds",
		Help:      "Task execution duration in seconds, by task type.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"task_type"})
	c.planExecutions = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loopagent",
		Subsystem: "planner",
		Name:      "plan_executions_total",
		Help:      "Number of plan executions, by terminal status.",
	}, []string{"status"})
	c.reactCycleTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "loopagent",
		Subsystem: "planner",
		Name:      "react_cycles_total",
		Help:      "Number of ReAct cycles run across all subtasks.",
	})

	if cfg.PrometheusPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		c.server = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.PrometheusPort),
			Handler: mux,
		}
		go func() {
			_ = c.server.ListenAndServe()
		}()
	}

	return c, nil
}

// Shutdown stops the metrics HTTP server, if one was started.
func (c *Collector) Shutdown(ctx context.Context) error {
	if c == nil || c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}

// SetQueueDepth records the current number of pending+ready tasks.
func (c *Collector) SetQueueDepth(n int) {
	if !c.enabled {
		return
	}
	c.queueDepth.Set(float64(n))
}

// SetActiveWorkers records the current number of running tasks.
func (c *Collector) SetActiveWorkers(n int) {
	if !c.enabled {
		return
	}
	c.activeWorkers.Set(float64(n))
}

// RecordCycle increments the lifecycle cycle counter.
func (c *Collector) RecordCycle() {
	if !c.enabled {
		return
	}
	c.cycleCount.Inc()
}

// RecordTaskCompletion records a terminal task outcome and its duration.
func (c *Collector) RecordTaskCompletion(taskType string, succeeded bool, duration time.Duration) {
	if !c.enabled {
		return
	}
	if succeeded {
		c.tasksCompleted.WithLabelValues(taskType).Inc()
	} else {
		c.tasksFailed.WithLabelValues(taskType).Inc()
	}
	c.taskDuration.WithLabelValues(taskType).Observe(duration.Seconds())
}

// RecordPlanExecution records a plan's terminal status.
func (c *Collector) RecordPlanExecution(status string) {
	if !c.enabled {
		return
	}
	c.planExecutions.WithLabelValues(status).Inc()
}

// RecordReActCycle increments the total ReAct cycle counter.
func (c *Collector) RecordReActCycle() {
	if !c.enabled {
		return
	}
	c.reactCycleTotal.Inc()
}

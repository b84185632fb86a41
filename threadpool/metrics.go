package threadpool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for thread pools. One Metrics value
// can be shared by several pools; series are told apart by pool_name.
type Metrics struct {
	TasksSubmitted *prometheus.CounterVec
	TasksCompleted *prometheus.CounterVec
	TasksFailed    *prometheus.CounterVec
	TasksAbandoned *prometheus.CounterVec
	TaskDuration   *prometheus.HistogramVec
	QueueSize      *prometheus.GaugeVec
	ActiveWorkers  *prometheus.GaugeVec
	WorkerCount    *prometheus.GaugeVec
}

// NewMetrics creates the thread pool metrics and registers them with reg.
// A nil reg registers with the Prometheus default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		TasksSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "threadpool_tasks_submitted_total",
				Help: "Total number of tasks submitted to the thread pool",
			},
			[]string{"pool_name"},
		),
		TasksCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "threadpool_tasks_completed_total",
				Help: "Total number of tasks completed by the thread pool",
			},
			[]string{"pool_name", "status"},
		),
		TasksFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "threadpool_tasks_failed_total",
				Help: "Total number of tasks that returned an error or panicked",
			},
			[]string{"pool_name"},
		),
		TasksAbandoned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "threadpool_tasks_abandoned_total",
				Help: "Total number of queued tasks dropped when the pool was closed",
			},
			[]string{"pool_name"},
		),
		TaskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "threadpool_task_duration_seconds",
				Help:    "Duration of task execution in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"pool_name"},
		),
		QueueSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "threadpool_queue_size",
				Help: "Current number of tasks in the queue",
			},
			[]string{"pool_name"},
		),
		ActiveWorkers: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "threadpool_active_workers",
				Help: "Current number of workers executing a task",
			},
			[]string{"pool_name"},
		),
		WorkerCount: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "threadpool_worker_count",
				Help: "Total number of workers in the pool",
			},
			[]string{"pool_name"},
		),
	}
}

// The record helpers below accept a nil receiver so the pool can call them
// unconditionally.

func (m *Metrics) recordSubmitted(poolName string) {
	if m == nil {
		return
	}
	m.TasksSubmitted.WithLabelValues(poolName).Inc()
}

func (m *Metrics) recordCompleted(poolName string, err error, seconds float64) {
	if m == nil {
		return
	}
	m.TaskDuration.WithLabelValues(poolName).Observe(seconds)
	if err != nil {
		m.TasksFailed.WithLabelValues(poolName).Inc()
		m.TasksCompleted.WithLabelValues(poolName, "failed").Inc()
		return
	}
	m.TasksCompleted.WithLabelValues(poolName, "success").Inc()
}

func (m *Metrics) recordAbandoned(poolName string, n int) {
	if m == nil {
		return
	}
	m.TasksAbandoned.WithLabelValues(poolName).Add(float64(n))
}

func (m *Metrics) setQueueSize(poolName string, size int) {
	if m == nil {
		return
	}
	m.QueueSize.WithLabelValues(poolName).Set(float64(size))
}

func (m *Metrics) setActiveWorkers(poolName string, count int) {
	if m == nil {
		return
	}
	m.ActiveWorkers.WithLabelValues(poolName).Set(float64(count))
}

func (m *Metrics) setWorkerCount(poolName string, count int) {
	if m == nil {
		return
	}
	m.WorkerCount.WithLabelValues(poolName).Set(float64(count))
}

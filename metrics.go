// Metrics for RxLite
// 调度器与订阅注册表的Prometheus指标
package rxlite

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace    = "rxlite"
	subsystemScheduler  = "scheduler"
	labelSchedulerName  = "scheduler"
	subsystemRegistry   = "registry"
	taskDurationBuckets = 12
)

// Metrics 调度器任务计数、任务耗时与存活订阅数。
// 所有方法对nil接收者安全，未配置指标的调度器不会上报。
type Metrics struct {
	tasksScheduled    *prometheus.CounterVec
	tasksCompleted    *prometheus.CounterVec
	tasksPanicked     *prometheus.CounterVec
	tasksRejected     *prometheus.CounterVec
	taskDuration      *prometheus.HistogramVec
	liveSubscriptions prometheus.GaugeFunc
}

// NewMetrics 创建指标并注册到registerer；registerer为nil时只创建不注册
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		tasksScheduled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystemScheduler,
			Name:      "tasks_scheduled_total",
			Help:      "number of tasks submitted to a scheduler",
		}, []string{labelSchedulerName}),
		tasksCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystemScheduler,
			Name:      "tasks_completed_total",
			Help:      "number of scheduled tasks that returned normally",
		}, []string{labelSchedulerName}),
		tasksPanicked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystemScheduler,
			Name:      "tasks_panicked_total",
			Help:      "number of scheduled tasks terminated by a panic",
		}, []string{labelSchedulerName}),
		tasksRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystemScheduler,
			Name:      "tasks_rejected_total",
			Help:      "number of tasks dropped because the scheduler was disposed",
		}, []string{labelSchedulerName}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystemScheduler,
			Name:      "task_duration_seconds",
			Help:      "the duration of a scheduled task from start to return",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, taskDurationBuckets),
		}, []string{labelSchedulerName}),
		liveSubscriptions: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystemRegistry,
			Name:      "live_subscriptions",
			Help:      "number of subscription tokens currently allowed to deliver",
		}, func() float64 {
			return float64(LiveSubscriptions())
		}),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.tasksScheduled,
			m.tasksCompleted,
			m.tasksPanicked,
			m.tasksRejected,
			m.taskDuration,
			m.liveSubscriptions,
		)
	}

	return m
}

func (m *Metrics) taskScheduled(scheduler string) {
	if m == nil {
		return
	}
	m.tasksScheduled.WithLabelValues(scheduler).Inc()
}

func (m *Metrics) taskCompleted(scheduler string) {
	if m == nil {
		return
	}
	m.tasksCompleted.WithLabelValues(scheduler).Inc()
}

func (m *Metrics) taskPanicked(scheduler string) {
	if m == nil {
		return
	}
	m.tasksPanicked.WithLabelValues(scheduler).Inc()
}

func (m *Metrics) taskRejected(scheduler string) {
	if m == nil {
		return
	}
	m.tasksRejected.WithLabelValues(scheduler).Inc()
}

func (m *Metrics) observeTaskDuration(scheduler string, duration time.Duration) {
	if m == nil {
		return
	}
	m.taskDuration.WithLabelValues(scheduler).Observe(duration.Seconds())
}

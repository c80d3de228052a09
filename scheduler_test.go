// Tests for schedulers
// 调度器测试
package rxlite

import (
	"bytes"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestComputationScheduler(t *testing.T) {
	t.Run("runs every task", func(t *testing.T) {
		scheduler := NewComputationScheduler(3)
		var wg sync.WaitGroup
		ran := atomic.NewInt32(0)

		for i := 0; i < 100; i++ {
			wg.Add(1)
			scheduler.Schedule(func() {
				defer wg.Done()
				ran.Inc()
			})
		}

		wg.Wait()
		scheduler.Dispose()
		assert.Equal(t, int32(100), ran.Load())
	})

	t.Run("concurrency is bounded by workers", func(t *testing.T) {
		scheduler := NewComputationScheduler(2)
		inFlight := atomic.NewInt32(0)
		maxInFlight := atomic.NewInt32(0)

		for i := 0; i < 20; i++ {
			scheduler.Schedule(func() {
				current := inFlight.Inc()
				for {
					seen := maxInFlight.Load()
					if current <= seen || maxInFlight.CompareAndSwap(seen, current) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				inFlight.Dec()
			})
		}

		scheduler.Dispose()
		assert.LessOrEqual(t, maxInFlight.Load(), int32(2))
		assert.Equal(t, 2, scheduler.Workers())
	})

	t.Run("non positive workers defaults to NumCPU", func(t *testing.T) {
		scheduler := NewComputationScheduler(0)
		defer scheduler.Dispose()

		assert.Equal(t, runtime.NumCPU(), scheduler.Workers())
		assert.Equal(t, "computation", scheduler.Name())
	})

	t.Run("dispose is idempotent and rejects new tasks", func(t *testing.T) {
		var buf bytes.Buffer
		metrics := NewMetrics(nil)
		scheduler := NewComputationScheduler(1, WithLogger(zerolog.New(&buf)), WithMetrics(metrics))

		scheduler.Dispose()
		scheduler.Dispose()
		require.True(t, scheduler.IsDisposed())

		ran := false
		scheduler.Schedule(func() { ran = true })

		assert.False(t, ran)
		assert.Contains(t, buf.String(), ErrSchedulerDisposed.Error())
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.tasksRejected.WithLabelValues("computation")))
	})

	t.Run("queued tasks finish before dispose returns", func(t *testing.T) {
		scheduler := NewComputationScheduler(1)
		ran := atomic.NewInt32(0)

		for i := 0; i < 10; i++ {
			scheduler.Schedule(func() {
				time.Sleep(time.Millisecond)
				ran.Inc()
			})
		}
		scheduler.Dispose()

		assert.Equal(t, int32(10), ran.Load())
	})
}

func TestIOScheduler(t *testing.T) {
	t.Run("blocking tasks do not starve each other", func(t *testing.T) {
		scheduler := NewIOScheduler()
		const tasks = 16
		started := atomic.NewInt32(0)
		release := make(chan struct{})

		for i := 0; i < tasks; i++ {
			scheduler.Schedule(func() {
				started.Inc()
				<-release
			})
		}

		require.Eventually(t, func() bool { return started.Load() == tasks }, 2*time.Second, time.Millisecond,
			"所有阻塞任务都应同时运行")
		close(release)
		scheduler.Dispose()
		assert.True(t, scheduler.IsDisposed())
	})

	t.Run("name option", func(t *testing.T) {
		scheduler := NewIOScheduler(WithName("blocking-io"))
		defer scheduler.Dispose()

		assert.Equal(t, "blocking-io", scheduler.Name())
	})
}

func TestSchedulerRecoversPanics(t *testing.T) {
	t.Run("task panic is logged and counted", func(t *testing.T) {
		var buf bytes.Buffer
		metrics := NewMetrics(nil)
		scheduler := NewComputationScheduler(1, WithLogger(zerolog.New(&buf)), WithMetrics(metrics))

		ran := atomic.NewBool(false)
		scheduler.Schedule(func() { panic("boom") })
		scheduler.Schedule(func() { ran.Store(true) })
		scheduler.Dispose()

		assert.True(t, ran.Load(), "panic只终止当前任务")
		assert.Contains(t, buf.String(), "scheduled task panicked")
		assert.Contains(t, buf.String(), "boom")
		assert.Contains(t, buf.String(), `"scheduler":"computation"`)
		assert.Equal(t, 2.0, testutil.ToFloat64(metrics.tasksScheduled.WithLabelValues("computation")))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.tasksPanicked.WithLabelValues("computation")))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.tasksCompleted.WithLabelValues("computation")))
		assert.Equal(t, 1, testutil.CollectAndCount(metrics.taskDuration))
	})

	t.Run("consumer panic terminates only its unit of work", func(t *testing.T) {
		var buf bytes.Buffer
		scheduler := NewIOScheduler(WithLogger(zerolog.New(&buf)))
		errorCalled := atomic.NewBool(false)

		Just(1).SubscribeOn(scheduler).Subscribe(
			func(int) { panic("consumer failure") },
			func(error) { errorCalled.Store(true) },
			nil,
		)
		scheduler.Dispose()

		assert.False(t, errorCalled.Load())
		assert.Contains(t, buf.String(), "consumer failure")
	})
}

func TestImmediateScheduler(t *testing.T) {
	scheduler := NewImmediateScheduler()
	ran := false

	scheduler.Schedule(func() { ran = true })

	assert.True(t, ran)
	assert.Equal(t, "immediate", scheduler.Name())

	rec := newRecorder[int]()
	Just(1, 2).SubscribeOn(scheduler).ObserveOn(scheduler).SubscribeObserver(rec)
	assert.Equal(t, []int{1, 2}, rec.Values())
	assert.Equal(t, 1, rec.Completes())
}

func TestTestScheduler(t *testing.T) {
	scheduler := NewTestScheduler()
	var order []int

	scheduler.Schedule(func() {
		order = append(order, 1)
		scheduler.Schedule(func() { order = append(order, 3) })
	})
	scheduler.Schedule(func() { order = append(order, 2) })

	assert.Equal(t, 2, scheduler.Pending())
	assert.True(t, scheduler.RunNext())
	assert.Equal(t, []int{1}, order)

	assert.Equal(t, 2, scheduler.Flush())
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.False(t, scheduler.RunNext())
	assert.Zero(t, scheduler.Pending())
}

func TestMetricsRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	scheduler := NewComputationScheduler(1, WithMetrics(metrics), WithName("metered"))

	done := make(chan struct{})
	scheduler.Schedule(func() { close(done) })
	<-done
	scheduler.Dispose()

	count, err := testutil.GatherAndCount(registry,
		"rxlite_scheduler_tasks_scheduled_total",
		"rxlite_registry_live_subscriptions",
	)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.tasksScheduled.WithLabelValues("metered")))

	var nilMetrics *Metrics
	require.NotPanics(t, func() {
		nilMetrics.taskScheduled("x")
		nilMetrics.observeTaskDuration("x", time.Second)
	})
}

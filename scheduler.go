// Scheduler implementations for RxLite
// 调度器实现：有界计算池、每任务一个goroutine的IO调度器、立即调度器与测试调度器
package rxlite

import (
	"runtime"
	"sync"
	"time"

	"github.com/ef-ds/deque"
	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// ============================================================================
// 任务包装
// ============================================================================

// taskRunner 为异步调度器包装任务：恢复panic、记录日志并上报指标。
// 任务panic只终止该工作单元，不影响worker和其他订阅。
type taskRunner struct {
	name    string
	log     zerolog.Logger
	metrics *Metrics
}

func newTaskRunner(config *Config) taskRunner {
	return taskRunner{
		name:    config.Name,
		log:     config.Logger.With().Str("scheduler", config.Name).Logger(),
		metrics: config.Metrics,
	}
}

func (r taskRunner) wrap(task func()) func() {
	r.metrics.taskScheduled(r.name)

	return func() {
		start := time.Now()
		defer func() {
			r.metrics.observeTaskDuration(r.name, time.Since(start))
			if rec := recover(); rec != nil {
				r.metrics.taskPanicked(r.name)
				r.log.Error().
					Interface("panic", unwrapPanic(rec)).
					Msg("scheduled task panicked")
				return
			}
			r.metrics.taskCompleted(r.name)
		}()

		task()
	}
}

func (r taskRunner) reject() {
	r.metrics.taskRejected(r.name)
	r.log.Warn().Err(ErrSchedulerDisposed).Msg("task rejected")
}

// ============================================================================
// 计算调度器 - Computation Scheduler
// ============================================================================

// ComputationScheduler 固定数量worker的调度器，用于CPU密集的转换工作。
// 不要在其上运行阻塞的生产者，否则会饿死同池的其他任务。
type ComputationScheduler struct {
	runner   taskRunner
	workers  int
	pool     *workerpool.WorkerPool
	mu       sync.RWMutex
	disposed *atomic.Bool
}

// NewComputationScheduler 创建计算调度器，workers<=0时使用runtime.NumCPU()
func NewComputationScheduler(workers int, options ...Option) *ComputationScheduler {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &ComputationScheduler{
		runner:   newTaskRunner(newConfig("computation", options)),
		workers:  workers,
		pool:     workerpool.New(workers),
		disposed: atomic.NewBool(false),
	}
}

// Schedule 提交任务到worker池，不会阻塞调用方
func (s *ComputationScheduler) Schedule(task func()) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.disposed.Load() {
		s.runner.reject()
		return
	}
	s.pool.Submit(s.runner.wrap(task))
}

// Name 调度器名称
func (s *ComputationScheduler) Name() string {
	return s.runner.name
}

// Workers worker数量
func (s *ComputationScheduler) Workers() int {
	return s.workers
}

// Dispose 拒绝新任务并等待已提交的任务执行完毕
func (s *ComputationScheduler) Dispose() {
	if !s.disposed.CompareAndSwap(false, true) {
		return
	}

	// 等待进行中的Submit结束
	s.mu.Lock()
	s.mu.Unlock()

	s.pool.StopWait()
}

// IsDisposed 检查是否已释放
func (s *ComputationScheduler) IsDisposed() bool {
	return s.disposed.Load()
}

// ============================================================================
// IO调度器 - IO Scheduler
// ============================================================================

// IOScheduler 每个任务一个新goroutine，无并发上限。
// 适合阻塞或长时间运行的生产者，单个阻塞任务不会饿死其他任务。
type IOScheduler struct {
	runner   taskRunner
	wg       sync.WaitGroup
	mu       sync.RWMutex
	disposed *atomic.Bool
}

// NewIOScheduler 创建IO调度器
func NewIOScheduler(options ...Option) *IOScheduler {
	return &IOScheduler{
		runner:   newTaskRunner(newConfig("io", options)),
		disposed: atomic.NewBool(false),
	}
}

// Schedule 在新goroutine中执行任务
func (s *IOScheduler) Schedule(task func()) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.disposed.Load() {
		s.runner.reject()
		return
	}

	run := s.runner.wrap(task)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		run()
	}()
}

// Name 调度器名称
func (s *IOScheduler) Name() string {
	return s.runner.name
}

// Dispose 拒绝新任务并等待运行中的任务返回。
// 永不结束的生产者会让Dispose一直阻塞，这类生产者应使用CreateContext感知取消。
func (s *IOScheduler) Dispose() {
	if !s.disposed.CompareAndSwap(false, true) {
		return
	}

	s.mu.Lock()
	s.mu.Unlock()

	s.wg.Wait()
}

// IsDisposed 检查是否已释放
func (s *IOScheduler) IsDisposed() bool {
	return s.disposed.Load()
}

// ============================================================================
// 立即调度器 - Immediate Scheduler
// ============================================================================

// immediateScheduler 在调用方goroutine中立即执行任务，panic直接传播给调用方
type immediateScheduler struct{}

// NewImmediateScheduler 创建立即调度器
func NewImmediateScheduler() Scheduler {
	return immediateScheduler{}
}

// Schedule 立即执行任务
func (immediateScheduler) Schedule(task func()) {
	task()
}

// Name 调度器名称
func (immediateScheduler) Name() string {
	return "immediate"
}

// ============================================================================
// 测试调度器 - Test Scheduler
// ============================================================================

// TestScheduler 用于测试的调度器：任务先排队，调用Flush或RunNext时才执行
type TestScheduler struct {
	mu    sync.Mutex
	queue *deque.Deque
}

// NewTestScheduler 创建测试调度器
func NewTestScheduler() *TestScheduler {
	return &TestScheduler{
		queue: deque.New(),
	}
}

// Schedule 把任务加入队列
func (s *TestScheduler) Schedule(task func()) {
	s.mu.Lock()
	s.queue.PushBack(task)
	s.mu.Unlock()
}

// Name 调度器名称
func (s *TestScheduler) Name() string {
	return "test"
}

// Pending 队列中等待执行的任务数
func (s *TestScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// RunNext 执行队首任务，队列为空时返回false
func (s *TestScheduler) RunNext() bool {
	s.mu.Lock()
	next, ok := s.queue.PopFront()
	s.mu.Unlock()

	if !ok {
		return false
	}

	// 解锁后执行，允许任务调度新任务
	next.(func())()
	return true
}

// Flush 执行所有任务（包括执行过程中新调度的任务），返回执行的任务数
func (s *TestScheduler) Flush() int {
	count := 0
	for s.RunNext() {
		count++
	}
	return count
}

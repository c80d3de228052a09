// Observable implementation for RxLite
// Observable核心实现：订阅协议、守卫观察者与调度操作符
package rxlite

import (
	"context"
	"sync"

	"github.com/ef-ds/deque"
	"go.uber.org/atomic"
)

// ============================================================================
// Observable 核心实现
// ============================================================================

// producer 生产者函数，ctx为本次订阅的取消上下文
type producer[T any] func(ctx context.Context, observer Observer[T]) error

// Observable 对生产者函数的不可变包装。
// 每次订阅都会重新执行生产者并创建独立的订阅状态，Observable本身不可取消。
type Observable[T any] struct {
	produce producer[T]
}

// Create 从生产者创建Observable。
// 生产者同步驱动观察者；返回的错误或panic会作为OnError投递（若订阅仍存活）。
func Create[T any](source func(observer Observer[T]) error) Observable[T] {
	if source == nil {
		return Observable[T]{}
	}

	return Observable[T]{
		produce: func(_ context.Context, observer Observer[T]) error {
			return source(observer)
		},
	}
}

// CreateContext 与Create相同，但生产者可通过ctx感知订阅被释放
func CreateContext[T any](source func(ctx context.Context, observer Observer[T]) error) Observable[T] {
	return Observable[T]{produce: source}
}

// Subscribe 使用回调函数订阅，返回取消句柄。
// 对同步生产者，返回时生产者已经执行完毕。
func (o Observable[T]) Subscribe(onNext OnNext[T], onError OnError, onComplete OnComplete) Disposable {
	return o.SubscribeObserver(NewObserver(onNext, onError, onComplete))
}

// SubscribeObserver 订阅观察者
func (o Observable[T]) SubscribeObserver(observer Observer[T]) Disposable {
	return o.SubscribeContext(context.Background(), observer)
}

// SubscribeContext 订阅观察者，ctx被取消等同于调用Dispose
func (o Observable[T]) SubscribeContext(ctx context.Context, observer Observer[T]) Disposable {
	defer rethrowConsumerPanic()

	return o.subscribe(ctx, observer)
}

// subscribe 内部订阅入口，操作符通过它把上游订阅挂到下游的取消上下文下
func (o Observable[T]) subscribe(parent context.Context, downstream Observer[T]) Disposable {
	guard := newGuardedObserver(parent, defaultRegistry, downstream)
	if parent.Err() != nil {
		guard.Dispose()
		return guard
	}

	produce := o.produce
	if produce == nil {
		produce = func(context.Context, Observer[T]) error {
			return ErrNilObservable
		}
	}

	if err := safeCall(func() error { return produce(guard.ctx, guard) }); err != nil {
		guard.OnError(err)
	}

	return guard
}

// ============================================================================
// 守卫观察者
// ============================================================================

// guardedObserver 包装下游观察者，每次投递前检查令牌是否存活。
// 令牌在显式释放、终止信号投递或祖先上下文取消时退役。
type guardedObserver[T any] struct {
	token      Token
	registry   *Registry
	ctx        context.Context
	downstream Observer[T]
	retire     Disposable
	completed  *atomic.Bool
}

func newGuardedObserver[T any](parent context.Context, registry *Registry, downstream Observer[T]) *guardedObserver[T] {
	ctx, cancel := context.WithCancel(parent)
	token := registry.Register()

	stop := context.AfterFunc(ctx, func() {
		registry.Remove(token)
	})

	return &guardedObserver[T]{
		token:      token,
		registry:   registry,
		ctx:        ctx,
		downstream: downstream,
		retire: NewBaseDisposable(func() {
			registry.Remove(token)
			stop()
			cancel()
		}),
		completed: atomic.NewBool(false),
	}
}

func (g *guardedObserver[T]) live() bool {
	return g.ctx.Err() == nil && g.registry.Contains(g.token)
}

// OnNext 存活时转发值
func (g *guardedObserver[T]) OnNext(value T) {
	if !g.live() {
		return
	}
	g.forward(func() { g.downstream.OnNext(value) })
}

// OnError 存活时退役并转发错误
func (g *guardedObserver[T]) OnError(err error) {
	if !g.live() {
		return
	}
	g.retire.Dispose()
	g.forward(func() { g.downstream.OnError(err) })
}

// OnComplete 存活时退役并转发完成信号
func (g *guardedObserver[T]) OnComplete() {
	if !g.live() || !g.completed.CompareAndSwap(false, true) {
		return
	}
	g.retire.Dispose()
	g.forward(g.downstream.OnComplete)
}

// openCompleter 转发完成信号后仍保持订阅存活，直到调用release
type openCompleter interface {
	completeOpen()
	release()
}

// completeOpen 转发完成信号但不退役，之后OnNext和OnError仍会投递
func (g *guardedObserver[T]) completeOpen() {
	if !g.live() || !g.completed.CompareAndSwap(false, true) {
		return
	}
	g.forward(g.downstream.OnComplete)
}

// release 退役令牌
func (g *guardedObserver[T]) release() {
	g.retire.Dispose()
}

// Dispose 移除本订阅的令牌，可重复调用
func (g *guardedObserver[T]) Dispose() {
	g.retire.Dispose()
}

// IsDisposed 订阅是否已不再投递
func (g *guardedObserver[T]) IsDisposed() bool {
	return !g.live()
}

// forward 调用下游；下游抛出的panic被标记为消费者panic继续上抛
func (g *guardedObserver[T]) forward(deliver func()) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(consumerPanic); ok {
				panic(r)
			}
			panic(consumerPanic{value: r})
		}
	}()

	deliver()
}

// ============================================================================
// 调度操作符
// ============================================================================

// SubscribeOn 把整个上游订阅作为一个工作单元提交到调度器执行。
// 调用方的Subscribe立即返回，所有信号都在调度器上发出。
func (o Observable[T]) SubscribeOn(scheduler Scheduler) Observable[T] {
	return Observable[T]{
		produce: func(ctx context.Context, observer Observer[T]) error {
			scheduler.Schedule(func() {
				// 任务开始前已释放则不再启动上游
				if ctx.Err() != nil {
					return
				}
				o.subscribe(ctx, observer)
			})
			return nil
		},
	}
}

// ObserveOn 在调用方订阅上游，但把每次向下游的投递提交到调度器。
// 同一订阅的信号按发出顺序串行投递，即使调度器有多个worker。
func (o Observable[T]) ObserveOn(scheduler Scheduler) Observable[T] {
	return Observable[T]{
		produce: func(ctx context.Context, observer Observer[T]) error {
			o.subscribe(ctx, newSerialObserver(scheduler, observer))
			return nil
		},
	}
}

// serialObserver 每个订阅一个FIFO信号队列，同一时刻最多一个排空任务在调度器上运行
type serialObserver[T any] struct {
	scheduler  Scheduler
	downstream Observer[T]

	mu       sync.Mutex
	queue    *deque.Deque
	draining bool
}

func newSerialObserver[T any](scheduler Scheduler, downstream Observer[T]) *serialObserver[T] {
	return &serialObserver[T]{
		scheduler:  scheduler,
		downstream: downstream,
		queue:      deque.New(),
	}
}

func (s *serialObserver[T]) OnNext(value T) {
	s.enqueue(func() { s.downstream.OnNext(value) })
}

func (s *serialObserver[T]) OnError(err error) {
	s.enqueue(func() { s.downstream.OnError(err) })
}

func (s *serialObserver[T]) OnComplete() {
	s.enqueue(s.downstream.OnComplete)
}

func (s *serialObserver[T]) enqueue(signal func()) {
	s.mu.Lock()
	s.queue.PushBack(signal)
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.mu.Unlock()

	s.scheduler.Schedule(s.drain)
}

func (s *serialObserver[T]) drain() {
	defer func() {
		if r := recover(); r != nil {
			// 投递失败只终止当前工作单元，剩余信号交给新的排空任务
			s.mu.Lock()
			pending := s.queue.Len() > 0
			s.draining = pending
			s.mu.Unlock()
			if pending {
				s.scheduler.Schedule(s.drain)
			}
			panic(r)
		}
	}()

	for {
		s.mu.Lock()
		next, ok := s.queue.PopFront()
		if !ok {
			s.draining = false
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		next.(func())()
	}
}

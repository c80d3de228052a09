// Transformation operators for RxLite
// 转换操作符实现，包含Map, Filter, FlatMap
package rxlite

import (
	"context"

	"go.uber.org/atomic"
)

// ============================================================================
// Map
// ============================================================================

// Map 对每个值应用转换函数。转换返回错误或panic时向下游发送OnError，不再转发该值。
func Map[T, R any](source Observable[T], transformer Transformer[T, R]) Observable[R] {
	return Observable[R]{
		produce: func(ctx context.Context, observer Observer[R]) error {
			source.subscribe(ctx, &mapObserver[T, R]{
				downstream:  observer,
				transformer: transformer,
			})
			return nil
		},
	}
}

type mapObserver[T, R any] struct {
	downstream  Observer[R]
	transformer Transformer[T, R]
}

func (m *mapObserver[T, R]) OnNext(value T) {
	var result R
	err := safeCall(func() (err error) {
		result, err = m.transformer(value)
		return err
	})
	if err != nil {
		m.downstream.OnError(err)
		return
	}
	m.downstream.OnNext(result)
}

func (m *mapObserver[T, R]) OnError(err error) {
	m.downstream.OnError(err)
}

func (m *mapObserver[T, R]) OnComplete() {
	m.downstream.OnComplete()
}

// ============================================================================
// Filter
// ============================================================================

// Filter 只转发满足谓词的值，谓词panic时向下游发送OnError
func (o Observable[T]) Filter(predicate Predicate[T]) Observable[T] {
	return Observable[T]{
		produce: func(ctx context.Context, observer Observer[T]) error {
			o.subscribe(ctx, &filterObserver[T]{
				downstream: observer,
				predicate:  predicate,
			})
			return nil
		},
	}
}

type filterObserver[T any] struct {
	downstream Observer[T]
	predicate  Predicate[T]
}

func (f *filterObserver[T]) OnNext(value T) {
	var matched bool
	err := safeCall(func() error {
		matched = f.predicate(value)
		return nil
	})
	if err != nil {
		f.downstream.OnError(err)
		return
	}
	if matched {
		f.downstream.OnNext(value)
	}
}

func (f *filterObserver[T]) OnError(err error) {
	f.downstream.OnError(err)
}

func (f *filterObserver[T]) OnComplete() {
	f.downstream.OnComplete()
}

// ============================================================================
// FlatMap
// ============================================================================

// FlatMap 把每个值展开为内部Observable并立即订阅，内部的值和错误直接转发到下游。
//
// 内部流的完成信号被屏蔽，下游的OnComplete只由外部源的完成触发。
// 外部完成时不取消仍在运行的内部订阅，它们之后的值和错误继续投递到下游；
// 外部源与所有内部流都结束后下游订阅才退役。
func FlatMap[T, R any](source Observable[T], mapper func(value T) Observable[R]) Observable[R] {
	return Observable[R]{
		produce: func(ctx context.Context, observer Observer[R]) error {
			holder, ok := observer.(openCompleter)
			if !ok {
				holder = closingCompleter[R]{observer: observer}
			}

			source.subscribe(ctx, &flatMapObserver[T, R]{
				ctx:        ctx,
				downstream: observer,
				holder:     holder,
				mapper:     mapper,
				active:     atomic.NewInt64(1),
			})
			return nil
		},
	}
}

// flatMapObserver active计数外部源和每个进行中的内部流
type flatMapObserver[T, R any] struct {
	ctx        context.Context
	downstream Observer[R]
	holder     openCompleter
	mapper     func(value T) Observable[R]
	active     *atomic.Int64
}

func (f *flatMapObserver[T, R]) OnNext(value T) {
	var inner Observable[R]
	err := safeCall(func() error {
		inner = f.mapper(value)
		if inner.produce == nil {
			return ErrNilObservable
		}
		return nil
	})
	if err != nil {
		f.downstream.OnError(err)
		return
	}

	f.active.Inc()
	inner.subscribe(f.ctx, &innerObserver[R]{downstream: f.downstream, done: f.finish})
}

func (f *flatMapObserver[T, R]) OnError(err error) {
	f.downstream.OnError(err)
}

func (f *flatMapObserver[T, R]) OnComplete() {
	defer f.finish()
	f.holder.completeOpen()
}

func (f *flatMapObserver[T, R]) finish() {
	if f.active.Dec() == 0 {
		f.holder.release()
	}
}

// innerObserver 转发内部流的值和错误，屏蔽其完成信号
type innerObserver[R any] struct {
	downstream Observer[R]
	done       func()
}

func (i *innerObserver[R]) OnNext(value R) {
	i.downstream.OnNext(value)
}

func (i *innerObserver[R]) OnError(err error) {
	i.downstream.OnError(err)
}

func (i *innerObserver[R]) OnComplete() {
	i.done()
}

// closingCompleter 下游不是订阅守卫时退化为普通的完成
type closingCompleter[R any] struct {
	observer Observer[R]
}

func (c closingCompleter[R]) completeOpen() {
	c.observer.OnComplete()
}

func (c closingCompleter[R]) release() {}

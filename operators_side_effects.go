// Side effect operators for RxLite
// 副作用操作符实现，包含DoOnNext, DoOnError, DoOnComplete
package rxlite

import "context"

// ============================================================================
// 副作用操作符实现
// ============================================================================

// DoOnNext 在每个值向下游转发之前执行副作用操作
func (o Observable[T]) DoOnNext(action OnNext[T]) Observable[T] {
	return o.tap(action, nil, nil)
}

// DoOnError 在错误向下游转发之前执行副作用操作
func (o Observable[T]) DoOnError(action OnError) Observable[T] {
	return o.tap(nil, action, nil)
}

// DoOnComplete 在完成信号向下游转发之前执行副作用操作
func (o Observable[T]) DoOnComplete(action OnComplete) Observable[T] {
	return o.tap(nil, nil, action)
}

func (o Observable[T]) tap(onNext OnNext[T], onError OnError, onComplete OnComplete) Observable[T] {
	return Observable[T]{
		produce: func(ctx context.Context, observer Observer[T]) error {
			o.subscribe(ctx, &tapObserver[T]{
				downstream: observer,
				onNext:     onNext,
				onError:    onError,
				onComplete: onComplete,
			})
			return nil
		},
	}
}

// tapObserver 副作用中的panic与转换失败同样处理，转为OnError
type tapObserver[T any] struct {
	downstream Observer[T]
	onNext     OnNext[T]
	onError    OnError
	onComplete OnComplete
}

func (t *tapObserver[T]) OnNext(value T) {
	if t.onNext != nil {
		if err := safeCall(func() error { t.onNext(value); return nil }); err != nil {
			t.downstream.OnError(err)
			return
		}
	}
	t.downstream.OnNext(value)
}

func (t *tapObserver[T]) OnError(err error) {
	if t.onError != nil {
		// 原始错误优先：副作用的panic被丢弃，下游收到的仍是err
		_ = safeCall(func() error { t.onError(err); return nil })
	}
	t.downstream.OnError(err)
}

func (t *tapObserver[T]) OnComplete() {
	if t.onComplete != nil {
		if err := safeCall(func() error { t.onComplete(); return nil }); err != nil {
			t.downstream.OnError(err)
			return
		}
	}
	t.downstream.OnComplete()
}

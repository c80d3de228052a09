// Blocking operators for RxLite
// 阻塞操作符实现，等待终止信号或ctx结束
package rxlite

import (
	"context"
	"sync"
)

// ============================================================================
// 阻塞操作符实现
// ============================================================================

// BlockingForEach 阻塞遍历所有值，返回上游的错误。
// ctx结束时释放订阅并返回ctx.Err()。
func (o Observable[T]) BlockingForEach(ctx context.Context, action OnNext[T]) error {
	done := make(chan struct{})
	var once sync.Once
	var result error

	finish := func(err error) {
		once.Do(func() {
			result = err
			close(done)
		})
	}

	subscription := o.SubscribeContext(ctx, NewObserver(
		func(value T) {
			if action != nil {
				action(value)
			}
		},
		func(err error) { finish(err) },
		func() { finish(nil) },
	))
	defer subscription.Dispose()

	select {
	case <-done:
		return result
	case <-ctx.Done():
		// 终止信号与取消同时到达时，以终止信号为准
		select {
		case <-done:
			return result
		default:
			return ctx.Err()
		}
	}
}

// BlockingToSlice 阻塞收集所有值。出错时返回已收集的值和错误。
func (o Observable[T]) BlockingToSlice(ctx context.Context) ([]T, error) {
	var mu sync.Mutex
	values := make([]T, 0)

	err := o.BlockingForEach(ctx, func(value T) {
		mu.Lock()
		values = append(values, value)
		mu.Unlock()
	})

	mu.Lock()
	defer mu.Unlock()
	return values, err
}

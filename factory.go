// Factory functions for RxLite
// 工厂函数：从值、切片、范围、channel创建Observable
package rxlite

import "context"

// ============================================================================
// 基础工厂函数
// ============================================================================

// Just 依次同步发射给定的值，然后完成
func Just[T any](values ...T) Observable[T] {
	return FromSlice(values)
}

// FromSlice 依次同步发射切片中的元素，然后完成
func FromSlice[T any](slice []T) Observable[T] {
	return Create(func(observer Observer[T]) error {
		for _, value := range slice {
			observer.OnNext(value)
		}
		observer.OnComplete()
		return nil
	})
}

// Range 发射从start开始的count个连续整数
func Range(start, count int) Observable[int] {
	return Create(func(observer Observer[int]) error {
		for i := 0; i < count; i++ {
			observer.OnNext(start + i)
		}
		observer.OnComplete()
		return nil
	})
}

// Empty 创建一个空的Observable，立即完成
func Empty[T any]() Observable[T] {
	return Create(func(observer Observer[T]) error {
		observer.OnComplete()
		return nil
	})
}

// Never 创建一个永不发射任何信号的Observable
func Never[T any]() Observable[T] {
	return Create(func(Observer[T]) error {
		return nil
	})
}

// Error 创建一个立即发射错误的Observable
func Error[T any](err error) Observable[T] {
	return Create(func(Observer[T]) error {
		return err
	})
}

// ============================================================================
// 从数据源创建
// ============================================================================

// FromChannel 逐个发射channel中的值，channel关闭时完成。
// 生产者会阻塞在channel上，通常与IO调度器上的SubscribeOn一起使用；订阅释放后停止读取。
func FromChannel[T any](ch <-chan T) Observable[T] {
	return CreateContext(func(ctx context.Context, observer Observer[T]) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case value, ok := <-ch:
				if !ok {
					observer.OnComplete()
					return nil
				}
				observer.OnNext(value)
			}
		}
	})
}

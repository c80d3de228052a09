// Error handling for RxLite
// 错误处理：错误类型定义与panic恢复，错误尽早转换为OnError信号沿管道向下游传递
package rxlite

import (
	"fmt"

	"github.com/pkg/errors"
)

// ============================================================================
// 错误类型定义
// ============================================================================

var (
	// ErrNilObservable FlatMap的映射函数返回了零值Observable
	ErrNilObservable = errors.New("rxlite: mapper returned a nil observable")

	// ErrSchedulerDisposed 调度器已释放，任务被拒绝
	ErrSchedulerDisposed = errors.New("rxlite: scheduler is disposed")
)

// PanicError 用户函数（生产者、转换、谓词、展开）panic后转换成的错误
type PanicError struct {
	// Value panic时传入的原始值
	Value interface{}
	cause error
}

// newPanicError 捕获当前调用栈
func newPanicError(value interface{}) *PanicError {
	return &PanicError{
		Value: value,
		cause: errors.Errorf("panic: %v", value),
	}
}

func (e *PanicError) Error() string {
	return e.cause.Error()
}

// Unwrap 当panic的值本身是error时返回它
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Stack 返回恢复点的调用栈
func (e *PanicError) Stack() string {
	return fmt.Sprintf("%+v", e.cause)
}

// ============================================================================
// panic恢复
// ============================================================================

// consumerPanic 标记由下游终端消费者抛出的panic。
// 途经的所有守卫和操作符都不得将其转换为OnError，只能原样向上传播。
type consumerPanic struct {
	value interface{}
}

// safeCall 执行用户函数，将panic转换为*PanicError；消费者panic继续传播
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if cp, ok := r.(consumerPanic); ok {
				panic(cp)
			}
			err = newPanicError(r)
		}
	}()

	return fn()
}

// rethrowConsumerPanic 在公开的订阅入口处还原消费者panic的原始值
func rethrowConsumerPanic() {
	if r := recover(); r != nil {
		if cp, ok := r.(consumerPanic); ok {
			panic(cp.value)
		}
		panic(r)
	}
}

// unwrapPanic 返回用于日志记录的原始panic值
func unwrapPanic(r interface{}) interface{} {
	if cp, ok := r.(consumerPanic); ok {
		return cp.value
	}
	return r
}

// Tests for core lifecycle types
// 生命周期类型测试
package rxlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaseDisposable(t *testing.T) {
	calls := 0
	disposable := NewBaseDisposable(func() { calls++ })

	assert.False(t, disposable.IsDisposed())
	disposable.Dispose()
	disposable.Dispose()

	assert.True(t, disposable.IsDisposed())
	assert.Equal(t, 1, calls)
}

func TestCompositeDisposable(t *testing.T) {
	t.Run("disposes every resource once", func(t *testing.T) {
		var order []int
		composite := NewCompositeDisposable(
			NewBaseDisposable(func() { order = append(order, 1) }),
			NewBaseDisposable(func() { order = append(order, 2) }),
		)
		composite.Add(nil)
		assert.Equal(t, 2, composite.Len())

		composite.Dispose()
		composite.Dispose()

		assert.Equal(t, []int{1, 2}, order)
		assert.True(t, composite.IsDisposed())
		assert.Zero(t, composite.Len())
	})

	t.Run("add after dispose disposes immediately", func(t *testing.T) {
		composite := NewCompositeDisposable()
		composite.Dispose()

		late := NewBaseDisposable(nil)
		composite.Add(late)

		assert.True(t, late.IsDisposed())
	})

	t.Run("holds subscriptions", func(t *testing.T) {
		subscription := Never[int]().Subscribe(nil, nil, nil)
		composite := NewCompositeDisposable(subscription)

		composite.Dispose()

		assert.True(t, subscription.IsDisposed())
	})
}

func TestNewObserver(t *testing.T) {
	var next []int
	var errs []error
	completed := 0

	observer := NewObserver(
		func(v int) { next = append(next, v) },
		func(err error) { errs = append(errs, err) },
		func() { completed++ },
	)
	observer.OnNext(7)
	observer.OnError(ErrNilObservable)
	observer.OnComplete()

	assert.Equal(t, []int{7}, next)
	assert.Equal(t, []error{ErrNilObservable}, errs)
	assert.Equal(t, 1, completed)
}

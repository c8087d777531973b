package systems

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// Future is the result of work handed to another goroutine. It resolves
// exactly once. There is no cancellation: dropping a Future only stops
// waiting for it, the work still runs.
type Future[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns a future that is already complete.
func Resolved[T any](value T, err error) *Future[T] {
	f := newFuture[T]()
	f.resolve(value, err)
	return f
}

func (f *Future[T]) resolve(value T, err error) {
	f.once.Do(func() {
		f.value, f.err = value, err
		close(f.done)
	})
}

// Wait blocks until the work finished.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.value, f.err
}

// WaitContext is Wait bounded by ctx.
func (f *Future[T]) WaitContext(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (f *Future[T]) Done() <-chan struct{} { return f.done }

func (f *Future[T]) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Err waits and returns only the error.
func (f *Future[T]) Err() error {
	_, err := f.Wait()
	return err
}

// run calls fn and turns a panic into an error so one bad task cannot take
// its worker down.
func run[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("task panicked: %v", r)
		}
	}()
	return fn(ctx)
}

func describe(err error) string {
	if err == nil {
		return "ok"
	}
	return fmt.Sprintf("failed: %s", err.Error())
}

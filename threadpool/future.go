package threadpool

import (
	"context"
	"sync"
	"time"
)

// Future represents a future result of an asynchronous computation.
//
// A Future resolves exactly once. Until then every read blocks; afterwards
// every read returns the same value and error.
type Future[T any] struct {
	result T
	err    error
	done   chan struct{}
}

// promise is the producer side of a Future. Only the worker that runs the
// task resolves it.
type promise[T any] struct {
	f    *Future[T]
	once sync.Once
}

func newPromise[T any]() *promise[T] {
	return &promise[T]{f: &Future[T]{done: make(chan struct{})}}
}

func (p *promise[T]) future() *Future[T] {
	return p.f
}

// resolve records the outcome. Calls after the first are ignored.
func (p *promise[T]) resolve(v T, err error) {
	p.once.Do(func() {
		p.f.result = v
		p.f.err = err
		close(p.f.done)
	})
}

// resolvedFuture returns a Future that already holds err.
func resolvedFuture[T any](err error) *Future[T] {
	p := newPromise[T]()
	var zero T
	p.resolve(zero, err)
	return p.future()
}

// Get blocks until the result is available and returns it.
func (f *Future[T]) Get() (T, error) {
	<-f.done
	return f.result, f.err
}

// Wait is Get bounded by ctx. It returns ctx.Err() if ctx ends first.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// GetWithTimeout waits for the result with a timeout. ok is false if the
// timeout expired first.
func (f *Future[T]) GetWithTimeout(timeout time.Duration) (result T, err error, ok bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-f.done:
		return f.result, f.err, true
	case <-timer.C:
		var zero T
		return zero, nil, false
	}
}

// Done is closed once the future has resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// IsDone checks if the task has completed
func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

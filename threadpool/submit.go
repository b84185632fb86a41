package threadpool

import (
	"runtime/debug"
)

// Submit queues fn on s with DefaultPriority and returns a Future for its
// result. It never blocks.
//
// The future resolves to fn's return values, or to a *PanicError if fn
// panics. If s is closed before a worker dequeues the task the future is
// abandoned along with it; use Future.Wait or GetWithTimeout when that can
// happen.
func Submit[T any](s Submitter, fn func() (T, error)) *Future[T] {
	return submit(s, DefaultPriority, fn)
}

// SubmitFunc is Submit for functions that only report an error.
func SubmitFunc(s Submitter, fn func() error) *Future[struct{}] {
	return submit(s, DefaultPriority, voidTask(fn))
}

// SubmitPriority queues fn on p with the given priority.
func SubmitPriority[T any](p *PriorityPool, priority Priority, fn func() (T, error)) *Future[T] {
	return submit(p, priority, fn)
}

// SubmitPriorityFunc is SubmitPriority for functions that only report an
// error.
func SubmitPriorityFunc(p *PriorityPool, priority Priority, fn func() error) *Future[struct{}] {
	return submit(p, priority, voidTask(fn))
}

func voidTask(fn func() error) func() (struct{}, error) {
	if fn == nil {
		return nil
	}
	return func() (struct{}, error) {
		return struct{}{}, fn()
	}
}

func submit[T any](s Submitter, priority Priority, fn func() (T, error)) *Future[T] {
	if fn == nil {
		return resolvedFuture[T](ErrNilTask)
	}

	pr := newPromise[T]()
	action := func() (err error) {
		var v T
		returned := false
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Value: r, Stack: debug.Stack()}
			} else if !returned {
				err = ErrTaskExited
			}
			pr.resolve(v, err)
		}()

		v, err = fn()
		returned = true
		return err
	}

	if !s.enqueue(priority, action) {
		return resolvedFuture[T](ErrPoolClosed)
	}
	return pr.future()
}

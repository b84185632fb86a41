package threadpool

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidThreadCount is returned by the constructors when asked for
	// fewer than one worker.
	ErrInvalidThreadCount = errors.New("threadpool: thread count must be at least 1")

	// ErrPoolClosed resolves futures submitted after Close has started.
	ErrPoolClosed = errors.New("threadpool: pool is closed")

	// ErrNilTask resolves futures submitted with a nil function.
	ErrNilTask = errors.New("threadpool: task func is nil")

	// ErrTaskExited resolves futures whose task called runtime.Goexit, for
	// example through t.FailNow.
	ErrTaskExited = errors.New("threadpool: task exited without returning")
)

// PanicError is the failure recorded for a task that panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("threadpool: task panicked: %v", e.Value)
}

// Unwrap exposes the panic value when the task panicked with an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

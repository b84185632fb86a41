// Package threadpool provides a fixed-size worker pool that runs submitted
// functions concurrently and hands their results back through futures.
//
// Typical usage:
//
//	pool, err := threadpool.New(4, threadpool.WithName("resize"))
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	futures := make([]*threadpool.Future[int], 10)
//	for i := range futures {
//		n := i
//		futures[i] = threadpool.Submit(pool, func() (int, error) {
//			return n * n, nil
//		})
//	}
//
//	for _, f := range futures {
//		v, err := f.Get()
//		...
//	}
//
// A pool built with NewPriority orders queued work by Priority, highest
// first, and runs equal priorities in submission order. Only a
// *PriorityPool is accepted by SubmitPriority, so asking a FIFO pool for
// priority scheduling does not compile.
//
// A task's error, or a panic recovered from it as a *PanicError, is
// delivered through its Future and never affects the worker or other tasks.
//
// The queue is unbounded. Close waits for running tasks and, unless the pool
// was built WithDrainOnClose(true), drops queued ones without resolving
// their futures.
package threadpool

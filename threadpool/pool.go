package threadpool

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jacobsa/syncutil"

	"github.com/majiddarvishan/threadpool/internal/logger"
)

// Submitter is implemented by *Pool and *PriorityPool. It is accepted by
// Submit and SubmitFunc.
type Submitter interface {
	enqueue(priority Priority, action func() error) bool
}

// Pool runs submitted tasks on a fixed number of worker goroutines.
//
// A Pool built with New runs tasks in submission order. Use NewPriority for
// a pool that honours task priorities.
type Pool struct {
	name    string
	threads int
	opts    options

	// mu guards everything below it and backs cond.
	//
	// INVARIANT: 0 <= running <= threads
	// INVARIANT: queue != nil
	mu      syncutil.InvariantMutex
	cond    *sync.Cond
	queue   workQueue
	stop    bool
	running int
	nextSeq uint64

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// PriorityPool is a Pool whose queue hands out the highest priority task
// first. Tasks of equal priority run in submission order.
type PriorityPool struct {
	*Pool
}

// New creates a FIFO pool and starts threads workers.
func New(threads int, opts ...Option) (*Pool, error) {
	return newPool(threads, newFIFOQueue(), opts)
}

// NewPriority creates a priority-ordered pool and starts threads workers.
func NewPriority(threads int, opts ...Option) (*PriorityPool, error) {
	p, err := newPool(threads, newPriorityQueue(), opts)
	if err != nil {
		return nil, err
	}
	return &PriorityPool{Pool: p}, nil
}

func newPool(threads int, queue workQueue, opts []Option) (*Pool, error) {
	if threads < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidThreadCount, threads)
	}

	o := buildOptions(opts)
	p := &Pool{
		name:    o.name,
		threads: threads,
		opts:    o,
		queue:   queue,
		running: threads,
	}
	p.mu = syncutil.NewInvariantMutex(p.checkInvariants)
	p.cond = sync.NewCond(&p.mu)

	o.metrics.setWorkerCount(p.name, threads)
	o.metrics.setQueueSize(p.name, 0)
	o.metrics.setActiveWorkers(p.name, threads)

	p.wg.Add(threads)
	for i := 0; i < threads; i++ {
		go p.worker(i)
	}

	logger.Debugf("[%s] started with %d workers", p.name, threads)
	return p, nil
}

func (p *Pool) checkInvariants() {
	if p.running < 0 || p.running > p.threads {
		panic(fmt.Sprintf("running count %d outside [0, %d]", p.running, p.threads))
	}
	if p.queue == nil {
		panic("nil work queue")
	}
}

// worker is the goroutine that processes tasks
func (p *Pool) worker(id int) {
	stopped := false
	defer func() {
		if !stopped {
			p.replaceWorker(id)
		}
		p.wg.Done()
	}()
	logger.Tracef("[%s] worker %d started", p.name, id)

	for {
		item, ok := p.next()
		if !ok {
			stopped = true
			logger.Tracef("[%s] worker %d stopped", p.name, id)
			return
		}
		p.execute(item)
	}
}

// replaceWorker starts a new goroutine for a worker whose task called
// runtime.Goexit. The dead worker is still counted in running, and the
// replacement's first call to next takes it off again.
//
// It must run before the dead worker's wg.Done so Close never sees the
// group empty early.
func (p *Pool) replaceWorker(id int) {
	logger.Warnf("[%s] worker %d: task exited without returning, restarting worker", p.name, id)
	p.opts.metrics.recordCompleted(p.name, ErrTaskExited, 0)
	p.wg.Add(1)
	go p.worker(id)
}

// next blocks until there is work or the pool stops. ok is false when the
// worker must exit.
func (p *Pool) next() (item workItem, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.running--
	p.opts.metrics.setActiveWorkers(p.name, p.running)

	for !p.stop && p.queue.empty() {
		p.cond.Wait()
	}

	if p.stop && (!p.opts.drainOnClose || p.queue.empty()) {
		return workItem{}, false
	}

	item = p.queue.pop()
	p.running++
	p.opts.metrics.setActiveWorkers(p.name, p.running)
	p.opts.metrics.setQueueSize(p.name, p.queue.len())
	return item, true
}

// execute runs one item with the lock released. The action recovers task
// panics itself, so execute returns unless the task calls runtime.Goexit.
func (p *Pool) execute(item workItem) {
	hooks := p.opts.hooks
	if hooks.OnStart != nil {
		p.runHook("OnStart", hooks.OnStart)
	}

	start := time.Now()
	err := item.action()
	took := time.Since(start)

	var pe *PanicError
	if errors.As(err, &pe) {
		logger.Warnf("[%s] task panicked: %v", p.name, pe.Value)
	}

	p.opts.metrics.recordCompleted(p.name, err, took.Seconds())
	if hooks.OnFinish != nil {
		p.runHook("OnFinish", func() { hooks.OnFinish(err, took) })
	}
}

// runHook calls a user hook and logs a panic instead of propagating it.
func (p *Pool) runHook(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[%s] %s hook panicked: %v", p.name, name, r)
		}
	}()
	fn()
}

// enqueue pushes action and wakes one idle worker. It reports false if the
// pool is closing.
func (p *Pool) enqueue(priority Priority, action func() error) bool {
	p.mu.Lock()
	if p.stop {
		p.mu.Unlock()
		return false
	}
	p.queue.push(workItem{action: action, priority: priority, seq: p.nextSeq})
	p.nextSeq++
	p.opts.metrics.setQueueSize(p.name, p.queue.len())
	p.mu.Unlock()

	p.cond.Signal()

	p.opts.metrics.recordSubmitted(p.name)
	if onSubmit := p.opts.hooks.OnSubmit; onSubmit != nil {
		p.runHook("OnSubmit", func() { onSubmit(priority) })
	}
	return true
}

// Name returns the pool name used in logs and metrics.
func (p *Pool) Name() string {
	return p.name
}

// ThreadCount returns the number of workers, fixed at construction.
func (p *Pool) ThreadCount() int {
	return p.threads
}

// TasksRunning returns how many workers are not waiting for work. The value
// is a snapshot for diagnostics only.
func (p *Pool) TasksRunning() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// QueueLen returns the number of tasks waiting for a worker.
func (p *Pool) QueueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.len()
}

// Close stops the workers and waits for them to exit. Tasks already running
// finish first. Queued tasks are abandoned, and their futures never
// resolve, unless the pool was built WithDrainOnClose(true).
//
// Close is idempotent. It must not be called from inside a task.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.stop = true
		p.mu.Unlock()

		p.cond.Broadcast()
		p.wg.Wait()

		p.mu.Lock()
		abandoned := p.queue.len()
		for !p.queue.empty() {
			p.queue.pop()
		}
		p.opts.metrics.setQueueSize(p.name, 0)
		p.mu.Unlock()

		if abandoned > 0 {
			p.opts.metrics.recordAbandoned(p.name, abandoned)
			logger.Warnf("[%s] closed, abandoned %d queued tasks", p.name, abandoned)
			return
		}
		logger.Infof("[%s] closed", p.name)
	})
}

// Package bench measures the thread pool from the outside: it only uses the
// public threadpool API and times submissions and result retrieval.
package bench

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/jacobsa/timeutil"
	"golang.org/x/sync/errgroup"

	"github.com/majiddarvishan/threadpool/internal/logger"
	"github.com/majiddarvishan/threadpool/threadpool"
)

// scaleIterations is the number of runs averaged per thread count in the
// scalability sweep.
const scaleIterations = 3

var scaleThreadCounts = []int{1, 2, 4, 8, 16, 32}

// Runner executes the configured scenarios.
type Runner struct {
	cfg   Config
	clock timeutil.Clock
	opts  []threadpool.Option

	// maxThreads caps the scalability sweep.
	maxThreads int
}

// NewRunner validates cfg and returns a Runner. A nil clock means wall
// clock time. opts are applied to every pool the runner creates.
func NewRunner(cfg Config, clock timeutil.Clock, opts ...threadpool.Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid benchmark config: %w", err)
	}
	if clock == nil {
		clock = timeutil.RealClock()
	}
	return &Runner{
		cfg:        cfg,
		clock:      clock,
		opts:       opts,
		maxThreads: 2 * runtime.NumCPU(),
	}, nil
}

// Run executes every configured scenario in the order of AllScenarios. On
// error the report holds the results gathered so far.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		HardwareThreads: runtime.NumCPU(),
		Config:          r.cfg,
	}

	for _, name := range AllScenarios {
		if !slices.Contains(r.cfg.Scenarios, name) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		logger.Infof("running scenario %s", name)
		results, err := r.runScenario(ctx, name)
		if err != nil {
			return report, fmt.Errorf("scenario %s: %w", name, err)
		}
		report.Results = append(report.Results, results...)
	}
	return report, nil
}

func (r *Runner) runScenario(ctx context.Context, name string) ([]Result, error) {
	switch name {
	case ScenarioSubmission:
		return r.submission()
	case ScenarioEndToEnd:
		return r.endToEnd()
	case ScenarioCPU:
		return r.cpuIntensive()
	case ScenarioMixed:
		return r.mixed()
	case ScenarioFailures:
		return r.failures()
	case ScenarioContention:
		return r.contention(ctx)
	case ScenarioPriority:
		return r.priority()
	case ScenarioScalability:
		return r.scalability()
	}
	return nil, fmt.Errorf("unknown scenario %q", name)
}

// measure times fn on the runner's clock.
func (r *Runner) measure(fn func() error) (time.Duration, error) {
	start := r.clock.Now()
	err := fn()
	return r.clock.Now().Sub(start), err
}

// iterate runs body the given number of times and returns the mean
// duration in milliseconds.
func (r *Runner) iterate(name string, iterations int, body func() (time.Duration, error)) (float64, error) {
	var total time.Duration
	for i := 0; i < iterations; i++ {
		d, err := body()
		if err != nil {
			return 0, err
		}
		if r.cfg.Verbose {
			logger.Infof("%s iteration %d: %.2f ms", name, i, millis(d))
		}
		total += d
	}
	return millis(total) / float64(iterations), nil
}

func (r *Runner) poolOptions(scenario string) []threadpool.Option {
	opts := slices.Clone(r.opts)
	return append(opts, threadpool.WithName("bench-"+scenario))
}

func (r *Runner) newPool(threads int, scenario string) (*threadpool.Pool, error) {
	return threadpool.New(threads, r.poolOptions(scenario)...)
}

func (r *Runner) submission() ([]Result, error) {
	n := r.cfg.Tasks
	avg, err := r.iterate(ScenarioSubmission, r.cfg.Iterations, func() (time.Duration, error) {
		pool, err := r.newPool(r.cfg.Threads, ScenarioSubmission)
		if err != nil {
			return 0, err
		}
		defer pool.Close()

		futures := make([]*threadpool.Future[int], 0, n)
		// Only the submission loop is timed.
		d, _ := r.measure(func() error {
			for i := 0; i < n; i++ {
				futures = append(futures, threadpool.Submit(pool, func() (int, error) {
					return i, nil
				}))
			}
			return nil
		})
		return d, waitAll(futures)
	})
	if err != nil {
		return nil, err
	}

	return []Result{{
		Name:        ScenarioSubmission,
		Threads:     r.cfg.Threads,
		Tasks:       n,
		AvgMillis:   avg,
		TasksPerSec: perSecond(n, avg),
		Extra:       map[string]float64{"us_per_submission": avg * 1000 / float64(n)},
	}}, nil
}

func (r *Runner) endToEnd() ([]Result, error) {
	n := r.cfg.Tasks
	avg, err := r.iterate(ScenarioEndToEnd, r.cfg.Iterations, func() (time.Duration, error) {
		pool, err := r.newPool(r.cfg.Threads, ScenarioEndToEnd)
		if err != nil {
			return 0, err
		}
		defer pool.Close()

		return r.measure(func() error {
			futures := make([]*threadpool.Future[int], 0, n)
			for i := 0; i < n; i++ {
				futures = append(futures, threadpool.Submit(pool, func() (int, error) {
					return i, nil
				}))
			}
			return waitAll(futures)
		})
	})
	if err != nil {
		return nil, err
	}

	return []Result{{
		Name:        ScenarioEndToEnd,
		Threads:     r.cfg.Threads,
		Tasks:       n,
		AvgMillis:   avg,
		TasksPerSec: perSecond(n, avg),
	}}, nil
}

func (r *Runner) cpuIntensive() ([]Result, error) {
	n := r.cfg.Threads * 20
	fibN := r.cfg.CPUFibN
	avg, err := r.iterate(ScenarioCPU, r.cfg.Iterations, func() (time.Duration, error) {
		pool, err := r.newPool(r.cfg.Threads, ScenarioCPU)
		if err != nil {
			return 0, err
		}
		defer pool.Close()

		return r.measure(func() error {
			futures := make([]*threadpool.Future[int], 0, n)
			for i := 0; i < n; i++ {
				futures = append(futures, threadpool.Submit(pool, func() (int, error) {
					return fibonacci(fibN), nil
				}))
			}

			total := 0
			for _, f := range futures {
				v, err := f.Get()
				if err != nil {
					return err
				}
				total += v
			}
			if r.cfg.Verbose {
				logger.Infof("total fibonacci results: %d", total)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return []Result{{
		Name:        ScenarioCPU,
		Threads:     r.cfg.Threads,
		Tasks:       n,
		AvgMillis:   avg,
		TasksPerSec: perSecond(n, avg),
	}}, nil
}

func (r *Runner) mixed() ([]Result, error) {
	n := r.cfg.Tasks
	avg, err := r.iterate(ScenarioMixed, r.cfg.Iterations, func() (time.Duration, error) {
		pool, err := r.newPool(r.cfg.Threads, ScenarioMixed)
		if err != nil {
			return 0, err
		}
		defer pool.Close()

		return r.measure(func() error {
			futures := make([]*threadpool.Future[struct{}], 0, n)
			for i := 0; i < n; i++ {
				var task func() error
				switch rand.IntN(3) {
				case 0:
					task = func() error {
						fibonacci(25)
						return nil
					}
				case 1:
					d := time.Duration(1+rand.IntN(10)) * time.Millisecond
					task = func() error {
						simulateIO(d)
						return nil
					}
				default:
					size := 1000 + rand.IntN(9001)
					task = func() error {
						memoryWork(size)
						return nil
					}
				}
				futures = append(futures, threadpool.SubmitFunc(pool, task))
			}
			return waitAll(futures)
		})
	})
	if err != nil {
		return nil, err
	}

	return []Result{{
		Name:        ScenarioMixed,
		Threads:     r.cfg.Threads,
		Tasks:       n,
		AvgMillis:   avg,
		TasksPerSec: perSecond(n, avg),
	}}, nil
}

var errExpected = errors.New("expected failure")

func (r *Runner) failures() ([]Result, error) {
	n := r.cfg.FailureTasks
	avg, err := r.iterate(ScenarioFailures, r.cfg.Iterations, func() (time.Duration, error) {
		pool, err := r.newPool(r.cfg.Threads, ScenarioFailures)
		if err != nil {
			return 0, err
		}
		defer pool.Close()

		return r.measure(func() error {
			futures := make([]*threadpool.Future[int], 0, n)
			for i := 0; i < n; i++ {
				futures = append(futures, threadpool.Submit(pool, func() (int, error) {
					if i%2 == 0 {
						return 0, fmt.Errorf("task %d: %w", i, errExpected)
					}
					return i, nil
				}))
			}

			failed := 0
			for _, f := range futures {
				if _, err := f.Get(); err != nil {
					if !errors.Is(err, errExpected) {
						return err
					}
					failed++
				}
			}
			if failed != n/2 {
				return fmt.Errorf("unexpected number of failures: got %d, want %d", failed, n/2)
			}
			if r.cfg.Verbose {
				logger.Infof("caught %d failures", failed)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return []Result{{
		Name:        ScenarioFailures,
		Threads:     r.cfg.Threads,
		Tasks:       n,
		AvgMillis:   avg,
		TasksPerSec: perSecond(n, avg),
	}}, nil
}

// contention submits from one goroutine per worker at the same time.
func (r *Runner) contention(ctx context.Context) ([]Result, error) {
	n := r.cfg.Tasks
	submitters := r.cfg.Threads
	avg, err := r.iterate(ScenarioContention, r.cfg.Iterations, func() (time.Duration, error) {
		pool, err := r.newPool(r.cfg.Threads, ScenarioContention)
		if err != nil {
			return 0, err
		}
		defer pool.Close()

		return r.measure(func() error {
			g, gctx := errgroup.WithContext(ctx)
			for s := 0; s < submitters; s++ {
				share := n / submitters
				if s < n%submitters {
					share++
				}
				g.Go(func() error {
					futures := make([]*threadpool.Future[int], 0, share)
					for i := 0; i < share; i++ {
						if err := gctx.Err(); err != nil {
							return err
						}
						futures = append(futures, threadpool.Submit(pool, func() (int, error) {
							return i, nil
						}))
					}
					for _, f := range futures {
						if _, err := f.Wait(gctx); err != nil {
							return err
						}
					}
					return nil
				})
			}
			return g.Wait()
		})
	})
	if err != nil {
		return nil, err
	}

	return []Result{{
		Name:        ScenarioContention,
		Threads:     r.cfg.Threads,
		Tasks:       n,
		AvgMillis:   avg,
		TasksPerSec: perSecond(n, avg),
		Extra:       map[string]float64{"submitters": float64(submitters)},
	}}, nil
}

// priority queues tasks with random priorities behind a held single worker
// and checks they run highest first, FIFO among equals.
func (r *Runner) priority() ([]Result, error) {
	n := r.cfg.Tasks
	inversions := 0
	avg, err := r.iterate(ScenarioPriority, r.cfg.Iterations, func() (time.Duration, error) {
		pool, err := threadpool.NewPriority(1, r.poolOptions(ScenarioPriority)...)
		if err != nil {
			return 0, err
		}
		defer pool.Close()

		type run struct {
			prio threadpool.Priority
			seq  int
		}
		var (
			mu    sync.Mutex
			order = make([]run, 0, n)
		)

		started := make(chan struct{})
		release := make(chan struct{})
		threadpool.SubmitFunc(pool, func() error {
			close(started)
			<-release
			return nil
		})
		<-started

		d, err := r.measure(func() error {
			futures := make([]*threadpool.Future[struct{}], 0, n)
			for i := 0; i < n; i++ {
				prio := threadpool.Priority(rand.IntN(256) - 128)
				futures = append(futures, threadpool.SubmitPriorityFunc(pool, prio, func() error {
					mu.Lock()
					order = append(order, run{prio: prio, seq: i})
					mu.Unlock()
					return nil
				}))
			}
			close(release)
			return waitAll(futures)
		})
		if err != nil {
			return 0, err
		}

		for i := 1; i < len(order); i++ {
			prev, cur := order[i-1], order[i]
			if cur.prio > prev.prio || (cur.prio == prev.prio && cur.seq < prev.seq) {
				inversions++
			}
		}
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	if inversions > 0 {
		return nil, fmt.Errorf("%d priority inversions observed", inversions)
	}

	return []Result{{
		Name:        ScenarioPriority,
		Threads:     1,
		Tasks:       n,
		AvgMillis:   avg,
		TasksPerSec: perSecond(n, avg),
		Extra:       map[string]float64{"inversions": float64(inversions)},
	}}, nil
}

func (r *Runner) scalability() ([]Result, error) {
	n := r.cfg.ScaleTasks
	fibN := r.cfg.ScaleFibN

	var (
		results  []Result
		baseline float64
	)
	for _, threads := range scaleThreadCounts {
		if threads > r.maxThreads {
			continue
		}

		avg, err := r.iterate(ScenarioScalability, scaleIterations, func() (time.Duration, error) {
			pool, err := r.newPool(threads, ScenarioScalability)
			if err != nil {
				return 0, err
			}
			defer pool.Close()

			return r.measure(func() error {
				futures := make([]*threadpool.Future[int], 0, n)
				for i := 0; i < n; i++ {
					futures = append(futures, threadpool.Submit(pool, func() (int, error) {
						fibonacci(fibN)
						return i, nil
					}))
				}
				return waitAll(futures)
			})
		})
		if err != nil {
			return nil, err
		}

		if threads == 1 {
			baseline = avg
		}
		efficiency := 0.0
		if avg > 0 {
			efficiency = (baseline / avg) / float64(threads) * 100
		}

		results = append(results, Result{
			Name:        ScenarioScalability,
			Threads:     threads,
			Tasks:       n,
			AvgMillis:   avg,
			TasksPerSec: perSecond(n, avg),
			Extra:       map[string]float64{"efficiency_pct": efficiency},
		})
	}
	return results, nil
}

// waitAll blocks on every future and returns the first failure.
func waitAll[T any](futures []*threadpool.Future[T]) error {
	var first error
	for _, f := range futures {
		if _, err := f.Get(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func perSecond(tasks int, avgMillis float64) float64 {
	if avgMillis <= 0 {
		return 0
	}
	return float64(tasks) * 1000 / avgMillis
}

package threadpool

import (
	"time"

	"github.com/google/uuid"
)

// Hooks let you observe pool lifecycle events. Hooks run on the goroutine
// that triggers the event and must not block. A panicking hook is logged
// and otherwise ignored.
type Hooks struct {
	// OnSubmit runs after an item is queued.
	OnSubmit func(priority Priority)
	// OnStart runs on the worker right before a task executes.
	OnStart func()
	// OnFinish runs on the worker after a task executes. err is nil on
	// success.
	OnFinish func(err error, took time.Duration)
}

type options struct {
	name         string
	metrics      *Metrics
	hooks        Hooks
	drainOnClose bool
}

// Option configures a pool at construction.
type Option func(*options)

// WithName sets the name used in logs and as the pool_name metric label.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithMetrics attaches Prometheus collectors to the pool.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithHooks installs lifecycle hooks.
func WithHooks(h Hooks) Option {
	return func(o *options) {
		o.hooks = h
	}
}

// WithDrainOnClose makes Close run every queued item before the workers
// exit. By default Close abandons items that no worker has dequeued yet.
func WithDrainOnClose(drain bool) Option {
	return func(o *options) {
		o.drainOnClose = drain
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.name == "" {
		o.name = "pool-" + uuid.NewString()[:8]
	}
	return o
}

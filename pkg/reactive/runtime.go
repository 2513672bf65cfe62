package reactive

import (
	"log/slog"
	"sync"
)

// Runtime bundles one registry and one scheduler and is the context
// every store and computed notifies through. Constructing runtimes
// explicitly keeps shared state out of package globals; callers that
// want the one-instance-per-process behavior use Default.
type Runtime struct {
	registry  *Registry
	scheduler *Scheduler
	logger    *slog.Logger
	stats     Stats
}

// Option configures a Runtime.
type Option func(*runtimeConfig)

type runtimeConfig struct {
	logger *slog.Logger
	stats  Stats
	ticker Ticker
}

// WithLogger sets the logger used for contained faults and cycle
// warnings. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *runtimeConfig) { c.logger = logger }
}

// WithStats sets the stats sink the engine reports counters to.
func WithStats(stats Stats) Option {
	return func(c *runtimeConfig) { c.stats = stats }
}

// WithTicker sets the scheduler's deferral primitive.
func WithTicker(t Ticker) Option {
	return func(c *runtimeConfig) { c.ticker = t }
}

// NewRuntime creates a runtime with its own registry and scheduler.
func NewRuntime(opts ...Option) *Runtime {
	cfg := runtimeConfig{
		logger: slog.Default(),
		stats:  nopStats{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Runtime{
		registry:  NewRegistry(cfg.logger, cfg.stats),
		scheduler: NewScheduler(cfg.ticker, cfg.logger, cfg.stats),
		logger:    cfg.logger,
		stats:     cfg.stats,
	}
}

// Registry returns the runtime's synchronous subscription registry.
func (rt *Runtime) Registry() *Registry { return rt.registry }

// Scheduler returns the runtime's batched notification scheduler.
func (rt *Runtime) Scheduler() *Scheduler { return rt.scheduler }

// Subscribe registers a synchronous subscriber on the runtime's registry.
func (rt *Runtime) Subscribe(path string, fn SubscriberFunc) (unsubscribe func()) {
	return rt.registry.Subscribe(path, fn)
}

// Watch invokes fn with the new value whenever path changes, via the
// synchronous tier. It is a convenience over Registry.Subscribe for
// direct watchers that do not want batching. The returned stop function
// is idempotent.
func (rt *Runtime) Watch(path string, fn func(value any)) (stop func()) {
	return rt.registry.Subscribe(path, func(_ string, value any) {
		fn(value)
	})
}

// Flush forces immediate delivery of the pending batch.
func (rt *Runtime) Flush() {
	rt.scheduler.Flush()
}

var (
	defaultRuntime     *Runtime
	defaultRuntimeOnce sync.Once
)

// Default returns the process-wide runtime, created on first use.
func Default() *Runtime {
	defaultRuntimeOnce.Do(func() {
		defaultRuntime = NewRuntime()
	})
	return defaultRuntime
}

// Wrap wraps root on the default runtime.
func Wrap(root any) (*Store, error) {
	return Default().Wrap(root)
}

// Subscribe registers a subscriber on the default runtime.
func Subscribe(path string, fn SubscriberFunc) (unsubscribe func()) {
	return Default().Subscribe(path, fn)
}

// Flush flushes the default runtime's pending batch.
func Flush() {
	Default().Flush()
}

package reactive

import (
	"strconv"
	"sync"
	"sync/atomic"
)

// Computed is a lazily evaluated, cached derived value. Its dependencies
// are discovered automatically: whatever paths the compute function reads
// through a store become registry subscriptions that invalidate the cache,
// and whatever other computeds it reads become first-class dependency
// edges so invalidation cascades through derivation chains.
//
// Invalidation only marks; recomputation happens on the next Get.
type Computed[T any] struct {
	id   uint64
	rt   *Runtime
	name string
	fn   func() (T, error)

	mu    sync.Mutex
	value T

	// valid reports whether value reflects the current dependencies.
	valid atomic.Bool

	// evaluating is the cycle signal: re-entering an evaluation already
	// in progress means the compute function depends on itself.
	evaluating atomic.Bool

	// unsubs tears down the registry subscriptions of the most recent
	// evaluation; replaced wholesale each time dependencies may have
	// changed (conditional reads).
	unsubs []func()

	// sources are the computeds read during the most recent evaluation.
	sources []source

	// dependents are computeds that read this one and must be
	// invalidated when it invalidates.
	depMu      sync.Mutex
	dependents map[uint64]Listener
}

// ComputedOption configures a computed at construction.
type ComputedOption func(*computedConfig)

type computedConfig struct {
	name string
}

// Named labels the computed for cycle chains and dependency listings.
// Unnamed computeds fall back to an id-derived label.
func Named(name string) ComputedOption {
	return func(c *computedConfig) { c.name = name }
}

// NewComputed declares a derived value over rt. The compute function is
// not run until the first Get. A nil rt uses the default runtime.
func NewComputed[T any](rt *Runtime, fn func() (T, error), opts ...ComputedOption) *Computed[T] {
	if rt == nil {
		rt = Default()
	}
	var cfg computedConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Computed[T]{
		id:         nextID(),
		rt:         rt,
		name:       cfg.name,
		fn:         fn,
		dependents: make(map[uint64]Listener),
	}
	if c.name == "" {
		c.name = "computed#" + strconv.FormatUint(c.id, 10)
	}
	return c
}

// Get returns the cached value, evaluating first if the cache is invalid.
// Reading a computed from inside a tracked execution records it as a
// dependency of that execution. Errors from the compute function
// propagate to the caller with the record left invalid, so a later call
// retries. A self-referential evaluation fails with
// *CircularDependencyError.
func (c *Computed[T]) Get() (T, error) {
	recordSource(c)

	if !c.valid.Load() {
		if err := c.evaluate(); err != nil {
			var zero T
			return zero, err
		}
	}

	c.mu.Lock()
	v := c.value
	c.mu.Unlock()
	return v, nil
}

// Peek returns the value without registering a dependency on this
// computed. Still evaluates if the cache is invalid.
func (c *Computed[T]) Peek() (T, error) {
	if !c.valid.Load() {
		if err := c.evaluate(); err != nil {
			var zero T
			return zero, err
		}
	}
	c.mu.Lock()
	v := c.value
	c.mu.Unlock()
	return v, nil
}

// MarkDirty invalidates the cached value and transitively invalidates
// every dependent. Idempotent while already invalid, which bounds the
// cascade. Implements Listener.
func (c *Computed[T]) MarkDirty() {
	if !c.valid.CompareAndSwap(true, false) {
		return
	}

	c.depMu.Lock()
	deps := make([]Listener, 0, len(c.dependents))
	for _, d := range c.dependents {
		deps = append(deps, d)
	}
	c.depMu.Unlock()

	for _, d := range deps {
		d.MarkDirty()
	}
}

// ID implements Listener.
func (c *Computed[T]) ID() uint64 { return c.id }

// Name returns the computed's label.
func (c *Computed[T]) Name() string { return c.name }

func (c *Computed[T]) label() string { return "computed:" + c.name }

func (c *Computed[T]) addDependent(l Listener) {
	c.depMu.Lock()
	c.dependents[l.ID()] = l
	c.depMu.Unlock()
}

func (c *Computed[T]) removeDependent(id uint64) {
	c.depMu.Lock()
	delete(c.dependents, id)
	c.depMu.Unlock()
}

// evaluate runs the compute function under tracking and rebuilds the
// record's subscriptions and edges from what it actually read.
func (c *Computed[T]) evaluate() error {
	if c.evaluating.Swap(true) {
		return &CircularDependencyError{Chain: append(evalChain(), c.name)}
	}
	defer c.evaluating.Store(false)

	// The previous evaluation's subscriptions and edges may not match
	// this run's reads, so tear them all down first.
	for _, unsub := range c.unsubs {
		unsub()
	}
	c.unsubs = nil
	for _, s := range c.sources {
		s.removeDependent(c.id)
	}
	c.sources = nil

	pushEval(c.name)
	frame := pushFrame()

	value, err := c.runCompute(frame)
	if err != nil {
		// Record stays invalid; a future Get retries.
		return err
	}

	c.mu.Lock()
	c.value = value
	c.mu.Unlock()
	c.valid.Store(true)
	c.rt.stats.Recomputed()

	// Data paths invalidate via the synchronous registry tier.
	c.unsubs = make([]func(), 0, len(frame.paths))
	for _, path := range frame.paths {
		c.unsubs = append(c.unsubs, c.rt.registry.Subscribe(path, func(string, any) {
			c.MarkDirty()
		}))
	}

	// Computed sources invalidate through the dependents graph.
	for _, src := range frame.sources {
		if src == source(c) {
			continue
		}
		src.addDependent(c)
		c.sources = append(c.sources, src)
	}
	return nil
}

// runCompute isolates the frame/stack unwinding so a panicking compute
// function cannot leave a stale tracking frame installed.
func (c *Computed[T]) runCompute(frame *trackingFrame) (T, error) {
	defer func() {
		popFrame(frame)
		popEval()
	}()
	return c.fn()
}

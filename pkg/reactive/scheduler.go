package reactive

import (
	"log/slog"
	"sync"
	"time"
)

// UpdateHandler receives one coalesced batch entry at flush time.
type UpdateHandler func(path string, value any)

// CancelFunc cancels a scheduled tick. Safe to call after the tick fired.
type CancelFunc func()

// Ticker is the injectable deferral primitive the scheduler uses to yield
// back to its host. The default is timer-based; tests substitute a manual
// implementation and UI hosts hook their paint boundary.
type Ticker interface {
	Schedule(fn func()) CancelFunc
}

// timerTicker defers via time.AfterFunc.
type timerTicker struct {
	delay time.Duration
}

func (t timerTicker) Schedule(fn func()) CancelFunc {
	timer := time.AfterFunc(t.delay, fn)
	return func() { timer.Stop() }
}

// NewTimerTicker returns a Ticker that fires after d. A zero d uses a
// delay short enough to land on the next host scheduling boundary.
func NewTimerTicker(d time.Duration) Ticker {
	if d <= 0 {
		d = time.Millisecond
	}
	return timerTicker{delay: d}
}

// Scheduler coalesces deferred notifications. Writes within one tick to
// the same path collapse into a single delivery carrying the last value;
// delivery order across paths follows first-write insertion order.
//
// This is the deferred tier: consumers that tolerate coalescing (UI
// updates) register here, while computed invalidation rides the
// synchronous Registry tier.
type Scheduler struct {
	mu sync.Mutex

	// order and pending together form the batch: order preserves
	// first-write insertion order, pending holds the latest value per
	// path.
	order   []string
	pending map[string]any

	// cancelTick is non-nil while a tick is scheduled.
	cancelTick CancelFunc

	handlers map[uint64]UpdateHandler
	horder   []uint64

	ticker Ticker
	logger *slog.Logger
	stats  Stats
}

// NewScheduler creates a scheduler using ticker for deferral. Runtime
// wires one up with its logger and stats.
func NewScheduler(ticker Ticker, logger *slog.Logger, stats Stats) *Scheduler {
	if ticker == nil {
		ticker = NewTimerTicker(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if stats == nil {
		stats = nopStats{}
	}
	return &Scheduler{
		pending:  make(map[string]any),
		handlers: make(map[uint64]UpdateHandler),
		ticker:   ticker,
		logger:   logger,
		stats:    stats,
	}
}

// OnUpdate registers an update handler invoked once per batch entry at
// flush time. The returned function removes the handler and is
// idempotent.
func (s *Scheduler) OnUpdate(fn UpdateHandler) (remove func()) {
	id := nextID()

	s.mu.Lock()
	s.handlers[id] = fn
	s.horder = append(s.horder, id)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.handlers, id)
			for i, hid := range s.horder {
				if hid == id {
					s.horder = append(s.horder[:i], s.horder[i+1:]...)
					break
				}
			}
			s.mu.Unlock()
		})
	}
}

// Schedule stores the latest value for path in the pending batch and
// arranges a flush at the next tick if none is scheduled yet.
func (s *Scheduler) Schedule(path string, value any) {
	s.mu.Lock()
	if _, ok := s.pending[path]; !ok {
		s.order = append(s.order, path)
	}
	s.pending[path] = value

	if s.cancelTick == nil {
		s.cancelTick = s.ticker.Schedule(s.Flush)
	}
	s.mu.Unlock()
}

// Flush delivers all pending entries immediately, then clears the batch
// and cancels any scheduled tick. The batch is swapped out under the lock
// before delivery so handlers that write (and re-schedule) start a fresh
// batch instead of mutating the one mid-iteration.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	order := s.order
	pending := s.pending
	s.order = nil
	s.pending = make(map[string]any)
	if s.cancelTick != nil {
		s.cancelTick()
		s.cancelTick = nil
	}
	handlers := make([]UpdateHandler, 0, len(s.horder))
	for _, id := range s.horder {
		handlers = append(handlers, s.handlers[id])
	}
	s.mu.Unlock()

	for _, path := range order {
		value := pending[path]
		for _, h := range handlers {
			s.deliver(h, path, value)
		}
	}
	if len(order) > 0 {
		s.stats.Flushed(len(order))
	}
}

// deliver invokes one handler for one entry, containing panics so a
// faulty handler cannot block delivery for other paths.
func (s *Scheduler) deliver(h UpdateHandler, path string, value any) {
	defer func() {
		if rec := recover(); rec != nil {
			s.stats.SubscriberFault()
			s.logger.Error("update handler panic", "path", path, "panic", rec)
		}
	}()
	h(path, value)
}

// Pending reports the number of paths waiting in the current batch.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

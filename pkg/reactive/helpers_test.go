package reactive

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// testStats counts engine events for assertions.
type testStats struct {
	writesApplied int64
	writesSkipped int64
	notified      int64
	faults        int64
	recomputed    int64
	flushed       int64
	cyclesSkipped int64
}

func (s *testStats) WriteApplied()    { atomic.AddInt64(&s.writesApplied, 1) }
func (s *testStats) WriteSkipped()    { atomic.AddInt64(&s.writesSkipped, 1) }
func (s *testStats) Notified(n int)   { atomic.AddInt64(&s.notified, int64(n)) }
func (s *testStats) SubscriberFault() { atomic.AddInt64(&s.faults, 1) }
func (s *testStats) Recomputed()      { atomic.AddInt64(&s.recomputed, 1) }
func (s *testStats) Flushed(n int)    { atomic.AddInt64(&s.flushed, int64(n)) }
func (s *testStats) CycleSkipped()    { atomic.AddInt64(&s.cyclesSkipped, 1) }

// manualTicker defers until fire is called, so tests control the tick
// boundary deterministically.
type manualTicker struct {
	mu        sync.Mutex
	pending   []func()
	scheduled int
	canceled  int
}

func (m *manualTicker) Schedule(fn func()) CancelFunc {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduled++
	m.pending = append(m.pending, fn)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.canceled++
	}
}

func (m *manualTicker) fire() {
	m.mu.Lock()
	fns := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// newTestRuntime builds a runtime with a manual ticker, counting stats,
// and a discard logger.
func newTestRuntime() (*Runtime, *testStats, *manualTicker) {
	stats := &testStats{}
	ticker := &manualTicker{}
	rt := NewRuntime(
		WithStats(stats),
		WithTicker(ticker),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return rt, stats, ticker
}

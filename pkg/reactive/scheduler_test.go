package reactive

import (
	"testing"
)

func TestBatchCoalescesSamePath(t *testing.T) {
	rt, _, _ := newTestRuntime()
	s := rt.Scheduler()

	var calls int
	var last any
	s.OnUpdate(func(_ string, value any) { calls++; last = value })

	for i := 1; i <= 5; i++ {
		s.Schedule("a", i)
	}
	s.Flush()

	// Five writes in one tick collapse into exactly one delivery
	// carrying the last value.
	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}
	if last != 5 {
		t.Errorf("delivered value = %v, want 5", last)
	}
}

func TestBatchInsertionOrder(t *testing.T) {
	rt, _, _ := newTestRuntime()
	s := rt.Scheduler()

	var order []string
	s.OnUpdate(func(path string, _ any) { order = append(order, path) })

	s.Schedule("b", 1)
	s.Schedule("a", 1)
	s.Schedule("b", 2) // already queued, keeps its slot
	s.Schedule("c", 1)
	s.Flush()

	want := []string{"b", "a", "c"}
	if len(order) != len(want) {
		t.Fatalf("delivered %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("delivery[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestTickTriggersFlush(t *testing.T) {
	rt, _, ticker := newTestRuntime()
	s := rt.Scheduler()

	var calls int
	s.OnUpdate(func(string, any) { calls++ })

	s.Schedule("a", 1)
	s.Schedule("b", 1)
	if calls != 0 {
		t.Fatalf("handler ran before tick")
	}
	if ticker.scheduled != 1 {
		t.Errorf("scheduled %d ticks for one batch, want 1", ticker.scheduled)
	}

	ticker.fire()
	if calls != 2 {
		t.Errorf("handler called %d times after tick, want 2", calls)
	}
	if s.Pending() != 0 {
		t.Errorf("pending = %d after flush", s.Pending())
	}
}

func TestManualFlushCancelsTick(t *testing.T) {
	rt, _, ticker := newTestRuntime()
	s := rt.Scheduler()

	var calls int
	s.OnUpdate(func(string, any) { calls++ })

	s.Schedule("a", 1)
	s.Flush()
	if calls != 1 {
		t.Fatalf("handler called %d times, want 1", calls)
	}
	if ticker.canceled != 1 {
		t.Errorf("pending tick not canceled")
	}

	// The stale tick firing later must not re-deliver.
	ticker.fire()
	if calls != 1 {
		t.Errorf("stale tick re-delivered, calls = %d", calls)
	}
}

func TestFlushEmptyBatch(t *testing.T) {
	rt, stats, _ := newTestRuntime()
	s := rt.Scheduler()
	s.Flush()
	if stats.flushed != 0 {
		t.Errorf("empty flush reported %d entries", stats.flushed)
	}
}

func TestUpdateHandlerFaultIsolation(t *testing.T) {
	rt, stats, _ := newTestRuntime()
	s := rt.Scheduler()

	var delivered []string
	s.OnUpdate(func(path string, _ any) {
		if path == "bad" {
			panic("handler fault")
		}
		delivered = append(delivered, path)
	})

	s.Schedule("bad", 1)
	s.Schedule("good", 1)
	s.Flush()

	if len(delivered) != 1 || delivered[0] != "good" {
		t.Errorf("delivered = %v, want [good]", delivered)
	}
	if stats.faults != 1 {
		t.Errorf("faults = %d, want 1", stats.faults)
	}
}

func TestScheduleDuringFlushStartsFreshBatch(t *testing.T) {
	rt, _, _ := newTestRuntime()
	s := rt.Scheduler()

	var calls int
	s.OnUpdate(func(path string, _ any) {
		calls++
		if path == "a" {
			// Writer re-entering mid-flush lands in a new batch.
			s.Schedule("a", "again")
		}
	})

	s.Schedule("a", "first")
	s.Flush()
	if calls != 1 {
		t.Fatalf("first flush delivered %d entries, want 1", calls)
	}
	if s.Pending() != 1 {
		t.Fatalf("re-entrant schedule pending = %d, want 1", s.Pending())
	}
	s.Flush()
	if calls != 2 {
		t.Errorf("second flush delivered %d total, want 2", calls)
	}
}

func TestRemoveUpdateHandler(t *testing.T) {
	rt, _, _ := newTestRuntime()
	s := rt.Scheduler()

	var calls int
	remove := s.OnUpdate(func(string, any) { calls++ })
	remove()
	remove() // idempotent

	s.Schedule("a", 1)
	s.Flush()
	if calls != 0 {
		t.Errorf("removed handler called %d times", calls)
	}
}

func TestExactOnceBatchedDeliveryThroughStore(t *testing.T) {
	rt, _, _ := newTestRuntime()
	store, _ := rt.Wrap(map[string]any{"a": 0})

	var calls int
	var last any
	rt.Scheduler().OnUpdate(func(_ string, value any) { calls++; last = value })

	for i := 1; i <= 5; i++ {
		store.Set("a", i)
	}
	rt.Flush()

	if calls != 1 {
		t.Errorf("batched handler called %d times, want 1", calls)
	}
	if last != 5 {
		t.Errorf("last value = %v, want 5", last)
	}
}

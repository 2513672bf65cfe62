package reactive

import (
	"io"
	"log/slog"
	"testing"
)

func newTestRegistry() (*Registry, *testStats) {
	stats := &testStats{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRegistry(logger, stats), stats
}

func TestRegistryNotifyOrder(t *testing.T) {
	r, _ := newTestRegistry()

	var order []int
	r.Subscribe("a", func(string, any) { order = append(order, 1) })
	r.Subscribe("a", func(string, any) { order = append(order, 2) })
	r.Subscribe("a", func(string, any) { order = append(order, 3) })

	r.Notify("a", 0)

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("subscribers fired in order %v, want [1 2 3]", order)
	}
}

func TestRegistryExactMatchOnly(t *testing.T) {
	r, _ := newTestRegistry()

	fired := 0
	r.Subscribe("user.name", func(string, any) { fired++ })

	r.Notify("user", nil)
	r.Notify("user.name.first", nil)
	if fired != 0 {
		t.Errorf("non-exact paths fired subscriber %d times", fired)
	}

	r.Notify("user.name", "Ann")
	if fired != 1 {
		t.Errorf("exact path fired %d times, want 1", fired)
	}
}

func TestRegistryPatternMatch(t *testing.T) {
	r, _ := newTestRegistry()

	var got []string
	r.Subscribe("user.*", func(path string, _ any) { got = append(got, path) })

	r.Notify("user.name", nil)
	r.Notify("user.age", nil)
	r.Notify("user.address.city", nil)

	if len(got) != 2 || got[0] != "user.name" || got[1] != "user.age" {
		t.Errorf("pattern matched %v, want [user.name user.age]", got)
	}
}

func TestRegistryUnsubscribeIdempotent(t *testing.T) {
	r, _ := newTestRegistry()

	fired := 0
	unsub := r.Subscribe("a", func(string, any) { fired++ })

	unsub()
	unsub() // duplicate calls are safe no-ops

	r.Notify("a", nil)
	if fired != 0 {
		t.Errorf("unsubscribed callback fired %d times", fired)
	}
}

func TestRegistryEvictsEmptyEntries(t *testing.T) {
	r, _ := newTestRegistry()

	unsubA := r.Subscribe("a", func(string, any) {})
	unsubB := r.Subscribe("a", func(string, any) {})
	unsubA()
	if r.SubscriberCount("a") != 1 {
		t.Errorf("count = %d, want 1", r.SubscriberCount("a"))
	}
	unsubB()
	if r.SubscriberCount("a") != 0 {
		t.Errorf("count = %d, want 0", r.SubscriberCount("a"))
	}
	if len(r.exact) != 0 {
		t.Errorf("registry kept %d empty entries", len(r.exact))
	}
}

func TestRegistryFaultIsolation(t *testing.T) {
	r, stats := newTestRegistry()

	secondRan := false
	r.Subscribe("a", func(string, any) { panic("subscriber fault") })
	r.Subscribe("a", func(string, any) { secondRan = true })

	r.Notify("a", nil)

	if !secondRan {
		t.Error("second subscriber did not run after first panicked")
	}
	if stats.faults != 1 {
		t.Errorf("faults = %d, want 1", stats.faults)
	}
}

func TestRegistrySubscribeDuringNotify(t *testing.T) {
	r, _ := newTestRegistry()

	lateFired := 0
	r.Subscribe("a", func(string, any) {
		r.Subscribe("a", func(string, any) { lateFired++ })
	})

	r.Notify("a", nil)
	if lateFired != 0 {
		t.Errorf("subscriber added mid-notify fired %d times in same fan-out", lateFired)
	}

	r.Notify("a", nil)
	if lateFired != 1 {
		t.Errorf("late subscriber fired %d times on next notify, want 1", lateFired)
	}
}

package reactive

import (
	"testing"
)

func TestWithTrackingRecordsReads(t *testing.T) {
	rt, _, _ := newTestRuntime()
	store, err := rt.Wrap(map[string]any{
		"user": map[string]any{"name": "Ann", "age": 30},
	})
	if err != nil {
		t.Fatal(err)
	}

	tracked := WithTracking(func() any {
		return store.Get("user.name")
	})
	if tracked.Result != "Ann" {
		t.Errorf("result = %v, want Ann", tracked.Result)
	}

	want := []string{"user", "user.name"}
	if len(tracked.Dependencies) != len(want) {
		t.Fatalf("dependencies = %v, want %v", tracked.Dependencies, want)
	}
	for i, p := range want {
		if tracked.Dependencies[i] != p {
			t.Errorf("dependency[%d] = %q, want %q", i, tracked.Dependencies[i], p)
		}
	}
}

func TestWithTrackingDeduplicates(t *testing.T) {
	rt, _, _ := newTestRuntime()
	store, _ := rt.Wrap(map[string]any{"a": 1})

	tracked := WithTracking(func() any {
		_ = store.Get("a")
		_ = store.Get("a")
		return nil
	})
	if len(tracked.Dependencies) != 1 {
		t.Errorf("dependencies = %v, want one entry", tracked.Dependencies)
	}
}

func TestWithTrackingNests(t *testing.T) {
	rt, _, _ := newTestRuntime()
	store, _ := rt.Wrap(map[string]any{"a": 1, "b": 2})

	var inner Tracked[any]
	outer := WithTracking(func() any {
		_ = store.Get("a")
		// The nested execution suspends the outer frame and resumes it
		// on return.
		inner = WithTracking(func() any {
			return store.Get("b")
		})
		_ = store.Get("a")
		return nil
	})

	if len(inner.Dependencies) != 1 || inner.Dependencies[0] != "b" {
		t.Errorf("inner dependencies = %v, want [b]", inner.Dependencies)
	}
	if len(outer.Dependencies) != 1 || outer.Dependencies[0] != "a" {
		t.Errorf("outer dependencies = %v, want [a]", outer.Dependencies)
	}
}

func TestWithTrackingRestoresOnPanic(t *testing.T) {
	rt, _, _ := newTestRuntime()
	store, _ := rt.Wrap(map[string]any{"a": 1, "b": 2})

	outer := WithTracking(func() any {
		func() {
			defer func() { _ = recover() }()
			_ = WithTracking(func() any {
				_ = store.Get("b")
				panic("boom")
			})
		}()
		_ = store.Get("a")
		return nil
	})

	if len(outer.Dependencies) != 1 || outer.Dependencies[0] != "a" {
		t.Errorf("outer dependencies after panic = %v, want [a]", outer.Dependencies)
	}
}

func TestUntracked(t *testing.T) {
	rt, _, _ := newTestRuntime()
	store, _ := rt.Wrap(map[string]any{"a": 1, "b": 2})

	tracked := WithTracking(func() any {
		_ = store.Get("a")
		Untracked(func() {
			_ = store.Get("b")
		})
		return nil
	})

	for _, dep := range tracked.Dependencies {
		if dep == "b" {
			t.Errorf("untracked read recorded: %v", tracked.Dependencies)
		}
	}
}

func TestNoTrackingOutsideContext(t *testing.T) {
	rt, _, _ := newTestRuntime()
	store, _ := rt.Wrap(map[string]any{"a": 1})

	// Reads outside WithTracking must not leak into a later frame.
	_ = store.Get("a")
	tracked := WithTracking(func() any { return nil })
	if len(tracked.Dependencies) != 0 {
		t.Errorf("dependencies = %v, want none", tracked.Dependencies)
	}
}

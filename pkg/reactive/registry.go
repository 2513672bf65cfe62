package reactive

import (
	"log/slog"
	"sync"
)

// SubscriberFunc receives a synchronous write notification. For pattern
// subscriptions, path is the concrete path that was written, not the
// pattern.
type SubscriberFunc func(path string, value any)

// Registry maps paths to subscriber callbacks. Subscribers fire
// synchronously, in registration order, in-line with the write that
// caused the notification. This tier drives computed invalidation and
// direct watchers and is never deferred.
type Registry struct {
	mu sync.Mutex

	// exact holds non-wildcard subscriptions keyed by path.
	exact map[string][]*subscription

	// patterns holds wildcard subscriptions, matched per notification.
	patterns []*subscription

	logger *slog.Logger
	stats  Stats
}

type subscription struct {
	id   uint64
	path string
	fn   SubscriberFunc
}

// NewRegistry creates an empty registry. Runtime wires one up for you;
// construct directly only when using the registry standalone.
func NewRegistry(logger *slog.Logger, stats Stats) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if stats == nil {
		stats = nopStats{}
	}
	return &Registry{
		exact:  make(map[string][]*subscription),
		logger: logger,
		stats:  stats,
	}
}

// Subscribe registers fn to be invoked whenever a write notification for
// path occurs. Paths containing "*" or a trailing "**" segment are
// treated as patterns and match per Match. The returned unsubscribe
// function is idempotent.
func (r *Registry) Subscribe(path string, fn SubscriberFunc) (unsubscribe func()) {
	sub := &subscription{id: nextID(), path: path, fn: fn}

	r.mu.Lock()
	if isPattern(path) {
		r.patterns = append(r.patterns, sub)
	} else {
		r.exact[path] = append(r.exact[path], sub)
	}
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(sub) })
	}
}

func (r *Registry) remove(sub *subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if isPattern(sub.path) {
		for i, s := range r.patterns {
			if s.id == sub.id {
				r.patterns = append(r.patterns[:i], r.patterns[i+1:]...)
				return
			}
		}
		return
	}

	subs := r.exact[sub.path]
	for i, s := range subs {
		if s.id == sub.id {
			subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	// Drop the entry entirely once empty so the map does not grow
	// unbounded for paths no longer observed.
	if len(subs) == 0 {
		delete(r.exact, sub.path)
	} else {
		r.exact[sub.path] = subs
	}
}

// Notify invokes every subscriber registered for path, exact matches
// first and then patterns, each in registration order. A panicking
// subscriber is contained and logged; the remaining subscribers still run.
func (r *Registry) Notify(path string, value any) {
	// Copy before notify so callbacks may subscribe or unsubscribe
	// without deadlocking.
	r.mu.Lock()
	matched := make([]*subscription, 0, len(r.exact[path]))
	matched = append(matched, r.exact[path]...)
	for _, sub := range r.patterns {
		if Match(sub.path, path) {
			matched = append(matched, sub)
		}
	}
	r.mu.Unlock()

	for _, sub := range matched {
		r.invoke(sub, path, value)
	}
	r.stats.Notified(len(matched))
}

func (r *Registry) invoke(sub *subscription, path string, value any) {
	defer func() {
		if rec := recover(); rec != nil {
			r.stats.SubscriberFault()
			r.logger.Error("subscriber panic",
				"path", path,
				"subscription", sub.path,
				"panic", rec)
		}
	}()
	sub.fn(path, value)
}

// SubscriberCount reports how many subscribers would fire for path.
func (r *Registry) SubscriberCount(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.exact[path])
	for _, sub := range r.patterns {
		if Match(sub.path, path) {
			n++
		}
	}
	return n
}

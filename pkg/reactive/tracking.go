package reactive

import (
	"runtime"
	"sync"
)

// trackingContext holds the reactive recording state for one goroutine.
// A fresh frame is pushed for every tracked execution and popped when it
// returns, so nested tracked executions suspend and resume the outer one
// with stack discipline.
type trackingContext struct {
	// frame is the currently recording frame; nil means reads are not
	// being tracked.
	frame *trackingFrame

	// evalStack holds the labels of computed records currently
	// evaluating on this goroutine, innermost last. Used to build the
	// chain carried by CircularDependencyError.
	evalStack []string
}

// trackingFrame records everything read during one tracked execution.
type trackingFrame struct {
	prev *trackingFrame

	// paths are the data paths read, in first-read order.
	paths []string
	seen  map[string]struct{}

	// sources are the computed records read. These become first-class
	// dependency edges rather than registry subscriptions.
	sources []source
}

// trackingContexts stores per-goroutine contexts. sync.Map because
// tracked executions may run on any goroutine.
var trackingContexts sync.Map

// goroutineID extracts the current goroutine's ID from the runtime stack
// header. Implementation detail; never exposed.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	// The header reads "goroutine <id> ...".
	var id uint64
	for i := 10; i < n; i++ {
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

func currentTracking() *trackingContext {
	gid := goroutineID()
	if tc, ok := trackingContexts.Load(gid); ok {
		return tc.(*trackingContext)
	}
	tc := &trackingContext{}
	trackingContexts.Store(gid, tc)
	return tc
}

// pushFrame installs a fresh recording frame, suspending the current one.
func pushFrame() *trackingFrame {
	tc := currentTracking()
	f := &trackingFrame{
		prev: tc.frame,
		seen: make(map[string]struct{}),
	}
	tc.frame = f
	return f
}

// popFrame restores the frame that was current before f was pushed.
func popFrame(f *trackingFrame) {
	tc := currentTracking()
	tc.frame = f.prev
}

// recordRead adds a data path to the current frame, if one is recording.
func recordRead(path string) {
	tc := currentTracking()
	f := tc.frame
	if f == nil || path == "" {
		return
	}
	if _, ok := f.seen[path]; ok {
		return
	}
	f.seen[path] = struct{}{}
	f.paths = append(f.paths, path)
}

// recordSource adds a computed source to the current frame.
func recordSource(s source) {
	tc := currentTracking()
	f := tc.frame
	if f == nil {
		return
	}
	for _, existing := range f.sources {
		if existing == s {
			return
		}
	}
	f.sources = append(f.sources, s)
}

func pushEval(label string) {
	tc := currentTracking()
	tc.evalStack = append(tc.evalStack, label)
}

func popEval() {
	tc := currentTracking()
	if n := len(tc.evalStack); n > 0 {
		tc.evalStack = tc.evalStack[:n-1]
	}
}

// evalChain returns a copy of the current evaluation stack.
func evalChain() []string {
	tc := currentTracking()
	chain := make([]string, len(tc.evalStack))
	copy(chain, tc.evalStack)
	return chain
}

// Tracked pairs a tracked execution's result with the dependencies it
// read. Dependencies lists data paths first, in read order, followed by
// one pseudo-entry per computed source read.
type Tracked[T any] struct {
	Result       T
	Dependencies []string
}

// WithTracking executes fn with a fresh tracking context installed as
// current and reports every path it read. The outer tracking context, if
// any, is suspended for the duration and restored on return, including
// when fn panics.
func WithTracking[T any](fn func() T) Tracked[T] {
	f := pushFrame()
	defer popFrame(f)

	result := fn()

	deps := make([]string, 0, len(f.paths)+len(f.sources))
	deps = append(deps, f.paths...)
	for _, s := range f.sources {
		deps = append(deps, s.label())
	}
	return Tracked[T]{Result: result, Dependencies: deps}
}

// Untracked runs fn with dependency recording suspended. Reads inside fn
// register nothing, even when called from a tracked execution.
func Untracked(fn func()) {
	tc := currentTracking()
	old := tc.frame
	tc.frame = nil
	defer func() { tc.frame = old }()
	fn()
}

package reactive

import "sync/atomic"

// Listener is anything that can be told a dependency changed.
// Computed records implement it; so do the ad hoc listeners tests use.
type Listener interface {
	// MarkDirty notifies the listener that one of its dependencies has
	// changed. For computed records this invalidates the cached value
	// without recomputing it.
	MarkDirty()

	// ID returns a unique identifier for this listener, used to keep
	// dependent sets deduplicated.
	ID() uint64
}

// source is a value that other computations can depend on as a
// first-class edge rather than through a data path. Computed records are
// sources: a computed that reads another registers itself as a dependent
// and is marked dirty when the source invalidates.
type source interface {
	addDependent(l Listener)
	removeDependent(id uint64)

	// label names the source in dependency lists and cycle chains.
	label() string
}

// idCounter feeds every reactive primitive a process-unique ID.
var idCounter uint64

func nextID() uint64 {
	return atomic.AddUint64(&idCounter, 1)
}

// Package reactive implements the dependency-tracking and computation
// engine behind Attune's data binding.
//
// Plain nested data (maps and slices) is wrapped in a Store. Reads through
// the store record dot-joined paths into the current tracking context;
// writes detect real change, synchronously notify path subscribers, and
// enqueue a coalesced update for deferred consumers.
//
// Two notification tiers exist. The Registry fires synchronously with the
// write and drives computed invalidation and direct watchers. The Scheduler
// coalesces writes per path within one tick and delivers the latest value
// exactly once per flush, which is what UI-facing consumers want.
//
// Computed values are lazy cached derivations. Reading one during another
// computed's evaluation creates a first-class dependency edge, so
// invalidation cascades through chains of derived values without eager
// recomputation.
//
// The package is single-threaded in spirit: stores, registries, and
// computed records are meant to be mutated from one goroutine. Internal
// locking exists only so the deferred tick boundary is safe.
package reactive

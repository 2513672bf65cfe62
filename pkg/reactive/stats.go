package reactive

// Stats receives counters from the engine. Implementations must be safe
// for concurrent use; the engine calls them in-line with the operations
// they describe. The prometheus implementation lives in pkg/metrics so
// the core carries no collector dependency.
type Stats interface {
	// WriteApplied is called when a Set or Delete changed the backing data.
	WriteApplied()

	// WriteSkipped is called when a Set was a no-op because the value
	// was unchanged.
	WriteSkipped()

	// Notified is called after a synchronous notification fan-out with
	// the number of subscribers invoked.
	Notified(subscribers int)

	// SubscriberFault is called when a subscriber or update handler
	// panicked and was contained.
	SubscriberFault()

	// Recomputed is called when a computed record finished a successful
	// evaluation.
	Recomputed()

	// Flushed is called after a batch flush with the number of entries
	// delivered.
	Flushed(entries int)

	// CycleSkipped is called when a cyclic substructure was left
	// unwrapped during Wrap.
	CycleSkipped()
}

// nopStats is the default Stats sink.
type nopStats struct{}

func (nopStats) WriteApplied()    {}
func (nopStats) WriteSkipped()    {}
func (nopStats) Notified(int)     {}
func (nopStats) SubscriberFault() {}
func (nopStats) Recomputed()      {}
func (nopStats) Flushed(int)      {}
func (nopStats) CycleSkipped()    {}

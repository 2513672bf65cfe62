// Package metrics exposes the reactive engine's counters as Prometheus
// metrics. The core reports through the reactive.Stats interface and
// stays free of collector dependencies; this package is the production
// implementation of that interface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/attune-dev/attune/pkg/reactive"
)

// Config configures the stats collector.
type Config struct {
	// Namespace is the metrics namespace (default: "attune").
	Namespace string

	// Subsystem is the metrics subsystem (default: "reactive").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the stats collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) { c.Namespace = namespace }
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) { c.Subsystem = subsystem }
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) { c.ConstLabels = labels }
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) { c.Registry = registry }
}

// Collector implements reactive.Stats on Prometheus counters. Pass one
// to reactive.NewRuntime via reactive.WithStats.
type Collector struct {
	writesApplied  prometheus.Counter
	writesSkipped  prometheus.Counter
	notifications  prometheus.Counter
	faults         prometheus.Counter
	recomputations prometheus.Counter
	flushes        prometheus.Counter
	flushEntries   prometheus.Counter
	cycleSkips     prometheus.Counter
}

// New creates a collector and registers its metrics.
func New(opts ...Option) *Collector {
	cfg := Config{
		Namespace: "attune",
		Subsystem: "reactive",
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	counter := func(name, help string) prometheus.Counter {
		return promauto.With(cfg.Registry).NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: cfg.ConstLabels,
		})
	}

	return &Collector{
		writesApplied:  counter("writes_applied_total", "Writes that changed backing data."),
		writesSkipped:  counter("writes_skipped_total", "Writes skipped because the value was unchanged."),
		notifications:  counter("notifications_total", "Synchronous subscriber invocations."),
		faults:         counter("subscriber_faults_total", "Contained subscriber and handler panics."),
		recomputations: counter("recomputations_total", "Successful computed evaluations."),
		flushes:        counter("batch_flushes_total", "Batch flushes delivered."),
		flushEntries:   counter("batch_flush_entries_total", "Batch entries delivered across all flushes."),
		cycleSkips:     counter("cycle_skips_total", "Cyclic substructures left unwrapped."),
	}
}

var _ reactive.Stats = (*Collector)(nil)

func (c *Collector) WriteApplied()    { c.writesApplied.Inc() }
func (c *Collector) WriteSkipped()    { c.writesSkipped.Inc() }
func (c *Collector) Notified(n int)   { c.notifications.Add(float64(n)) }
func (c *Collector) SubscriberFault() { c.faults.Inc() }
func (c *Collector) Recomputed()      { c.recomputations.Inc() }
func (c *Collector) CycleSkipped()    { c.cycleSkips.Inc() }

func (c *Collector) Flushed(entries int) {
	c.flushes.Inc()
	c.flushEntries.Add(float64(entries))
}

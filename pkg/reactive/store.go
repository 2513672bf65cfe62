package reactive

import (
	"log/slog"
	"reflect"
	"sort"
	"strconv"
)

// Store is the observable view over one tree of nested data. Reads
// through the store record dependency paths into the current tracking
// frame; writes detect real change, notify the registry synchronously,
// and enqueue the path into the scheduler's batch.
//
// The store exclusively owns its raw backing structure after Wrap.
// Mutating the backing data directly bypasses change detection.
type Store struct {
	rt   *Runtime
	root *node

	// rawPaths marks access paths at which a reference cycle was found
	// during the initial wrap. Values there are served unwrapped and
	// non-reactive.
	rawPaths map[string]struct{}

	logger *slog.Logger
}

// node is a live view over one level of the backing data. Child views
// are cached per property and evicted when the property is overwritten
// with a composite of different identity.
type node struct {
	store *Store
	path  string
	data  any

	children  map[string]*node
	childData map[string]any
}

// Wrap returns an observable store over root, which must be a
// map[string]any or []any tree (the shape the syntax layer hands over).
// Wrapping a value that is already a Store is idempotent and returns it
// unchanged. Reference cycles inside root are detected once, warned
// about, and left unwrapped rather than recursed into.
func (rt *Runtime) Wrap(root any) (*Store, error) {
	if s, ok := root.(*Store); ok {
		return s, nil
	}
	if !isComposite(root) {
		return nil, ErrNotComposite
	}

	s := &Store{
		rt:       rt,
		rawPaths: make(map[string]struct{}),
		logger:   rt.logger,
	}
	s.scanCycles(root, "", make(map[uintptr]struct{}))
	s.root = &node{store: s, path: "", data: root}
	return s, nil
}

// scanCycles walks the tree once at wrap time with a per-wrap seen set.
// Encountering an identity already seen marks that path raw and emits a
// non-fatal warning; the substructure stays accessible but non-reactive.
func (s *Store) scanCycles(v any, path string, seen map[uintptr]struct{}) {
	id, ok := identityOf(v)
	if !ok {
		return
	}
	if _, dup := seen[id]; dup {
		s.rawPaths[path] = struct{}{}
		s.rt.stats.CycleSkipped()
		s.logger.Warn("reference cycle left unwrapped", "path", path)
		return
	}
	seen[id] = struct{}{}

	switch d := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if isComposite(d[k]) {
				s.scanCycles(d[k], Child(path, k), seen)
			}
		}
	case []any:
		for i, cv := range d {
			if isComposite(cv) {
				s.scanCycles(cv, Child(path, Index(i)), seen)
			}
		}
	}
}

// Get reads the value at path. Every path prefix traversed is recorded
// into the current tracking frame, so a computed that read a deep path
// is also invalidated when an ancestor is replaced wholesale. Missing
// properties and reads through primitives return nil rather than error.
func (s *Store) Get(path string) any {
	segs := Split(path)
	n := s.root
	for i, seg := range segs {
		p := Child(n.path, seg)
		recordRead(p)

		v, ok := lookupProp(n.data, seg)
		if !ok {
			return nil
		}
		if i == len(segs)-1 {
			return v
		}

		child := n.child(seg, v)
		if child == nil {
			if _, raw := s.rawPaths[p]; raw {
				// Cyclic substructure: permissive plain lookup, no
				// tracking below this point.
				return rawLookup(v, segs[i+1:])
			}
			// Reading through a primitive.
			return nil
		}
		n = child
	}
	return n.data
}

// Set writes value at path. An unchanged value is a no-op with no
// notifications. A real change applies to the backing data, evicts the
// cached child view for that property, synchronously notifies exact and
// pattern subscribers, and enqueues the path for batched delivery.
// Missing intermediate containers are created as maps.
func (s *Store) Set(path string, value any) {
	segs := Split(path)
	if len(segs) == 0 {
		return
	}

	n := s.root
	for _, seg := range segs[:len(segs)-1] {
		v, ok := lookupProp(n.data, seg)
		if !ok || !isComposite(v) {
			m := make(map[string]any)
			if !applyProp(n.data, seg, m) {
				return
			}
			n.evict(seg)
			v = m
		}
		child := n.child(seg, v)
		if child == nil {
			// Unwrapped cyclic substructure; writes there are not
			// observable, so decline.
			return
		}
		n = child
	}

	seg := segs[len(segs)-1]
	full := Child(n.path, seg)
	old, had := lookupProp(n.data, seg)
	if had && valuesEqual(old, value) {
		s.rt.stats.WriteSkipped()
		return
	}
	if !applyProp(n.data, seg, value) {
		return
	}
	n.evict(seg)

	s.rt.stats.WriteApplied()
	s.rt.registry.Notify(full, value)
	s.rt.scheduler.Schedule(full, value)
}

// Delete removes the property at path, notifying with a nil value.
// Deleting an absent property is a no-op.
func (s *Store) Delete(path string) {
	segs := Split(path)
	if len(segs) == 0 {
		return
	}

	n := s.root
	for _, seg := range segs[:len(segs)-1] {
		v, ok := lookupProp(n.data, seg)
		if !ok {
			return
		}
		child := n.child(seg, v)
		if child == nil {
			return
		}
		n = child
	}

	seg := segs[len(segs)-1]
	if _, had := lookupProp(n.data, seg); !had {
		return
	}
	deleteProp(n.data, seg)
	n.evict(seg)

	full := Child(n.path, seg)
	s.rt.stats.WriteApplied()
	s.rt.registry.Notify(full, nil)
	s.rt.scheduler.Schedule(full, nil)
}

// At returns a view scoped to base; its Get/Set/Delete address paths
// relative to base through this store.
func (s *Store) At(base string) *View {
	return &View{store: s, base: base}
}

// Root returns the raw backing structure. Intended for persistence;
// mutating it directly bypasses change detection.
func (s *Store) Root() any {
	return s.root.data
}

// Runtime returns the runtime this store notifies through.
func (s *Store) Runtime() *Runtime {
	return s.rt
}

// child returns the cached view for a composite property, creating it on
// first access and replacing it when the property's identity changed.
// Returns nil for primitives and for paths marked raw.
func (n *node) child(seg string, v any) *node {
	if !isComposite(v) {
		return nil
	}
	p := Child(n.path, seg)
	if _, raw := n.store.rawPaths[p]; raw {
		return nil
	}

	if n.children == nil {
		n.children = make(map[string]*node)
		n.childData = make(map[string]any)
	}
	if c, ok := n.children[seg]; ok && sameIdentity(n.childData[seg], v) {
		return c
	}
	c := &node{store: n.store, path: p, data: v}
	n.children[seg] = c
	n.childData[seg] = v
	return c
}

// evict drops the cached child view for a property that was overwritten.
func (n *node) evict(seg string) {
	if n.children != nil {
		delete(n.children, seg)
		delete(n.childData, seg)
	}
}

// View is a store accessor scoped to a base path.
type View struct {
	store *Store
	base  string
}

// Path returns the base path this view is scoped to.
func (v *View) Path() string { return v.base }

func (v *View) Get(path string) any      { return v.store.Get(Join(v.base, path)) }
func (v *View) Set(path string, val any) { v.store.Set(Join(v.base, path), val) }
func (v *View) Delete(path string)       { v.store.Delete(Join(v.base, path)) }

// isComposite reports whether v is a wrappable container.
func isComposite(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

// identityOf returns a stable identity for a composite value, used by
// cycle detection and child-cache eviction.
func identityOf(v any) (uintptr, bool) {
	switch v.(type) {
	case map[string]any, []any:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice && rv.Len() == 0 {
			return 0, false
		}
		return rv.Pointer(), true
	}
	return 0, false
}

func sameIdentity(a, b any) bool {
	ia, oka := identityOf(a)
	ib, okb := identityOf(b)
	return oka && okb && ia == ib
}

func lookupProp(data any, seg string) (any, bool) {
	switch d := data.(type) {
	case map[string]any:
		v, ok := d[seg]
		return v, ok
	case []any:
		if i, err := strconv.Atoi(seg); err == nil && i >= 0 && i < len(d) {
			return d[i], true
		}
	}
	return nil, false
}

func applyProp(data any, seg string, value any) bool {
	switch d := data.(type) {
	case map[string]any:
		d[seg] = value
		return true
	case []any:
		if i, err := strconv.Atoi(seg); err == nil && i >= 0 && i < len(d) {
			d[i] = value
			return true
		}
	}
	return false
}

func deleteProp(data any, seg string) {
	switch d := data.(type) {
	case map[string]any:
		delete(d, seg)
	case []any:
		if i, err := strconv.Atoi(seg); err == nil && i >= 0 && i < len(d) {
			d[i] = nil
		}
	}
}

// rawLookup descends plainly through unwrapped data.
func rawLookup(v any, segs []string) any {
	for _, seg := range segs {
		next, ok := lookupProp(v, seg)
		if !ok {
			return nil
		}
		v = next
	}
	return v
}

// valuesEqual decides whether a write is a change. Fast paths for the
// common scalar types, reflect.DeepEqual for the rest.
func valuesEqual(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case int:
		bv, ok := b.(int)
		return ok && av == bv
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	default:
		return reflect.DeepEqual(a, b)
	}
}

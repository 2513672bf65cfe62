package reactive

import (
	"errors"
	"strings"
)

// ErrNotComposite is returned by Wrap when the root value is not a map or
// slice and therefore has no properties to observe.
var ErrNotComposite = errors.New("attune: wrapped root must be a map or slice")

// CircularDependencyError reports a cycle between computed values,
// detected when a computed's evaluation re-enters itself. The triggering
// call fails; the records involved stay usable for later, non-cyclic
// calls.
type CircularDependencyError struct {
	// Chain lists the computed labels on the evaluation stack at the
	// point of re-entry, ending with the record that was re-entered.
	Chain []string
}

func (e *CircularDependencyError) Error() string {
	return "attune: circular dependency: " + strings.Join(e.Chain, " -> ")
}

// IsCircular reports whether err is (or wraps) a CircularDependencyError.
func IsCircular(err error) bool {
	var ce *CircularDependencyError
	return errors.As(err, &ce)
}

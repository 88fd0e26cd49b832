package engine

import (
	"fmt"
	"sort"
	"strings"
)

// CyclicDependencyError reports a reference cycle in the resource graph.
// Cycle holds the addresses along one cycle, first node repeated at the end.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// UnresolvedReferenceError reports a reference to a resource that is not
// registered. Reference holds the raw ref:// value when the edge came from an
// attribute; it is empty for explicit dependsOn entries.
type UnresolvedReferenceError struct {
	Source    string
	Target    string
	Reference string
}

func (e *UnresolvedReferenceError) Error() string {
	switch {
	case e.Target == "":
		return fmt.Sprintf("resource %s has malformed reference %q, want ref://type/name/attribute", e.Source, e.Reference)
	case e.Reference != "":
		return fmt.Sprintf("resource %s references unknown resource %s (%s)", e.Source, e.Target, e.Reference)
	default:
		return fmt.Sprintf("resource %s depends on unknown resource %s", e.Source, e.Target)
	}
}

// ValidationError reports a resource whose desired attributes were rejected
// by its provider before planning.
type ValidationError struct {
	Address string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %v", e.Address, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// PartialApplyError reports a run that changed some resources but not all.
// Applied lists resources that succeeded before or alongside the failures;
// Failed maps each failed address to its error; Blocked lists resources
// never attempted because something upstream failed.
type PartialApplyError struct {
	Applied []string
	Failed  map[string]error
	Blocked []string
}

func (e *PartialApplyError) Error() string {
	failed := make([]string, 0, len(e.Failed))
	for addr := range e.Failed {
		failed = append(failed, addr)
	}
	sort.Strings(failed)

	var b strings.Builder
	fmt.Fprintf(&b, "apply incomplete: %d applied, %d failed, %d blocked", len(e.Applied), len(e.Failed), len(e.Blocked))
	for _, addr := range failed {
		fmt.Fprintf(&b, "\n  %s: %v", addr, e.Failed[addr])
	}
	return b.String()
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *PartialApplyError) Unwrap() []error {
	failed := make([]string, 0, len(e.Failed))
	for addr := range e.Failed {
		failed = append(failed, addr)
	}
	sort.Strings(failed)

	errs := make([]error, 0, len(failed))
	for _, addr := range failed {
		errs = append(errs, e.Failed[addr])
	}
	return errs
}

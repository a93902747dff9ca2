package harness

import (
	"fmt"

	"github.com/roach88/catom/internal/canon"
	"github.com/roach88/catom/internal/change"
	"github.com/roach88/catom/internal/containers"
)

// TraceObserver is the observer name of the harness's own recorder.
const TraceObserver = "trace"

// TraceEvent is one change notification seen during a run. Values are
// captured when the notification is delivered, so later in-place mutations
// of a container do not rewrite earlier events.
type TraceEvent struct {
	// Seq is the delivery order, starting at 1.
	Seq int64

	// Observer is TraceObserver or the name of the watcher that received it.
	Observer string

	// Member is the attribute that changed.
	Member string

	// Kind is the change kind name.
	Kind string

	// Op is the container operation, for container events.
	Op string

	// Index is the affected position for sequence operations, or -1.
	Index int

	// Key is the affected mapping key.
	Key any

	// Old and New are snapshots of the record values.
	Old any
	New any

	// Added and Removed are the container diff.
	Added   []any
	Removed []any
}

// MarshalJSON encodes the event as canonical JSON with snake_case keys.
// Container fields appear only on container events.
func (e TraceEvent) MarshalJSON() ([]byte, error) {
	return canon.Marshal(e.canonicalMap())
}

func (e TraceEvent) canonicalMap() map[string]any {
	m := map[string]any{
		"seq":      e.Seq,
		"observer": e.Observer,
		"member":   e.Member,
		"kind":     e.Kind,
		"old":      e.Old,
		"new":      e.New,
	}
	if e.Op != "" {
		m["op"] = e.Op
		m["index"] = e.Index
		if e.Key != nil {
			m["key"] = e.Key
		}
		if e.Added != nil {
			m["added"] = e.Added
		}
		if e.Removed != nil {
			m["removed"] = e.Removed
		}
	}
	return m
}

// String renders the event on one line using canonical JSON values.
func (e TraceEvent) String() string {
	if e.Op != "" {
		return fmt.Sprintf("#%d %s %s %s %s old=%s new=%s", e.Seq, e.Observer, e.Member, e.Kind, e.Op, canon.String(e.Old), canon.String(e.New))
	}
	return fmt.Sprintf("#%d %s %s %s old=%s new=%s", e.Seq, e.Observer, e.Member, e.Kind, canon.String(e.Old), canon.String(e.New))
}

func newTraceEvent(seq int64, observer string, rec change.Record) TraceEvent {
	e := TraceEvent{
		Seq:      seq,
		Observer: observer,
		Member:   rec.Name,
		Kind:     rec.Kind.String(),
		Index:    -1,
		Old:      snapshot(rec.OldValue),
		New:      snapshot(rec.NewValue),
	}
	if op := rec.Container; op != nil {
		e.Op = string(op.Op)
		e.Index = op.Index
		e.Key = snapshot(op.Key)
		e.Added = snapshotAll(op.Added)
		e.Removed = snapshotAll(op.Removed)
	}
	return e
}

// snapshot copies container values out so the trace holds plain data.
// Sets become their items in insertion order.
func snapshot(v any) any {
	switch c := v.(type) {
	case *containers.Set:
		return copyItems(c.Items())
	case *containers.List:
		return copyItems(c.Items())
	case containers.Snapshotter:
		return c.Snapshot()
	}
	return v
}

func snapshotAll(vs []any) []any {
	if vs == nil {
		return nil
	}
	return copyItems(vs)
}

func copyItems(vs []any) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = snapshot(v)
	}
	return out
}

// Result contains the outcome of a scenario run.
type Result struct {
	// Pass is true if every step and assertion succeeded.
	Pass bool

	// Trace holds the change events in delivery order.
	Trace []TraceEvent

	// Errors lists step and assertion failures.
	Errors []string

	// Final maps every member to its value after the last step.
	// Members that cannot be read are absent.
	Final map[string]any

	// InstanceID is the identity of the scenario's instance.
	InstanceID string
}

// NewResult returns a passing result with empty collections.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Final:  map[string]any{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(format string, args ...any) {
	r.Pass = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

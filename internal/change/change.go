// Package change defines the immutable change record delivered to observers
// and the single observer capability the engine dispatches to.
//
// A Record is built fresh for every mutation, delivered synchronously, and
// never modified afterwards. Observers must treat the slices inside a
// ContainerOp as read-only.
package change

import (
	"fmt"
	"strings"
)

// Kind classifies a change. Kinds are bit flags so observers can subscribe
// to a subset with a mask.
type Kind uint8

const (
	// Create is emitted when a previously unset slot receives a value.
	Create Kind = 1 << iota
	// Update is emitted when a set slot receives a different value.
	Update
	// Delete is emitted when a slot is reset to unset.
	Delete
	// Container is emitted when a tracked list, dict or set is mutated in place.
	Container

	// All matches every kind.
	All = Create | Update | Delete | Container
)

var kindNames = []struct {
	kind Kind
	name string
}{
	{Create, "create"},
	{Update, "update"},
	{Delete, "delete"},
	{Container, "container"},
}

// String returns the lowercase name, or a "|" joined list for masks.
func (k Kind) String() string {
	if k == All {
		return "all"
	}
	var parts []string
	for _, kn := range kindNames {
		if k&kn.kind != 0 {
			parts = append(parts, kn.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Has reports whether every flag in other is set in k.
func (k Kind) Has(other Kind) bool {
	return k&other == other
}

// ParseKind parses a single name or a "|" separated mask.
func ParseKind(s string) (Kind, error) {
	if s == "all" {
		return All, nil
	}
	var k Kind
	for _, part := range strings.Split(s, "|") {
		part = strings.TrimSpace(part)
		found := false
		for _, kn := range kindNames {
			if kn.name == part {
				k |= kn.kind
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown change kind %q", part)
		}
	}
	return k, nil
}

// Op names an in-place container operation.
type Op string

// Sequence, mapping and set operations.
const (
	OpAppend     Op = "append"
	OpInsert     Op = "insert"
	OpExtend     Op = "extend"
	OpSetItem    Op = "setitem"
	OpDelItem    Op = "delitem"
	OpPop        Op = "pop"
	OpRemove     Op = "remove"
	OpClear      Op = "clear"
	OpSort       Op = "sort"
	OpReverse    Op = "reverse"
	OpUpdate     Op = "update"
	OpSetDefault Op = "setdefault"
	OpPopItem    Op = "popitem"
	OpAdd        Op = "add"
	OpDiscard    Op = "discard"
)

// ContainerOp describes one in-place container mutation as a diff.
type ContainerOp struct {
	// Op is the operation performed.
	Op Op

	// Index is the affected sequence position, or -1 when not applicable.
	Index int

	// Key is the affected mapping key, or nil.
	Key any

	// Added holds the items (or mapping values) inserted by the operation.
	Added []any

	// Removed holds the items (or mapping values) removed or replaced.
	Removed []any
}

// Record is an immutable description of one change.
type Record struct {
	// Object is the instance whose attribute changed.
	Object any

	// Type is the entity type name of Object.
	Type string

	// Name is the attribute name.
	Name string

	// Kind classifies the change.
	Kind Kind

	// OldValue is the previous value (nil for Create).
	// For Container records it is the replaced item(s), if any.
	OldValue any

	// NewValue is the new value (nil for Delete).
	// For Container records it is the added item(s), if any.
	NewValue any

	// Container is set only for Container records.
	Container *ContainerOp
}

// String renders a compact, log-friendly form.
func (r Record) String() string {
	if r.Container != nil {
		return fmt.Sprintf("%s.%s %s %s old=%v new=%v", r.Type, r.Name, r.Kind, r.Container.Op, r.OldValue, r.NewValue)
	}
	return fmt.Sprintf("%s.%s %s old=%v new=%v", r.Type, r.Name, r.Kind, r.OldValue, r.NewValue)
}

// Observer receives change records. Returning an error aborts delivery to
// any later observers and propagates to the code that made the change.
type Observer interface {
	Observe(rec Record) error
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(rec Record) error

// Observe calls f(rec).
func (f ObserverFunc) Observe(rec Record) error {
	return f(rec)
}

// Buffer is an Observer that appends every record it receives.
type Buffer struct {
	records []Record
}

// Observe appends rec.
func (b *Buffer) Observe(rec Record) error {
	b.records = append(b.records, rec)
	return nil
}

// Records returns the collected records in delivery order.
func (b *Buffer) Records() []Record {
	out := make([]Record, len(b.records))
	copy(out, b.records)
	return out
}

// Len returns the number of collected records.
func (b *Buffer) Len() int {
	return len(b.records)
}

// Reset discards collected records.
func (b *Buffer) Reset() {
	b.records = b.records[:0]
}

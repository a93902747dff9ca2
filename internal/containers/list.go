package containers

import (
	"iter"
	"reflect"
	"slices"

	"github.com/roach88/catom/internal/atomerr"
	"github.com/roach88/catom/internal/change"
)

// List is a change-tracked sequence.
type List struct {
	config
	items []any
}

// NewList creates a List holding items. Items are checked with the item
// check before the list is created; no record is emitted for them.
func NewList(items []any, opts ...Option) (*List, error) {
	l := &List{config: newConfig(opts)}
	checked, err := l.checkAll(l.item, items)
	if err != nil {
		return nil, err
	}
	l.items = checked
	return l, nil
}

// Len returns the number of items.
func (l *List) Len() int {
	return len(l.items)
}

// At returns the item at index i. Negative indexes count from the end.
func (l *List) At(i int) (any, error) {
	idx, err := l.index(i)
	if err != nil {
		return nil, err
	}
	return l.items[idx], nil
}

// Items returns a copy of the items.
func (l *List) Items() []any {
	return slices.Clone(l.items)
}

// Snapshot returns a copy of the items as []any.
func (l *List) Snapshot() any {
	return l.Items()
}

// All iterates index/item pairs.
func (l *List) All() iter.Seq2[int, any] {
	return func(yield func(int, any) bool) {
		for i, v := range l.items {
			if !yield(i, v) {
				return
			}
		}
	}
}

// Index returns the position of the first item deeply equal to v, or -1.
func (l *List) Index(v any) int {
	for i, item := range l.items {
		if reflect.DeepEqual(item, v) {
			return i
		}
	}
	return -1
}

// Contains reports whether an item deeply equal to v is present.
func (l *List) Contains(v any) bool {
	return l.Index(v) >= 0
}

// Append adds v at the end.
func (l *List) Append(v any) error {
	if err := l.writable(); err != nil {
		return err
	}
	item, err := l.checkOne(l.item, v)
	if err != nil {
		return err
	}
	l.items = append(l.items, item)
	return l.emit(change.ContainerOp{Op: change.OpAppend, Index: len(l.items) - 1, Added: []any{item}}, nil, item)
}

// Insert places v before index i. Out-of-range indexes are clamped, so
// Insert never fails on position.
func (l *List) Insert(i int, v any) error {
	if err := l.writable(); err != nil {
		return err
	}
	item, err := l.checkOne(l.item, v)
	if err != nil {
		return err
	}
	if i < 0 {
		i += len(l.items)
	}
	i = max(0, min(i, len(l.items)))
	l.items = slices.Insert(l.items, i, item)
	return l.emit(change.ContainerOp{Op: change.OpInsert, Index: i, Added: []any{item}}, nil, item)
}

// Extend appends every item in vs. Either all items are accepted or none.
func (l *List) Extend(vs ...any) error {
	if err := l.writable(); err != nil {
		return err
	}
	items, err := l.checkAll(l.item, vs)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	start := len(l.items)
	l.items = append(l.items, items...)
	return l.emit(change.ContainerOp{Op: change.OpExtend, Index: start, Added: items}, nil, slices.Clone(items))
}

// Set replaces the item at index i.
func (l *List) Set(i int, v any) error {
	if err := l.writable(); err != nil {
		return err
	}
	idx, err := l.index(i)
	if err != nil {
		return err
	}
	item, err := l.checkOne(l.item, v)
	if err != nil {
		return err
	}
	old := l.items[idx]
	l.items[idx] = item
	return l.emit(change.ContainerOp{Op: change.OpSetItem, Index: idx, Added: []any{item}, Removed: []any{old}}, old, item)
}

// Delete removes the item at index i.
func (l *List) Delete(i int) error {
	if err := l.writable(); err != nil {
		return err
	}
	idx, err := l.index(i)
	if err != nil {
		return err
	}
	old := l.items[idx]
	l.items = slices.Delete(l.items, idx, idx+1)
	return l.emit(change.ContainerOp{Op: change.OpDelItem, Index: idx, Removed: []any{old}}, old, nil)
}

// Pop removes and returns the item at index i (-1 for the last item).
func (l *List) Pop(i int) (any, error) {
	if err := l.writable(); err != nil {
		return nil, err
	}
	idx, err := l.index(i)
	if err != nil {
		return nil, err
	}
	old := l.items[idx]
	l.items = slices.Delete(l.items, idx, idx+1)
	return old, l.emit(change.ContainerOp{Op: change.OpPop, Index: idx, Removed: []any{old}}, old, nil)
}

// Remove deletes the first item deeply equal to v.
func (l *List) Remove(v any) error {
	if err := l.writable(); err != nil {
		return err
	}
	idx := l.Index(v)
	if idx < 0 {
		return atomerr.Lookup("", l.name, "value not in list")
	}
	old := l.items[idx]
	l.items = slices.Delete(l.items, idx, idx+1)
	return l.emit(change.ContainerOp{Op: change.OpRemove, Index: idx, Removed: []any{old}}, old, nil)
}

// Clear removes every item.
func (l *List) Clear() error {
	if err := l.writable(); err != nil {
		return err
	}
	if len(l.items) == 0 {
		return nil
	}
	old := l.items
	l.items = nil
	return l.emit(change.ContainerOp{Op: change.OpClear, Index: -1, Removed: old}, slices.Clone(old), nil)
}

// Sort orders the items with compare, or with the natural ordering from
// Compare when compare is nil. With a nil compare, an item that cannot be
// ordered against the others fails the call before anything moves.
func (l *List) Sort(compare func(a, b any) int) error {
	if err := l.writable(); err != nil {
		return err
	}
	if compare == nil {
		for i := 1; i < len(l.items); i++ {
			if _, ok := Compare(l.items[0], l.items[i]); !ok {
				return atomerr.Validation("", l.name, "items are not naturally ordered")
			}
		}
		compare = func(a, b any) int {
			c, _ := Compare(a, b)
			return c
		}
	}
	before := slices.Clone(l.items)
	slices.SortStableFunc(l.items, compare)
	if l.unmoved(before) {
		return nil
	}
	return l.emit(change.ContainerOp{Op: change.OpSort, Index: -1}, before, slices.Clone(l.items))
}

// Reverse reverses the items in place.
func (l *List) Reverse() error {
	if err := l.writable(); err != nil {
		return err
	}
	before := slices.Clone(l.items)
	slices.Reverse(l.items)
	if l.unmoved(before) {
		return nil
	}
	return l.emit(change.ContainerOp{Op: change.OpReverse, Index: -1}, before, slices.Clone(l.items))
}

func (l *List) unmoved(before []any) bool {
	return slices.EqualFunc(before, l.items, func(a, b any) bool { return reflect.DeepEqual(a, b) })
}

func (l *List) index(i int) (int, error) {
	idx := i
	if idx < 0 {
		idx += len(l.items)
	}
	if idx < 0 || idx >= len(l.items) {
		return 0, atomerr.Lookup("", l.name, "index %d out of range [0, %d)", i, len(l.items))
	}
	return idx, nil
}

package containers

import (
	"iter"

	"github.com/roach88/catom/internal/atomerr"
	"github.com/roach88/catom/internal/change"
)

// Set is a change-tracked, insertion-ordered set of comparable items.
type Set struct {
	config
	members ordered
}

// NewSet creates a Set from items. Duplicates collapse silently.
func NewSet(items []any, opts ...Option) (*Set, error) {
	s := &Set{config: newConfig(opts), members: newOrdered()}
	checked, err := s.checkItems(items)
	if err != nil {
		return nil, err
	}
	for _, item := range checked {
		s.members.put(item, true)
	}
	return s, nil
}

// Len returns the number of items.
func (s *Set) Len() int {
	return s.members.len()
}

// Contains reports whether item is present.
func (s *Set) Contains(item any) bool {
	if s.hashable(item) != nil {
		return false
	}
	_, ok := s.members.get(item)
	return ok
}

// Items returns the items in insertion order.
func (s *Set) Items() []any {
	out := make([]any, 0, s.Len())
	for k := range s.members.all() {
		out = append(out, k)
	}
	return out
}

// All iterates the items in insertion order.
func (s *Set) All() iter.Seq[any] {
	return func(yield func(any) bool) {
		for k := range s.members.all() {
			if !yield(k) {
				return
			}
		}
	}
}

// Snapshot returns a copy of the contents as map[any]bool.
func (s *Set) Snapshot() any {
	out := make(map[any]bool, s.Len())
	for k := range s.members.all() {
		out[k] = true
	}
	return out
}

// Add inserts item. Adding an item already present emits nothing.
func (s *Set) Add(item any) error {
	if err := s.writable(); err != nil {
		return err
	}
	v, err := s.checkItem(item)
	if err != nil {
		return err
	}
	if _, ok := s.members.get(v); ok {
		return nil
	}
	s.members.put(v, true)
	return s.emit(change.ContainerOp{Op: change.OpAdd, Index: -1, Added: []any{v}}, nil, v)
}

// Discard removes item if present.
func (s *Set) Discard(item any) error {
	if err := s.writable(); err != nil {
		return err
	}
	if s.hashable(item) != nil {
		return nil
	}
	if _, ok := s.members.del(item); !ok {
		return nil
	}
	return s.emit(change.ContainerOp{Op: change.OpDiscard, Index: -1, Removed: []any{item}}, item, nil)
}

// Remove removes item and fails with a LOOKUP error when it is missing.
func (s *Set) Remove(item any) error {
	if err := s.writable(); err != nil {
		return err
	}
	if err := s.hashable(item); err != nil {
		return err
	}
	if _, ok := s.members.del(item); !ok {
		return atomerr.Lookup("", s.name, "item %v not in set", item)
	}
	return s.emit(change.ContainerOp{Op: change.OpRemove, Index: -1, Removed: []any{item}}, item, nil)
}

// Pop removes and returns the most recently added item.
func (s *Set) Pop() (any, error) {
	if err := s.writable(); err != nil {
		return nil, err
	}
	last, ok := s.members.last()
	if !ok {
		return nil, atomerr.Lookup("", s.name, "pop from empty set")
	}
	s.members.del(last.key)
	return last.key, s.emit(change.ContainerOp{Op: change.OpPop, Index: -1, Removed: []any{last.key}}, last.key, nil)
}

// Update adds every item. Either all items are accepted or none. The record
// lists only the items that were not already present, and nothing is emitted
// when there are none.
func (s *Set) Update(items ...any) error {
	if err := s.writable(); err != nil {
		return err
	}
	checked, err := s.checkItems(items)
	if err != nil {
		return err
	}
	var added []any
	for _, item := range checked {
		if _, existed := s.members.put(item, true); !existed {
			added = append(added, item)
		}
	}
	if len(added) == 0 {
		return nil
	}
	return s.emit(change.ContainerOp{Op: change.OpUpdate, Index: -1, Added: added}, nil, append([]any(nil), added...))
}

// Clear removes every item.
func (s *Set) Clear() error {
	if err := s.writable(); err != nil {
		return err
	}
	if s.members.len() == 0 {
		return nil
	}
	removed := s.Items()
	s.members.clear()
	return s.emit(change.ContainerOp{Op: change.OpClear, Index: -1, Removed: removed}, append([]any(nil), removed...), nil)
}

func (s *Set) checkItem(item any) (any, error) {
	v, err := s.checkOne(s.item, item)
	if err != nil {
		return nil, err
	}
	if err := s.hashable(v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Set) checkItems(items []any) ([]any, error) {
	out := make([]any, len(items))
	for i, item := range items {
		v, err := s.checkItem(item)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

package containers

import (
	"iter"

	"github.com/roach88/catom/internal/atomerr"
	"github.com/roach88/catom/internal/change"
)

// Dict is a change-tracked, insertion-ordered mapping.
type Dict struct {
	config
	entries ordered
}

// NewDict creates a Dict from entries, checking every key and value first.
func NewDict(entries []Entry, opts ...Option) (*Dict, error) {
	d := &Dict{config: newConfig(opts), entries: newOrdered()}
	checked, err := d.checkEntries(entries)
	if err != nil {
		return nil, err
	}
	for _, e := range checked {
		d.entries.put(e.Key, e.Value)
	}
	return d, nil
}

// Len returns the number of entries.
func (d *Dict) Len() int {
	return d.entries.len()
}

// Get returns the value stored under key.
func (d *Dict) Get(key any) (any, bool) {
	if d.hashable(key) != nil {
		return nil, false
	}
	return d.entries.get(key)
}

// Contains reports whether key is present.
func (d *Dict) Contains(key any) bool {
	_, ok := d.Get(key)
	return ok
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []any {
	out := make([]any, 0, d.Len())
	for k := range d.entries.all() {
		out = append(out, k)
	}
	return out
}

// Values returns the values in insertion order.
func (d *Dict) Values() []any {
	out := make([]any, 0, d.Len())
	for _, v := range d.entries.all() {
		out = append(out, v)
	}
	return out
}

// Entries returns the entries in insertion order.
func (d *Dict) Entries() []Entry {
	out := make([]Entry, 0, d.Len())
	for k, v := range d.entries.all() {
		out = append(out, Entry{Key: k, Value: v})
	}
	return out
}

// All iterates key/value pairs in insertion order.
func (d *Dict) All() iter.Seq2[any, any] {
	return d.entries.all()
}

// Snapshot returns a copy of the contents as map[any]any.
func (d *Dict) Snapshot() any {
	out := make(map[any]any, d.Len())
	for k, v := range d.entries.all() {
		out[k] = v
	}
	return out
}

// Set stores value under key.
func (d *Dict) Set(key, value any) error {
	if err := d.writable(); err != nil {
		return err
	}
	k, v, err := d.checkEntry(key, value)
	if err != nil {
		return err
	}
	old, existed := d.entries.put(k, v)
	op := change.ContainerOp{Op: change.OpSetItem, Index: -1, Key: k, Added: []any{v}}
	if existed {
		op.Removed = []any{old}
	}
	return d.emit(op, old, v)
}

// Delete removes key.
func (d *Dict) Delete(key any) error {
	old, err := d.take(key)
	if err != nil {
		return err
	}
	return d.emit(change.ContainerOp{Op: change.OpDelItem, Index: -1, Key: key, Removed: []any{old}}, old, nil)
}

// Pop removes key and returns its value.
func (d *Dict) Pop(key any) (any, error) {
	old, err := d.take(key)
	if err != nil {
		return nil, err
	}
	return old, d.emit(change.ContainerOp{Op: change.OpPop, Index: -1, Key: key, Removed: []any{old}}, old, nil)
}

// PopItem removes and returns the most recently inserted entry.
func (d *Dict) PopItem() (any, any, error) {
	if err := d.writable(); err != nil {
		return nil, nil, err
	}
	last, ok := d.entries.last()
	if !ok {
		return nil, nil, atomerr.Lookup("", d.name, "popitem from empty dict")
	}
	d.entries.del(last.key)
	err := d.emit(change.ContainerOp{Op: change.OpPopItem, Index: -1, Key: last.key, Removed: []any{last.value}}, last.value, nil)
	return last.key, last.value, err
}

// SetDefault returns the value under key, inserting value first when key is
// absent. A record is emitted only when an insertion happens.
func (d *Dict) SetDefault(key, value any) (any, error) {
	if err := d.writable(); err != nil {
		return nil, err
	}
	if err := d.hashable(key); err != nil {
		return nil, err
	}
	if v, ok := d.entries.get(key); ok {
		return v, nil
	}
	k, v, err := d.checkEntry(key, value)
	if err != nil {
		return nil, err
	}
	d.entries.put(k, v)
	return v, d.emit(change.ContainerOp{Op: change.OpSetDefault, Index: -1, Key: k, Added: []any{v}}, nil, v)
}

// Update stores every entry. Either all entries are accepted or none, and a
// single record describes the whole update.
func (d *Dict) Update(entries ...Entry) error {
	if err := d.writable(); err != nil {
		return err
	}
	checked, err := d.checkEntries(entries)
	if err != nil {
		return err
	}
	if len(checked) == 0 {
		return nil
	}
	added := make([]any, 0, len(checked))
	removed := make([]any, 0)
	for _, e := range checked {
		old, existed := d.entries.put(e.Key, e.Value)
		if existed {
			removed = append(removed, old)
		}
		added = append(added, e.Value)
	}
	keys := make([]any, len(checked))
	for i, e := range checked {
		keys[i] = e.Key
	}
	return d.emit(change.ContainerOp{Op: change.OpUpdate, Index: -1, Key: keys, Added: added, Removed: removed}, nil, keys)
}

// Clear removes every entry.
func (d *Dict) Clear() error {
	if err := d.writable(); err != nil {
		return err
	}
	if d.entries.len() == 0 {
		return nil
	}
	pairs := d.entries.pairs()
	d.entries.clear()
	removed := make([]any, len(pairs))
	for i, p := range pairs {
		removed[i] = p.value
	}
	return d.emit(change.ContainerOp{Op: change.OpClear, Index: -1, Removed: removed}, nil, nil)
}

func (d *Dict) take(key any) (any, error) {
	if err := d.writable(); err != nil {
		return nil, err
	}
	if err := d.hashable(key); err != nil {
		return nil, err
	}
	old, ok := d.entries.del(key)
	if !ok {
		return nil, atomerr.Lookup("", d.name, "key %v not found", key)
	}
	return old, nil
}

func (d *Dict) checkEntry(key, value any) (any, any, error) {
	k, err := d.checkOne(d.key, key)
	if err != nil {
		return nil, nil, err
	}
	if err := d.hashable(k); err != nil {
		return nil, nil, err
	}
	v, err := d.checkOne(d.value, value)
	if err != nil {
		return nil, nil, err
	}
	return k, v, nil
}

func (d *Dict) checkEntries(entries []Entry) ([]Entry, error) {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		k, v, err := d.checkEntry(e.Key, e.Value)
		if err != nil {
			return nil, err
		}
		out[i] = Entry{Key: k, Value: v}
	}
	return out, nil
}

package containers

import (
	"cmp"
	"iter"
	"reflect"
	"slices"

	"github.com/roach88/catom/internal/atomerr"
	"github.com/roach88/catom/internal/change"
	"github.com/roach88/catom/internal/ordmap"
	"github.com/roach88/catom/internal/typeset"
)

// Owner receives the change records produced by container mutations.
// Object and Type on the record are left for the owner to fill in.
type Owner interface {
	Notify(rec change.Record) error
}

// WriteGuard is implemented by owners that can refuse mutations, such as a
// frozen or destroyed instance. Containers consult it before validating
// anything, so a refused call leaves the contents unchanged.
type WriteGuard interface {
	CheckWrite(name string) error
}

// Check validates an incoming item and returns the value to store.
type Check func(item any) (any, error)

// Snapshotter is implemented by every tracked container. Snapshot returns an
// independent plain-Go copy of the contents: []any for List, map[any]any for
// Dict and map[any]bool for Set.
type Snapshotter interface {
	Snapshot() any
}

// Option configures a tracked container.
type Option func(*config)

// WithOwner binds the container to owner under the attribute name.
func WithOwner(owner Owner, name string) Option {
	return func(c *config) {
		c.owner = owner
		c.name = name
	}
}

// WithItemCheck sets the item check for List and Set.
func WithItemCheck(check Check) Option {
	return func(c *config) { c.item = check }
}

// WithKeyCheck sets the key check for Dict.
func WithKeyCheck(check Check) Option {
	return func(c *config) { c.key = check }
}

// WithValueCheck sets the value check for Dict.
func WithValueCheck(check Check) Option {
	return func(c *config) { c.value = check }
}

type config struct {
	owner Owner
	name  string
	item  Check
	key   Check
	value Check
}

func newConfig(opts []Option) config {
	var c config
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Name returns the attribute name the container is bound to.
func (c *config) Name() string {
	return c.name
}

// Owner returns the bound owner, or nil.
func (c *config) Owner() Owner {
	return c.owner
}

func (c *config) emit(op change.ContainerOp, oldValue, newValue any) error {
	if c.owner == nil {
		return nil
	}
	return c.owner.Notify(change.Record{
		Name:      c.name,
		Kind:      change.Container,
		OldValue:  oldValue,
		NewValue:  newValue,
		Container: &op,
	})
}

// writable returns the owner's refusal, if any.
func (c *config) writable() error {
	if g, ok := c.owner.(WriteGuard); ok {
		return g.CheckWrite(c.name)
	}
	return nil
}

func (c *config) checkAll(check Check, items []any) ([]any, error) {
	out := make([]any, len(items))
	for i, item := range items {
		v, err := c.checkOne(check, item)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *config) checkOne(check Check, item any) (any, error) {
	if check == nil {
		return item, nil
	}
	v, err := check(item)
	if err != nil {
		return nil, c.invalid(err)
	}
	return v, nil
}

func (c *config) invalid(err error) error {
	if _, ok := atomerr.CodeOf(err); ok {
		return atomerr.WithContext(err, "", c.name)
	}
	return atomerr.Wrap(atomerr.CodeValidation, "", c.name, "invalid item", err)
}

func (c *config) hashable(v any) error {
	if v == nil || reflect.ValueOf(v).Comparable() {
		return nil
	}
	return atomerr.Validation("", c.name, "unhashable key of type %s", typeset.Describe(v))
}

// pair is one entry of an insertion-ordered index.
type pair struct {
	key   any
	value any
}

// ordered is an insertion-ordered hash index shared by Dict and Set. The
// hash map gives O(1) membership; the sequence tree keeps insertion order
// with O(log n) deletion.
type ordered struct {
	index map[any]uint64
	seq   *ordmap.Map[uint64, pair]
	next  uint64
}

func newOrdered() ordered {
	return ordered{
		index: make(map[any]uint64),
		seq:   ordmap.NewOrdered[uint64, pair](),
	}
}

func (o *ordered) len() int {
	return len(o.index)
}

func (o *ordered) get(key any) (any, bool) {
	s, ok := o.index[key]
	if !ok {
		return nil, false
	}
	p, _ := o.seq.Find(s)
	return p.value, true
}

// put inserts or overwrites key; an overwrite keeps the original position.
func (o *ordered) put(key, value any) (old any, existed bool) {
	if s, ok := o.index[key]; ok {
		prev, _ := o.seq.Insert(s, pair{key: key, value: value})
		return prev.value, true
	}
	o.next++
	o.index[key] = o.next
	o.seq.Insert(o.next, pair{key: key, value: value})
	return nil, false
}

func (o *ordered) del(key any) (any, bool) {
	s, ok := o.index[key]
	if !ok {
		return nil, false
	}
	delete(o.index, key)
	p, _ := o.seq.Remove(s)
	return p.value, true
}

func (o *ordered) last() (pair, bool) {
	_, p, ok := o.seq.Max()
	return p, ok
}

func (o *ordered) clear() {
	clear(o.index)
	o.seq.Clear()
}

func (o *ordered) all() iter.Seq2[any, any] {
	return func(yield func(any, any) bool) {
		for _, p := range o.seq.All() {
			if !yield(p.key, p.value) {
				return
			}
		}
	}
}

func (o *ordered) pairs() []pair {
	out := make([]pair, 0, o.len())
	for _, p := range o.seq.All() {
		out = append(out, p)
	}
	return out
}

// Items converts a sequence value into a slice of items. It accepts a *List,
// a *Set, []any, or any slice or array via reflection.
func Items(v any) ([]any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case *List:
		return val.Items(), true
	case *Set:
		return val.Items(), true
	case []any:
		return append([]any(nil), val...), true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// Entry is a key/value pair accepted by Dict.Update.
type Entry struct {
	Key   any
	Value any
}

// Entries converts a mapping value into entries. It accepts a *Dict or any
// Go map. Plain Go maps have no order, so their entries are sorted by key
// when the keys are naturally ordered.
func Entries(v any) ([]Entry, bool) {
	if v == nil {
		return nil, false
	}
	if d, ok := v.(*Dict); ok {
		return d.Entries(), true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return nil, false
	}
	out := make([]Entry, 0, rv.Len())
	it := rv.MapRange()
	for it.Next() {
		out = append(out, Entry{Key: it.Key().Interface(), Value: it.Value().Interface()})
	}
	sortEntries(out)
	return out, true
}

// SetItems converts a set-like value into items: a *Set, a map used as a set
// (keys are the items), or any sequence accepted by Items.
func SetItems(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map {
		out := make([]any, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			out = append(out, k.Interface())
		}
		sortItems(out)
		return out, true
	}
	return Items(v)
}

func sortEntries(entries []Entry) {
	keys := make([]any, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	if !allOrdered(keys) {
		return
	}
	slices.SortStableFunc(entries, func(a, b Entry) int {
		c, _ := Compare(a.Key, b.Key)
		return c
	})
}

func sortItems(items []any) {
	if !allOrdered(items) {
		return
	}
	slices.SortStableFunc(items, func(a, b any) int {
		c, _ := Compare(a, b)
		return c
	})
}

func allOrdered(items []any) bool {
	for i := 1; i < len(items); i++ {
		if _, ok := Compare(items[0], items[i]); !ok {
			return false
		}
	}
	if len(items) == 1 {
		_, ok := Compare(items[0], items[0])
		return ok
	}
	return true
}

// Compare is the natural ordering used by List.Sort when no comparator is
// given: same-kind integers, floats, strings and bools. ok is false when the
// two values are not naturally comparable.
func Compare(a, b any) (int, bool) {
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if !av.IsValid() || !bv.IsValid() {
		return 0, false
	}
	switch {
	case isInt(av) && isInt(bv):
		return cmp.Compare(av.Int(), bv.Int()), true
	case isUint(av) && isUint(bv):
		return cmp.Compare(av.Uint(), bv.Uint()), true
	case isFloat(av) && isFloat(bv):
		return cmp.Compare(av.Float(), bv.Float()), true
	case av.Kind() == reflect.String && bv.Kind() == reflect.String:
		return cmp.Compare(av.String(), bv.String()), true
	case av.Kind() == reflect.Bool && bv.Kind() == reflect.Bool:
		x, y := 0, 0
		if av.Bool() {
			x = 1
		}
		if bv.Bool() {
			y = 1
		}
		return cmp.Compare(x, y), true
	}
	return 0, false
}

func isInt(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUint(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func isFloat(v reflect.Value) bool {
	return v.Kind() == reflect.Float32 || v.Kind() == reflect.Float64
}

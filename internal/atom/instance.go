package atom

import (
	"github.com/roach88/catom/internal/atomerr"
	"github.com/roach88/catom/internal/change"
	"github.com/roach88/catom/internal/containers"
	"github.com/roach88/catom/internal/ordmap"
)

type slot struct {
	value any
	set   bool
}

// Instance is one entity: a fixed slot array sized by its Type plus an
// observer pool created on first use.
type Instance struct {
	typ     *Type
	id      string
	slots   []slot
	pool    *observerPool
	dynamic *ordmap.Map[string, any]

	constructing bool
	frozen       bool
	destroyed    bool
	notify       bool
}

// Type returns the instance's type.
func (i *Instance) Type() *Type { return i.typ }

// ID returns the identity assigned at construction.
func (i *Instance) ID() string { return i.id }

// Constructing reports whether Type.New is still applying assignments.
func (i *Instance) Constructing() bool { return i.constructing }

// Freeze makes every later write or delete fail with ATTRIBUTE_ACCESS.
// Unset slots can still be filled by their default on read.
func (i *Instance) Freeze() { i.frozen = true }

// Frozen reports whether Freeze has been called.
func (i *Instance) Frozen() bool { return i.frozen }

// Destroy releases the slot values and observers. Every later operation
// fails with ATTRIBUTE_ACCESS.
func (i *Instance) Destroy() {
	i.destroyed = true
	i.slots = nil
	i.pool = nil
	i.dynamic = nil
}

// Destroyed reports whether Destroy has been called.
func (i *Instance) Destroyed() bool { return i.destroyed }

// CheckWrite returns the ATTRIBUTE_ACCESS error a write to name would fail
// with on a frozen or destroyed instance. Tracked containers call it before
// every mutation.
func (i *Instance) CheckWrite(name string) error {
	if err := i.alive(); err != nil {
		return err
	}
	if i.frozen {
		return atomerr.Access(i.typ.name, name, "instance is frozen")
	}
	return nil
}

func (i *Instance) alive() error {
	if i.destroyed {
		return atomerr.Access(i.typ.name, "", "instance has been destroyed")
	}
	return nil
}

func (i *Instance) lookup(name string) (*Member, error) {
	if err := i.alive(); err != nil {
		return nil, err
	}
	m, ok := i.typ.byName.Find(name)
	if !ok {
		return nil, atomerr.Lookup(i.typ.name, name, "no such member")
	}
	return m, nil
}

// Get reads the attribute called name.
func (i *Instance) Get(name string) (any, error) {
	if err := i.alive(); err != nil {
		return nil, err
	}
	m, ok := i.typ.byName.Find(name)
	if !ok {
		if i.dynamic != nil {
			if v, ok := i.dynamic.Find(name); ok {
				return v, nil
			}
		}
		return nil, atomerr.Lookup(i.typ.name, name, "no such attribute")
	}
	v, err := i.getattr(m)
	if err != nil {
		return nil, atomerr.WithContext(err, i.typ.name, m.name)
	}
	v, err = i.postGetattr(m, v)
	if err != nil {
		return nil, atomerr.WithContext(err, i.typ.name, m.name)
	}
	return v, nil
}

// GetAs reads the attribute called name and asserts its type.
func GetAs[T any](i *Instance, name string) (T, error) {
	var zero T
	v, err := i.Get(name)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, atomerr.Validation(i.typ.name, name, "value of type %T is not %T", v, zero)
	}
	return t, nil
}

// List reads a List member.
func (i *Instance) List(name string) (*containers.List, error) {
	return GetAs[*containers.List](i, name)
}

// Dict reads a Dict member.
func (i *Instance) Dict(name string) (*containers.Dict, error) {
	return GetAs[*containers.Dict](i, name)
}

// SetOf reads a Set member.
func (i *Instance) SetOf(name string) (*containers.Set, error) {
	return GetAs[*containers.Set](i, name)
}

func (i *Instance) getattr(m *Member) (any, error) {
	switch m.getattr {
	case GetattrSlot:
		return i.loadSlot(m)
	case GetattrProperty:
		fn, _ := m.getFn.(func(*Instance) (any, error))
		if fn == nil {
			return nil, atomerr.Access(i.typ.name, m.name, "unreadable attribute")
		}
		return fn(i)
	case GetattrCachedProperty:
		if s := i.slots[m.index]; s.set {
			return s.value, nil
		}
		v, err := m.getFn.(func(*Instance) (any, error))(i)
		if err != nil {
			return nil, err
		}
		i.slots[m.index] = slot{value: v, set: true}
		return v, nil
	case GetattrCallObjectObject:
		return m.getFn.(func(*Instance) (any, error))(i)
	case GetattrObjectMethod:
		fn, err := method[func(*Instance) (any, error)](i.typ, m, m.getName)
		if err != nil {
			return nil, err
		}
		return fn(i)
	case GetattrCustom:
		return m.getFn.(GetattrHandler)(m, i)
	}
	return nil, atomerr.Access(i.typ.name, m.name, "unknown getattr mode %s", m.getattr)
}

// loadSlot returns the stored value, computing, validating and storing the
// default first when the slot is unset. Filling a slot from its default
// notifies nobody.
func (i *Instance) loadSlot(m *Member) (any, error) {
	if s := i.slots[m.index]; s.set {
		return s.value, nil
	}
	v, err := i.validDefault(m)
	if err != nil {
		return nil, err
	}
	i.slots[m.index] = slot{value: v, set: true}
	return v, nil
}

func (i *Instance) validDefault(m *Member) (any, error) {
	v, err := m.DefaultValue(i)
	if err != nil {
		return nil, err
	}
	return m.Validate(i, nil, v)
}

func (i *Instance) postGetattr(m *Member, v any) (any, error) {
	switch m.postGet {
	case PostCustom:
		return m.postGetFn(m, i, v)
	case PostObjectMethod:
		fn, err := method[func(*Instance, any) (any, error)](i.typ, m, m.postGetName)
		if err != nil {
			return nil, err
		}
		return fn(i, v)
	}
	return v, nil
}

// Set writes value to the attribute called name.
func (i *Instance) Set(name string, value any) error {
	if err := i.alive(); err != nil {
		return err
	}
	m, ok := i.typ.byName.Find(name)
	if !ok {
		if i.dynamic == nil {
			return atomerr.Lookup(i.typ.name, name, "no such attribute")
		}
		if i.frozen {
			return atomerr.Access(i.typ.name, name, "instance is frozen")
		}
		i.dynamic.Insert(name, value)
		return nil
	}
	if i.frozen {
		return atomerr.Access(i.typ.name, name, "instance is frozen")
	}
	return i.setattr(m, value)
}

func (i *Instance) setattr(m *Member, v any) error {
	var err error
	switch m.setattr {
	case SetattrSlot:
		return i.writeSlot(m, v)
	case SetattrConstant:
		return atomerr.Access(i.typ.name, m.name, "cannot set the value of a constant member")
	case SetattrReadOnly:
		if !i.constructing {
			return atomerr.Access(i.typ.name, m.name, "cannot change a read-only member after construction")
		}
		return i.writeSlot(m, v)
	case SetattrProperty:
		fn, _ := m.setFn.(func(*Instance, any) error)
		if fn == nil {
			return atomerr.Access(i.typ.name, m.name, "can't set attribute")
		}
		err = fn(i, v)
	case SetattrCallObjectObjectValue:
		err = m.setFn.(func(*Instance, any) error)(i, v)
	case SetattrObjectMethodValue:
		var fn func(*Instance, any) error
		if fn, err = method[func(*Instance, any) error](i.typ, m, m.setName); err == nil {
			err = fn(i, v)
		}
	case SetattrCustom:
		err = m.setFn.(SetattrHandler)(m, i, v)
	}
	return atomerr.WithContext(err, i.typ.name, m.name)
}

// writeSlot is the full write pipeline for slot-backed members.
func (i *Instance) writeSlot(m *Member, v any) error {
	prev := i.slots[m.index]
	nv, err := m.Validate(i, prev.value, v)
	if err != nil {
		return err
	}
	if prev.set && m.unchanged(prev.value, nv) {
		return nil
	}
	i.slots[m.index] = slot{value: nv, set: true}
	if err := i.postSetattr(m, prev.value, nv); err != nil {
		return err
	}
	kind := change.Update
	if !prev.set {
		kind = change.Create
	}
	return i.Notify(change.Record{Name: m.name, Kind: kind, OldValue: prev.value, NewValue: nv})
}

func (i *Instance) postSetattr(m *Member, old, v any) error {
	switch m.postSet {
	case PostCustom:
		return m.postSetFn(m, i, old, v)
	case PostObjectMethod:
		fn, err := method[func(*Instance, any, any) error](i.typ, m, m.postSetName)
		if err != nil {
			return err
		}
		return fn(i, old, v)
	}
	return nil
}

// Delete deletes the attribute called name according to its delattr mode.
func (i *Instance) Delete(name string) error {
	if err := i.alive(); err != nil {
		return err
	}
	m, ok := i.typ.byName.Find(name)
	if !ok {
		if i.dynamic != nil && i.dynamic.Contains(name) {
			if i.frozen {
				return atomerr.Access(i.typ.name, name, "instance is frozen")
			}
			i.dynamic.Remove(name)
			return nil
		}
		return atomerr.Lookup(i.typ.name, name, "no such attribute")
	}
	if i.frozen {
		return atomerr.Access(i.typ.name, name, "instance is frozen")
	}
	return i.delattr(m)
}

func (i *Instance) delattr(m *Member) error {
	var err error
	switch m.delattr {
	case DelattrSlot:
		prev := i.slots[m.index]
		if !prev.set {
			return nil
		}
		i.slots[m.index] = slot{}
		return i.Notify(change.Record{Name: m.name, Kind: change.Delete, OldValue: prev.value})
	case DelattrForbidden:
		return atomerr.Access(i.typ.name, m.name, "cannot delete the value of this member")
	case DelattrResetDefault:
		return i.resetDefault(m)
	case DelattrProperty:
		fn, _ := m.delFn.(func(*Instance) error)
		if fn == nil {
			return atomerr.Access(i.typ.name, m.name, "can't delete attribute")
		}
		err = fn(i)
	case DelattrCustom:
		err = m.delFn.(DelattrHandler)(m, i)
	}
	return atomerr.WithContext(err, i.typ.name, m.name)
}

// resetDefault recomputes the default and stores it. Only a set slot whose
// value actually changes produces an Update record.
func (i *Instance) resetDefault(m *Member) error {
	prev := i.slots[m.index]
	nv, err := i.validDefault(m)
	if err != nil {
		return atomerr.WithContext(err, i.typ.name, m.name)
	}
	i.slots[m.index] = slot{value: nv, set: true}
	if !prev.set || m.unchanged(prev.value, nv) {
		return nil
	}
	return i.Notify(change.Record{Name: m.name, Kind: change.Update, OldValue: prev.value, NewValue: nv})
}

// DynamicNames returns the names of the dynamic attributes in ascending order.
func (i *Instance) DynamicNames() []string {
	if i.dynamic == nil {
		return nil
	}
	return i.dynamic.Keys()
}

// IsSet reports whether the slot of the member called name holds a value.
func (i *Instance) IsSet(name string) bool {
	m, err := i.lookup(name)
	if err != nil {
		return false
	}
	return i.slots[m.index].set
}

// SlotGet returns the raw content of slot idx. It runs no pipeline stage and
// is meant for custom handlers.
func (i *Instance) SlotGet(idx int) (any, bool) {
	s := i.slots[idx]
	return s.value, s.set
}

// SlotSet stores v into slot idx without validation or notification.
func (i *Instance) SlotSet(idx int, v any) {
	i.slots[idx] = slot{value: v, set: true}
}

// SlotClear resets slot idx to unset without notification.
func (i *Instance) SlotClear(idx int) {
	i.slots[idx] = slot{}
}

func (i *Instance) containerOpts(m *Member, extra ...containers.Option) []containers.Option {
	if i == nil {
		return extra
	}
	return append([]containers.Option{containers.WithOwner(i, m.name)}, extra...)
}

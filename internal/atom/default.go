package atom

import (
	"maps"
	"slices"

	"github.com/roach88/catom/internal/atomerr"
)

// Default is the default value specification of a Member.
// The zero value is DefaultNoOp.
type Default struct {
	mode   DefaultMode
	value  any
	items  []any
	dict   map[any]any
	member string
	method string
	fn     any
}

// Mode returns the default mode.
func (d Default) Mode() DefaultMode { return d.mode }

// NoDefault yields nil for an unset slot.
func NoDefault() Default {
	return Default{mode: DefaultNoOp}
}

// DefaultValue yields v for every instance. v is shared, so it should not
// be a mutable container; use DefaultList, DefaultSet or DefaultDict for those.
func DefaultValue(v any) Default {
	return Default{mode: DefaultStatic, value: v}
}

// DefaultList yields a fresh copy of items for every instance.
func DefaultList(items ...any) Default {
	return Default{mode: DefaultModeList, items: slices.Clone(items)}
}

// DefaultSet yields a fresh copy of items, as a set, for every instance.
func DefaultSet(items ...any) Default {
	return Default{mode: DefaultModeSet, items: slices.Clone(items)}
}

// DefaultDict yields a fresh copy of entries for every instance.
func DefaultDict(entries map[any]any) Default {
	return Default{mode: DefaultModeDict, dict: maps.Clone(entries)}
}

// Required makes reading an unset slot an ATTRIBUTE_ACCESS error.
func Required() Default {
	return Default{mode: DefaultNonOptional}
}

// DefaultFrom uses the default of the named member of the same type.
func DefaultFrom(member string) Default {
	return Default{mode: DefaultDelegate, member: member}
}

// DefaultFactory calls fn for every instance.
func DefaultFactory(fn func() (any, error)) Default {
	return Default{mode: DefaultCallObject, fn: fn}
}

// DefaultFunc calls fn with the instance.
func DefaultFunc(fn func(inst *Instance) (any, error)) Default {
	return Default{mode: DefaultCallObjectObject, fn: fn}
}

// DefaultNamedFunc calls fn with the instance and the member name.
func DefaultNamedFunc(fn func(inst *Instance, name string) (any, error)) Default {
	return Default{mode: DefaultCallObjectObjectName, fn: fn}
}

// DefaultMethod calls the named type method, which must have the signature
// func(*Instance) (any, error).
func DefaultMethod(name string) Default {
	return Default{mode: DefaultObjectMethod, method: name}
}

// DefaultNamedMethod calls the named type method, which must have the
// signature func(*Instance, string) (any, error), with the member name.
func DefaultNamedMethod(name string) Default {
	return Default{mode: DefaultObjectMethodName, method: name}
}

// DefaultCustom calls fn with the Member and the instance.
func DefaultCustom(fn DefaultHandler) Default {
	return Default{mode: DefaultModeCustom, fn: fn}
}

// DefaultValue computes the raw default of m for inst. The result has not
// been validated.
func (m *Member) DefaultValue(inst *Instance) (any, error) {
	return m.computeDefault(inst, 0)
}

func (m *Member) computeDefault(inst *Instance, depth int) (any, error) {
	d := m.def
	switch d.mode {
	case DefaultNoOp:
		return nil, nil
	case DefaultStatic:
		return d.value, nil
	case DefaultModeList, DefaultModeSet:
		return slices.Clone(d.items), nil
	case DefaultModeDict:
		out := maps.Clone(d.dict)
		if out == nil {
			out = map[any]any{}
		}
		return out, nil
	case DefaultNonOptional:
		return nil, atomerr.Access(inst.typ.name, m.name,
			"the %s member of a %s object is required and has not been set", m.name, inst.typ.name)
	case DefaultDelegate:
		target, ok := inst.typ.Member(d.member)
		if !ok {
			return nil, atomerr.Lookup(inst.typ.name, m.name, "default delegate %q not found", d.member)
		}
		if depth > len(inst.typ.members) {
			return nil, atomerr.Schema(inst.typ.name, m.name, "default delegation cycle")
		}
		return target.computeDefault(inst, depth+1)
	case DefaultCallObject:
		return d.fn.(func() (any, error))()
	case DefaultCallObjectObject:
		return d.fn.(func(*Instance) (any, error))(inst)
	case DefaultCallObjectObjectName:
		return d.fn.(func(*Instance, string) (any, error))(inst, m.name)
	case DefaultObjectMethod:
		fn, err := method[func(*Instance) (any, error)](inst.typ, m, d.method)
		if err != nil {
			return nil, err
		}
		return fn(inst)
	case DefaultObjectMethodName:
		fn, err := method[func(*Instance, string) (any, error)](inst.typ, m, d.method)
		if err != nil {
			return nil, err
		}
		return fn(inst, m.name)
	case DefaultModeCustom:
		return d.fn.(DefaultHandler)(m, inst)
	}
	return nil, atomerr.Schema(inst.typ.name, m.name, "unknown default mode %s", d.mode)
}

// checkDefault verifies the default context at type construction.
func (m *Member) checkDefault(t *Type) error {
	d := m.def
	switch d.mode {
	case DefaultCallObject:
		if fn, ok := d.fn.(func() (any, error)); !ok || fn == nil {
			return atomerr.Schema(t.name, m.name, "default factory is nil")
		}
	case DefaultCallObjectObject:
		if fn, ok := d.fn.(func(*Instance) (any, error)); !ok || fn == nil {
			return atomerr.Schema(t.name, m.name, "default function is nil")
		}
	case DefaultCallObjectObjectName:
		if fn, ok := d.fn.(func(*Instance, string) (any, error)); !ok || fn == nil {
			return atomerr.Schema(t.name, m.name, "default function is nil")
		}
	case DefaultModeCustom:
		if fn, ok := d.fn.(DefaultHandler); !ok || fn == nil {
			return atomerr.Schema(t.name, m.name, "default handler is nil")
		}
	case DefaultObjectMethod:
		if _, err := method[func(*Instance) (any, error)](t, m, d.method); err != nil {
			return schemaFrom(err)
		}
	case DefaultObjectMethodName:
		if _, err := method[func(*Instance, string) (any, error)](t, m, d.method); err != nil {
			return schemaFrom(err)
		}
	case DefaultDelegate:
		seen := map[string]bool{m.name: true}
		cur := d.member
		for {
			target, ok := t.Member(cur)
			if !ok {
				return atomerr.Schema(t.name, m.name, "default delegate %q is not a member", cur)
			}
			if target.def.mode != DefaultDelegate {
				return nil
			}
			if seen[target.name] {
				return atomerr.Schema(t.name, m.name, "default delegation cycle through %q", target.name)
			}
			seen[target.name] = true
			cur = target.def.member
		}
	case DefaultStatic:
		return m.checkStatic(t, d.value)
	}
	return nil
}

// checkStatic validates a static default against scalar validators. Members
// whose validation depends on an instance are checked on first read instead.
func (m *Member) checkStatic(t *Type, v any) error {
	switch m.validate {
	case ValidateTyped, ValidateBool, ValidateInt, ValidateFloat, ValidateStr,
		ValidateBytes, ValidateEnum, ValidateRange, ValidateCallable:
	default:
		return nil
	}
	if _, err := m.validateBuiltin(nil, v); err != nil {
		return atomerr.Wrap(atomerr.CodeSchema, t.name, m.name, "invalid default", err)
	}
	return nil
}

func schemaFrom(err error) error {
	e, ok := err.(*atomerr.Error)
	if !ok {
		return err
	}
	cp := *e
	cp.Code = atomerr.CodeSchema
	return &cp
}

package atom

import (
	"fmt"
	"math"
	"reflect"

	"github.com/roach88/catom/internal/atomerr"
	"github.com/roach88/catom/internal/containers"
	"github.com/roach88/catom/internal/typeset"
)

// Validate runs the validate and post-validate stages of m for a write of
// newValue over oldValue and returns the value that would be stored. It
// does not touch storage.
func (m *Member) Validate(inst *Instance, oldValue, newValue any) (any, error) {
	v, err := m.runValidate(inst, oldValue, newValue)
	if err != nil {
		return nil, err
	}
	return m.runPostValidate(inst, oldValue, v)
}

func (m *Member) runValidate(inst *Instance, oldValue, newValue any) (any, error) {
	switch m.validate {
	case ValidateNoOp:
		return newValue, nil
	case ValidateCustom:
		v, err := m.valFn.(ValidateHandler)(m, inst, oldValue, newValue)
		if err != nil {
			return nil, m.asValidation(inst, err)
		}
		return v, nil
	}
	v, err := m.validateBuiltin(inst, newValue)
	if err != nil {
		return nil, m.asValidation(inst, err)
	}
	return v, nil
}

func (m *Member) runPostValidate(inst *Instance, oldValue, newValue any) (any, error) {
	switch m.postVal {
	case PostCustom:
		v, err := m.postValFn(m, inst, oldValue, newValue)
		if err != nil {
			return nil, m.asValidation(inst, err)
		}
		return v, nil
	case PostObjectMethod:
		fn, err := method[func(*Instance, any, any) (any, error)](inst.typ, m, m.postValName)
		if err != nil {
			return nil, err
		}
		v, err := fn(inst, oldValue, newValue)
		if err != nil {
			return nil, m.asValidation(inst, err)
		}
		return v, nil
	}
	return newValue, nil
}

func (m *Member) asValidation(inst *Instance, err error) error {
	typeName := ""
	if inst != nil {
		typeName = inst.typ.name
	}
	if _, ok := atomerr.CodeOf(err); ok {
		return atomerr.WithContext(err, typeName, m.name)
	}
	return atomerr.Wrap(atomerr.CodeValidation, typeName, m.name, "invalid value", err)
}

// validateBuiltin applies the built-in check selected by the validate mode.
// Only the container modes use inst.
func (m *Member) validateBuiltin(inst *Instance, v any) (any, error) {
	if v == nil && m.validate != ValidateCoerced {
		if m.constraint.IsNullable() {
			return nil, nil
		}
		return nil, m.mismatch(v)
	}

	switch m.validate {
	case ValidateTyped:
		if err := m.constraint.Check(v); err != nil {
			return nil, atomerr.Wrap(atomerr.CodeValidation, "", m.name, "invalid type", err)
		}
		return v, nil

	case ValidateBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, m.mismatch(v)

	case ValidateInt:
		if i, ok := v.(int); ok {
			return i, nil
		}
		if !m.strict {
			if i, ok := asInt(v); ok {
				return i, nil
			}
		}
		return nil, m.mismatch(v)

	case ValidateFloat:
		if f, ok := v.(float64); ok {
			return f, nil
		}
		if !m.strict {
			if f, ok := asFloat(v); ok {
				return f, nil
			}
		}
		return nil, m.mismatch(v)

	case ValidateStr:
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			if !m.strict {
				return string(s), nil
			}
		}
		return nil, m.mismatch(v)

	case ValidateBytes:
		switch b := v.(type) {
		case []byte:
			return b, nil
		case string:
			if !m.strict {
				return []byte(b), nil
			}
		}
		return nil, m.mismatch(v)

	case ValidateEnum:
		for _, item := range m.enum {
			if reflect.DeepEqual(item, v) {
				return item, nil
			}
		}
		return nil, atomerr.Validation("", m.name, "invalid enum value %v, expected one of %v", v, m.enum)

	case ValidateRange:
		i, ok := v.(int)
		if !ok {
			if i, ok = asInt(v); !ok {
				return nil, m.mismatch(v)
			}
		}
		if (m.low != nil && i < *m.low) || (m.high != nil && i > *m.high) {
			return nil, atomerr.Validation("", m.name, "value %d out of range %s", i, m.bounds())
		}
		return i, nil

	case ValidateCallable:
		if reflect.TypeOf(v).Kind() == reflect.Func {
			return v, nil
		}
		return nil, m.mismatch(v)

	case ValidateCoerced:
		if m.constraint.Accepts(v) {
			return v, nil
		}
		c, err := m.coercer(v)
		if err != nil {
			return nil, atomerr.Wrap(atomerr.CodeValidation, "", m.name, fmt.Sprintf("cannot coerce %s", typeset.Describe(v)), err)
		}
		if err := m.constraint.Check(c); err != nil {
			return nil, atomerr.Wrap(atomerr.CodeValidation, "", m.name, "coercion produced invalid value", err)
		}
		return c, nil

	case ValidateList:
		items, ok := containers.Items(v)
		if !ok {
			return nil, m.mismatch(v)
		}
		return containers.NewList(items, inst.containerOpts(m, containers.WithItemCheck(m.item.check(inst)))...)

	case ValidateSet:
		items, ok := containers.SetItems(v)
		if !ok {
			return nil, m.mismatch(v)
		}
		return containers.NewSet(items, inst.containerOpts(m, containers.WithItemCheck(m.item.check(inst)))...)

	case ValidateDict:
		entries, ok := containers.Entries(v)
		if !ok {
			return nil, m.mismatch(v)
		}
		return containers.NewDict(entries, inst.containerOpts(m,
			containers.WithKeyCheck(m.key.check(inst)),
			containers.WithValueCheck(m.value.check(inst)))...)
	}
	return v, nil
}

// check adapts an item Member into a container check. A nil Member accepts
// everything.
func (m *Member) check(inst *Instance) containers.Check {
	if m == nil {
		return nil
	}
	return func(item any) (any, error) {
		return m.Validate(inst, nil, item)
	}
}

func (m *Member) mismatch(v any) error {
	return atomerr.Validation("", m.name, "expected %s, got %s", m.expected(), typeset.Describe(v))
}

func (m *Member) expected() string {
	switch m.validate {
	case ValidateList:
		return "list"
	case ValidateSet:
		return "set"
	case ValidateDict:
		return "dict"
	case ValidateCallable:
		return "func"
	case ValidateRange:
		return "int"
	}
	return m.constraint.String()
}

func (m *Member) bounds() string {
	lo, hi := "-inf", "+inf"
	if m.low != nil {
		lo = fmt.Sprint(*m.low)
	}
	if m.high != nil {
		hi = fmt.Sprint(*m.high)
	}
	return "[" + lo + ", " + hi + "]"
}

func asInt(v any) (int, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := rv.Int()
		if n < math.MinInt || n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n := rv.Uint()
		if n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	if f, ok := v.(float32); ok {
		return float64(f), true
	}
	if i, ok := asInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

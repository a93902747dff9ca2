package atom

import (
	"reflect"
	"slices"

	"github.com/roach88/catom/internal/containers"
	"github.com/roach88/catom/internal/typeset"
)

var (
	boolType  = reflect.TypeFor[bool]()
	intType   = reflect.TypeFor[int]()
	floatType = reflect.TypeFor[float64]()
	strType   = reflect.TypeFor[string]()
	bytesType = reflect.TypeFor[[]byte]()
	listType  = reflect.TypeFor[*containers.List]()
	dictType  = reflect.TypeFor[*containers.Dict]()
	setType   = reflect.TypeFor[*containers.Set]()
)

// Value is an unconstrained member. Its default is nil.
func Value(opts ...MemberOption) *Member {
	return newMember("Value", typeset.Any(), ValidateNoOp).apply(opts)
}

// Bool holds a bool. Its default is false.
func Bool(opts ...MemberOption) *Member {
	m := newMember("Bool", typeset.Of(boolType), ValidateBool)
	m.def = DefaultValue(false)
	return m.apply(opts)
}

// Int holds an int. Other Go integer types are converted unless Strict is
// given. Its default is 0.
func Int(opts ...MemberOption) *Member {
	m := newMember("Int", typeset.Of(intType), ValidateInt)
	m.def = DefaultValue(0)
	return m.apply(opts)
}

// Float holds a float64. Integers are converted unless Strict is given. Its
// default is 0.0.
func Float(opts ...MemberOption) *Member {
	m := newMember("Float", typeset.Of(floatType), ValidateFloat)
	m.def = DefaultValue(0.0)
	return m.apply(opts)
}

// Str holds a string. []byte is converted unless Strict is given. Its
// default is "".
func Str(opts ...MemberOption) *Member {
	m := newMember("Str", typeset.Of(strType), ValidateStr)
	m.def = DefaultValue("")
	return m.apply(opts)
}

// Bytes holds a []byte. string is converted unless Strict is given. Every
// instance defaults to its own empty slice.
func Bytes(opts ...MemberOption) *Member {
	m := newMember("Bytes", typeset.Of(bytesType), ValidateBytes)
	m.def = DefaultFactory(func() (any, error) { return []byte{}, nil })
	return m.apply(opts)
}

// Callable holds any func value, or nil. Its default is nil.
func Callable(opts ...MemberOption) *Member {
	return newMember("Callable", typeset.Any(), ValidateCallable).apply(opts)
}

// Typed holds values accepted by c.
//
// A non-nullable Typed member must be assigned before it is read and takes
// no default. A nullable one defaults to nil and takes no other static
// default.
func Typed(c typeset.Constraint, opts ...MemberOption) *Member {
	m := newMember("Typed", c, ValidateTyped)
	if !c.IsNullable() {
		m.def = Required()
	}
	return m.apply(opts)
}

// List holds a tracked list whose items are validated by item (nil for any
// item). Assigned sequences are copied into a new tracked list. Every
// instance defaults to its own empty list.
func List(item *Member, opts ...MemberOption) *Member {
	m := newMember("List", typeset.Of(listType), ValidateList)
	m.item = item
	m.def = DefaultList()
	return m.apply(opts)
}

// Set holds a tracked set whose items are validated by item (nil for any
// comparable item).
func Set(item *Member, opts ...MemberOption) *Member {
	m := newMember("Set", typeset.Of(setType), ValidateSet)
	m.item = item
	m.def = DefaultSet()
	return m.apply(opts)
}

// Dict holds a tracked dict whose keys and values are validated by key and
// value (nil for any).
func Dict(key, value *Member, opts ...MemberOption) *Member {
	m := newMember("Dict", typeset.Of(dictType), ValidateDict)
	m.key = key
	m.value = value
	m.def = DefaultDict(nil)
	return m.apply(opts)
}

// Enum holds one of items. Its default is the first item.
func Enum(items []any, opts ...MemberOption) *Member {
	m := newMember("Enum", typeset.Any(), ValidateEnum)
	m.enum = slices.Clone(items)
	if len(items) > 0 {
		m.def = DefaultValue(items[0])
	}
	return m.apply(opts)
}

// Range holds an int inside the optional bounds low and high. Its default is
// low when set, then high when set, then 0.
func Range(low, high *int, opts ...MemberOption) *Member {
	m := newMember("Range", typeset.Of(intType), ValidateRange)
	m.low, m.high = low, high
	switch {
	case low != nil:
		m.def = DefaultValue(*low)
	case high != nil:
		m.def = DefaultValue(*high)
	default:
		m.def = DefaultValue(0)
	}
	return m.apply(opts)
}

// Bound returns a pointer to v, for use with Range.
func Bound(v int) *int {
	return &v
}

// Constant always reads v and rejects writes and deletes.
func Constant(v any, opts ...MemberOption) *Member {
	m := newMember("Constant", typeset.Any(), ValidateNoOp)
	m.def = DefaultValue(v)
	m.setattr = SetattrConstant
	m.delattr = DelattrForbidden
	return m.apply(opts)
}

// Coerced holds values accepted by c. Values that c rejects are passed to
// coerce and the result must be accepted by c. Its default is the zero value
// of the first type in c.
func Coerced(c typeset.Constraint, coerce Coercer, opts ...MemberOption) *Member {
	m := newMember("Coerced", c, ValidateCoerced)
	m.coercer = coerce
	if types := c.Types(); len(types) > 0 {
		zero := reflect.Zero(types[0]).Interface()
		m.def = DefaultValue(zero)
	}
	return m.apply(opts)
}

// Property computes its value with get on every read. set and del may be nil,
// in which case writes or deletes fail with an ATTRIBUTE_ACCESS error.
func Property(get func(*Instance) (any, error), set func(*Instance, any) error, del func(*Instance) error, opts ...MemberOption) *Member {
	m := newMember("Property", typeset.Any(), ValidateNoOp)
	m.getattr = GetattrProperty
	m.getFn = get
	m.setattr = SetattrProperty
	m.setFn = set
	m.delattr = DelattrProperty
	m.delFn = del
	return m.apply(opts)
}

// Cached computes its value with get on first read and keeps it in the
// slot. Deleting the attribute drops the cached value.
func Cached(get func(*Instance) (any, error), opts ...MemberOption) *Member {
	m := newMember("Cached", typeset.Any(), ValidateNoOp)
	m.getattr = GetattrCachedProperty
	m.getFn = get
	m.setattr = SetattrProperty
	return m.apply(opts)
}

package atom

// DefaultMode selects how a Member computes the value of an unset slot.
type DefaultMode uint8

const (
	// DefaultNoOp yields nil.
	DefaultNoOp DefaultMode = iota
	// DefaultStatic yields a fixed value shared by every instance.
	DefaultStatic
	// DefaultModeList yields a fresh copy of a list of items.
	DefaultModeList
	// DefaultModeSet yields a fresh copy of a set of items.
	DefaultModeSet
	// DefaultModeDict yields a fresh copy of a mapping.
	DefaultModeDict
	// DefaultNonOptional fails: the value must be assigned before it is read.
	DefaultNonOptional
	// DefaultDelegate uses the default of another Member of the same type.
	DefaultDelegate
	// DefaultCallObject calls a factory with no arguments.
	DefaultCallObject
	// DefaultCallObjectObject calls a factory with the instance.
	DefaultCallObjectObject
	// DefaultCallObjectObjectName calls a factory with the instance and member name.
	DefaultCallObjectObjectName
	// DefaultObjectMethod calls a named type method with the instance.
	DefaultObjectMethod
	// DefaultObjectMethodName calls a named type method with the instance and member name.
	DefaultObjectMethodName
	// DefaultModeCustom calls a handler with the Member and the instance.
	DefaultModeCustom
)

var defaultModeNames = [...]string{
	"NoOp", "Static", "List", "Set", "Dict", "NonOptional", "Delegate",
	"CallObject", "CallObject_Object", "CallObject_ObjectName",
	"ObjectMethod", "ObjectMethod_Name", "Custom",
}

func (m DefaultMode) String() string {
	if int(m) < len(defaultModeNames) {
		return defaultModeNames[m]
	}
	return "DefaultMode(?)"
}

// GetattrMode selects how a Member produces its value on read.
type GetattrMode uint8

const (
	// GetattrSlot reads the slot, computing the default when it is unset.
	GetattrSlot GetattrMode = iota
	// GetattrProperty calls the property getter on every read.
	GetattrProperty
	// GetattrCachedProperty calls the getter once and caches the result in the slot.
	GetattrCachedProperty
	// GetattrCallObjectObject calls a function with the instance.
	GetattrCallObjectObject
	// GetattrObjectMethod calls a named type method with the instance.
	GetattrObjectMethod
	// GetattrCustom calls a handler with the Member and the instance.
	GetattrCustom
)

var getattrModeNames = [...]string{
	"Slot", "Property", "CachedProperty", "CallObject_Object", "ObjectMethod", "Custom",
}

func (m GetattrMode) String() string {
	if int(m) < len(getattrModeNames) {
		return getattrModeNames[m]
	}
	return "GetattrMode(?)"
}

// SetattrMode selects how a Member handles a write.
type SetattrMode uint8

const (
	// SetattrSlot runs the full write pipeline and stores into the slot.
	SetattrSlot SetattrMode = iota
	// SetattrConstant rejects every write.
	SetattrConstant
	// SetattrReadOnly accepts writes only while the instance is being constructed.
	SetattrReadOnly
	// SetattrProperty calls the property setter.
	SetattrProperty
	// SetattrCallObjectObjectValue calls a function with the instance and value.
	SetattrCallObjectObjectValue
	// SetattrObjectMethodValue calls a named type method with the instance and value.
	SetattrObjectMethodValue
	// SetattrCustom calls a handler with the Member, the instance and the value.
	SetattrCustom
)

var setattrModeNames = [...]string{
	"Slot", "Constant", "ReadOnly", "Property", "CallObject_ObjectValue", "ObjectMethod_Value", "Custom",
}

func (m SetattrMode) String() string {
	if int(m) < len(setattrModeNames) {
		return setattrModeNames[m]
	}
	return "SetattrMode(?)"
}

// ValidateMode selects the check applied to incoming values.
type ValidateMode uint8

const (
	// ValidateNoOp accepts anything.
	ValidateNoOp ValidateMode = iota
	// ValidateTyped checks the value against the Member's constraint.
	ValidateTyped
	// ValidateBool accepts bool.
	ValidateBool
	// ValidateInt accepts Go integers, converting them to int unless strict.
	ValidateInt
	// ValidateFloat accepts float64, and integers converted to float64 unless strict.
	ValidateFloat
	// ValidateStr accepts string, and []byte converted to string unless strict.
	ValidateStr
	// ValidateBytes accepts []byte, and string converted to []byte unless strict.
	ValidateBytes
	// ValidateList converts any sequence into a tracked list.
	ValidateList
	// ValidateDict converts any mapping into a tracked dict.
	ValidateDict
	// ValidateSet converts any sequence or set into a tracked set.
	ValidateSet
	// ValidateEnum accepts one of a fixed set of items.
	ValidateEnum
	// ValidateRange accepts an int inside optional bounds.
	ValidateRange
	// ValidateCallable accepts any Go func value.
	ValidateCallable
	// ValidateCoerced keeps values matching the constraint and coerces the rest.
	ValidateCoerced
	// ValidateCustom calls a handler.
	ValidateCustom
)

var validateModeNames = [...]string{
	"NoOp", "Typed", "Bool", "Int", "Float", "Str", "Bytes", "List", "Dict", "Set",
	"Enum", "Range", "Callable", "Coerced", "Custom",
}

func (m ValidateMode) String() string {
	if int(m) < len(validateModeNames) {
		return validateModeNames[m]
	}
	return "ValidateMode(?)"
}

// PostMode selects the hook run by the post-getattr, post-validate and
// post-setattr stages.
type PostMode uint8

const (
	// PostNoOp runs nothing.
	PostNoOp PostMode = iota
	// PostObjectMethod calls a named type method.
	PostObjectMethod
	// PostCustom calls a handler.
	PostCustom
)

func (m PostMode) String() string {
	switch m {
	case PostNoOp:
		return "NoOp"
	case PostObjectMethod:
		return "ObjectMethod"
	case PostCustom:
		return "Custom"
	}
	return "PostMode(?)"
}

// DelattrMode selects what deleting an attribute does.
type DelattrMode uint8

const (
	// DelattrSlot resets the slot to unset and emits a Delete record.
	DelattrSlot DelattrMode = iota
	// DelattrForbidden rejects the delete.
	DelattrForbidden
	// DelattrResetDefault recomputes the default and stores it.
	DelattrResetDefault
	// DelattrProperty calls the property deleter.
	DelattrProperty
	// DelattrCustom calls a handler with the Member and the instance.
	DelattrCustom
)

var delattrModeNames = [...]string{"Slot", "Forbidden", "ResetDefault", "Property", "Custom"}

func (m DelattrMode) String() string {
	if int(m) < len(delattrModeNames) {
		return delattrModeNames[m]
	}
	return "DelattrMode(?)"
}

// Equality decides whether a write changes the stored value.
type Equality uint8

const (
	// EqualValue compares values deeply; tracked containers compare by contents.
	EqualValue Equality = iota
	// EqualIdentity compares pointers, maps, slices and funcs by identity and
	// everything else with ==.
	EqualIdentity
	// AlwaysNotify treats every write as a change.
	AlwaysNotify
)

func (e Equality) String() string {
	switch e {
	case EqualValue:
		return "value"
	case EqualIdentity:
		return "identity"
	case AlwaysNotify:
		return "always"
	}
	return "Equality(?)"
}

// ParseEquality parses "value", "identity" or "always".
func ParseEquality(s string) (Equality, bool) {
	switch s {
	case "value":
		return EqualValue, true
	case "identity":
		return EqualIdentity, true
	case "always":
		return AlwaysNotify, true
	}
	return 0, false
}

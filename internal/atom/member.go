package atom

import (
	"maps"
	"slices"

	"github.com/roach88/catom/internal/change"
	"github.com/roach88/catom/internal/typeset"
)

// Handler signatures for the Custom mode of each stage.
type (
	// DefaultHandler computes the default value of m for inst.
	DefaultHandler func(m *Member, inst *Instance) (any, error)

	// GetattrHandler produces the value of m for inst.
	GetattrHandler func(m *Member, inst *Instance) (any, error)

	// SetattrHandler stores value into m for inst.
	SetattrHandler func(m *Member, inst *Instance, value any) error

	// ValidateHandler checks newValue and returns the value to store.
	ValidateHandler func(m *Member, inst *Instance, oldValue, newValue any) (any, error)

	// PostGetattrHandler transforms a value on its way out.
	PostGetattrHandler func(m *Member, inst *Instance, value any) (any, error)

	// PostValidateHandler runs after validation and returns the value to store.
	PostValidateHandler func(m *Member, inst *Instance, oldValue, newValue any) (any, error)

	// PostSetattrHandler runs after a value has been stored.
	PostSetattrHandler func(m *Member, inst *Instance, oldValue, newValue any) error

	// DelattrHandler deletes m for inst.
	DelattrHandler func(m *Member, inst *Instance) error
)

// Coercer converts a value that fails a Coerced member's constraint.
type Coercer func(v any) (any, error)

// Member describes one attribute of a Type: its slot, its constraint and
// the behavior mode of every pipeline stage.
//
// Members are created unnamed by the kind constructors (Int, Str, List, ...)
// and receive their name and slot index when a Type is built. A Member held
// by a Type is never modified.
type Member struct {
	name       string
	index      int
	kind       string
	constraint typeset.Constraint
	strict     bool
	equality   Equality

	def      Default
	explicit bool // default set with WithDefault

	getattr  GetattrMode
	getFn    any
	getName  string
	setattr  SetattrMode
	setFn    any
	setName  string
	validate ValidateMode
	valFn    any
	delattr  DelattrMode
	delFn    any

	postGet     PostMode
	postGetFn   PostGetattrHandler
	postGetName string
	postVal     PostMode
	postValFn   PostValidateHandler
	postValName string
	postSet     PostMode
	postSetFn   PostSetattrHandler
	postSetName string

	item  *Member
	key   *Member
	value *Member

	enum     []any
	low      *int
	high     *int
	coercer  Coercer
	static   []staticObserver
	metadata map[string]any
}

type staticObserver struct {
	fn     change.Observer
	method string
}

func newMember(kind string, constraint typeset.Constraint, mode ValidateMode) *Member {
	return &Member{
		index:      -1,
		kind:       kind,
		constraint: constraint,
		validate:   mode,
	}
}

func (m *Member) apply(opts []MemberOption) *Member {
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Member) clone() *Member {
	cp := *m
	cp.enum = slices.Clone(m.enum)
	cp.static = slices.Clone(m.static)
	cp.metadata = maps.Clone(m.metadata)
	return &cp
}

// Name returns the attribute name, or "" before the Member joins a Type.
func (m *Member) Name() string { return m.name }

// Index returns the slot index, or -1 before the Member joins a Type.
func (m *Member) Index() int { return m.index }

// Kind returns the constructor family, such as "Int" or "List".
func (m *Member) Kind() string { return m.kind }

// Constraint returns the type constraint.
func (m *Member) Constraint() typeset.Constraint { return m.constraint }

// Equality returns the change detection policy.
func (m *Member) Equality() Equality { return m.equality }

// DefaultMode returns the default computation mode.
func (m *Member) DefaultMode() DefaultMode { return m.def.mode }

// GetattrMode returns the read mode.
func (m *Member) GetattrMode() GetattrMode { return m.getattr }

// SetattrMode returns the write mode.
func (m *Member) SetattrMode() SetattrMode { return m.setattr }

// ValidateMode returns the validation mode.
func (m *Member) ValidateMode() ValidateMode { return m.validate }

// DelattrMode returns the delete mode.
func (m *Member) DelattrMode() DelattrMode { return m.delattr }

// PostModes returns the post-getattr, post-validate and post-setattr modes.
func (m *Member) PostModes() (get, validate, set PostMode) {
	return m.postGet, m.postVal, m.postSet
}

// Item returns the item Member of a List or Set, or nil.
func (m *Member) Item() *Member { return m.item }

// Key returns the key Member of a Dict, or nil.
func (m *Member) Key() *Member { return m.key }

// Val returns the value Member of a Dict, or nil.
func (m *Member) Val() *Member { return m.value }

// Metadata returns a value attached with WithMetadata.
func (m *Member) Metadata(key string) (any, bool) {
	v, ok := m.metadata[key]
	return v, ok
}

// StaticObservers returns the number of observers declared on the Type for
// this Member.
func (m *Member) StaticObservers() int { return len(m.static) }

// MemberOption configures a Member at construction.
type MemberOption func(*Member)

// WithDefault sets the default computation.
func WithDefault(d Default) MemberOption {
	return func(m *Member) {
		m.def = d
		m.explicit = true
	}
}

// Strict disables the lossless conversions performed by Int, Float, Str and
// Bytes members.
func Strict() MemberOption {
	return func(m *Member) { m.strict = true }
}

// Nillable makes the Member accept nil in addition to its constraint.
func Nillable() MemberOption {
	return func(m *Member) {
		if m.constraint.IsAny() {
			return
		}
		m.constraint = m.constraint.WithNullable(true)
	}
}

// ReadOnly allows writes only while the instance is being constructed.
func ReadOnly() MemberOption {
	return func(m *Member) { m.setattr = SetattrReadOnly }
}

// WithEquality sets the change detection policy.
func WithEquality(e Equality) MemberOption {
	return func(m *Member) { m.equality = e }
}

// WithDelattr sets a built-in delete mode. Use WithDelattrHandler for Custom.
func WithDelattr(mode DelattrMode) MemberOption {
	return func(m *Member) { m.delattr = mode }
}

// WithMetadata attaches an arbitrary key/value pair to the Member.
func WithMetadata(key string, value any) MemberOption {
	return func(m *Member) {
		if m.metadata == nil {
			m.metadata = make(map[string]any)
		}
		m.metadata[key] = value
	}
}

// WithGetattrHandler installs a Custom getattr handler.
func WithGetattrHandler(fn GetattrHandler) MemberOption {
	return func(m *Member) {
		m.getattr = GetattrCustom
		m.getFn = fn
	}
}

// WithGetattrFunc reads the attribute by calling fn with the instance.
func WithGetattrFunc(fn func(inst *Instance) (any, error)) MemberOption {
	return func(m *Member) {
		m.getattr = GetattrCallObjectObject
		m.getFn = fn
	}
}

// WithGetattrMethod reads the attribute through a named type method with the
// signature func(*Instance) (any, error).
func WithGetattrMethod(name string) MemberOption {
	return func(m *Member) {
		m.getattr = GetattrObjectMethod
		m.getName = name
	}
}

// WithSetattrHandler installs a Custom setattr handler.
func WithSetattrHandler(fn SetattrHandler) MemberOption {
	return func(m *Member) {
		m.setattr = SetattrCustom
		m.setFn = fn
	}
}

// WithSetattrFunc handles writes by calling fn with the instance and value.
func WithSetattrFunc(fn func(inst *Instance, value any) error) MemberOption {
	return func(m *Member) {
		m.setattr = SetattrCallObjectObjectValue
		m.setFn = fn
	}
}

// WithSetattrMethod handles writes through a named type method with the
// signature func(*Instance, any) error.
func WithSetattrMethod(name string) MemberOption {
	return func(m *Member) {
		m.setattr = SetattrObjectMethodValue
		m.setName = name
	}
}

// WithValidator replaces the built-in validation with fn.
func WithValidator(fn ValidateHandler) MemberOption {
	return func(m *Member) {
		m.validate = ValidateCustom
		m.valFn = fn
	}
}

// WithDelattrHandler installs a Custom delattr handler.
func WithDelattrHandler(fn DelattrHandler) MemberOption {
	return func(m *Member) {
		m.delattr = DelattrCustom
		m.delFn = fn
	}
}

// WithPostGetattr installs a post-getattr handler.
func WithPostGetattr(fn PostGetattrHandler) MemberOption {
	return func(m *Member) {
		m.postGet = PostCustom
		m.postGetFn = fn
	}
}

// WithPostGetattrMethod runs a named type method with the signature
// func(*Instance, any) (any, error) after every read.
func WithPostGetattrMethod(name string) MemberOption {
	return func(m *Member) {
		m.postGet = PostObjectMethod
		m.postGetName = name
	}
}

// WithPostValidate installs a post-validate handler.
func WithPostValidate(fn PostValidateHandler) MemberOption {
	return func(m *Member) {
		m.postVal = PostCustom
		m.postValFn = fn
	}
}

// WithPostValidateMethod runs a named type method with the signature
// func(*Instance, any, any) (any, error) after validation.
func WithPostValidateMethod(name string) MemberOption {
	return func(m *Member) {
		m.postVal = PostObjectMethod
		m.postValName = name
	}
}

// WithPostSetattr installs a post-setattr handler.
func WithPostSetattr(fn PostSetattrHandler) MemberOption {
	return func(m *Member) {
		m.postSet = PostCustom
		m.postSetFn = fn
	}
}

// WithPostSetattrMethod runs a named type method with the signature
// func(*Instance, any, any) error after every stored write.
func WithPostSetattrMethod(name string) MemberOption {
	return func(m *Member) {
		m.postSet = PostObjectMethod
		m.postSetName = name
	}
}

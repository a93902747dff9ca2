package atom

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"

	"github.com/roach88/catom/internal/atomerr"
	"github.com/roach88/catom/internal/change"
	"github.com/roach88/catom/internal/ordmap"
)

// Type is the flattened, immutable schema of an entity type.
type Type struct {
	name    string
	base    *Type
	members []*Member
	byName  *ordmap.Map[string, *Member]
	methods *ordmap.Map[string, any]

	eagerDefaults bool
	dynamicAttrs  bool
	ids           IDGenerator
	logger        *slog.Logger
}

// TypeOption configures NewType.
type TypeOption func(*typeConfig)

type field struct {
	name   string
	member *Member
}

type namedMethod struct {
	name string
	fn   any
}

type observation struct {
	member string
	obs    change.Observer
	method string
}

type typeConfig struct {
	base         *Type
	fields       []field
	methods      []namedMethod
	observations []observation
	eager        *bool
	dynamic      *bool
	ids          IDGenerator
	logger       *slog.Logger
}

// Extends makes the new Type inherit every member, method and policy of base.
func Extends(base *Type) TypeOption {
	return func(c *typeConfig) { c.base = base }
}

// Field declares a member. Declaring a name the base already has overrides
// that member in place.
func Field(name string, m *Member) TypeOption {
	return func(c *typeConfig) { c.fields = append(c.fields, field{name: name, member: m}) }
}

// Method registers a named method referenced by ObjectMethod modes and
// ObserveMethod. Methods are inherited and may be overridden by subtypes.
func Method(name string, fn any) TypeOption {
	return func(c *typeConfig) { c.methods = append(c.methods, namedMethod{name: name, fn: fn}) }
}

// Observe declares a static observer on member. Static observers run for
// every instance, before any dynamic observer.
func Observe(member string, obs change.Observer) TypeOption {
	return func(c *typeConfig) {
		c.observations = append(c.observations, observation{member: member, obs: obs})
	}
}

// ObserveMethod declares a static observer calling the named method, which
// must have the signature func(*Instance, change.Record) error.
func ObserveMethod(member, method string) TypeOption {
	return func(c *typeConfig) {
		c.observations = append(c.observations, observation{member: member, method: method})
	}
}

// WithEagerDefaults computes every default at construction instead of on
// first read. Members with a Required default are left unset.
func WithEagerDefaults(on bool) TypeOption {
	return func(c *typeConfig) { c.eager = &on }
}

// WithDynamicAttributes lets instances hold attributes that are not members.
// Dynamic attributes are stored as given, without validation or
// notification.
func WithDynamicAttributes(on bool) TypeOption {
	return func(c *typeConfig) { c.dynamic = &on }
}

// WithIDGenerator sets the generator used for instance IDs.
func WithIDGenerator(g IDGenerator) TypeOption {
	return func(c *typeConfig) { c.ids = g }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) TypeOption {
	return func(c *typeConfig) { c.logger = l }
}

// NewType builds a Type named name. It fails with a SCHEMA error, and
// builds nothing, when a member is declared twice, when an override widens
// the inherited constraint, or when a default or mode refers to something
// that does not exist or has the wrong shape.
func NewType(name string, opts ...TypeOption) (*Type, error) {
	var cfg typeConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if name == "" {
		return nil, atomerr.Schema("", "", "type name is empty")
	}

	t := &Type{
		name:    name,
		base:    cfg.base,
		byName:  ordmap.NewOrdered[string, *Member](),
		methods: ordmap.NewOrdered[string, any](),
		ids:     UUIDv7Generator{},
		logger:  slog.Default(),
	}
	if b := cfg.base; b != nil {
		t.members = slices.Clone(b.members)
		for k, v := range b.byName.All() {
			t.byName.Insert(k, v)
		}
		for k, v := range b.methods.All() {
			t.methods.Insert(k, v)
		}
		t.eagerDefaults = b.eagerDefaults
		t.dynamicAttrs = b.dynamicAttrs
		t.ids = b.ids
		t.logger = b.logger
	}
	if cfg.eager != nil {
		t.eagerDefaults = *cfg.eager
	}
	if cfg.dynamic != nil {
		t.dynamicAttrs = *cfg.dynamic
	}
	if cfg.ids != nil {
		t.ids = cfg.ids
	}
	if cfg.logger != nil {
		t.logger = cfg.logger
	}

	for _, nm := range cfg.methods {
		if nm.fn == nil {
			return nil, atomerr.Schema(name, "", "method %q is nil", nm.name)
		}
		t.methods.Insert(nm.name, nm.fn)
	}

	declared := make(map[string]bool, len(cfg.fields))
	for _, f := range cfg.fields {
		if err := t.declare(f, declared); err != nil {
			return nil, err
		}
	}

	for _, o := range cfg.observations {
		if err := t.observe(o); err != nil {
			return nil, err
		}
	}

	for _, m := range t.members {
		if err := m.checkModes(t); err != nil {
			return nil, err
		}
	}

	t.logger.Debug("type defined",
		"type", name,
		"slots", len(t.members),
		"declared", len(cfg.fields))
	return t, nil
}

func (t *Type) declare(f field, declared map[string]bool) error {
	if f.name == "" {
		return atomerr.Schema(t.name, "", "member name is empty")
	}
	if f.member == nil {
		return atomerr.Schema(t.name, f.name, "member is nil")
	}
	if declared[f.name] {
		return atomerr.Schema(t.name, f.name, "member declared twice")
	}
	declared[f.name] = true

	m := f.member.clone()
	m.name = f.name
	if parent, ok := t.byName.Find(f.name); ok {
		if !m.constraint.Narrows(parent.constraint) {
			return atomerr.Schema(t.name, f.name, "override constraint %s is not a subtype of inherited %s",
				m.constraint, parent.constraint)
		}
		if !m.narrows(parent) {
			return atomerr.Schema(t.name, f.name, "override %s widens inherited %s", m.describe(), parent.describe())
		}
		m.index = parent.index
		m.static = append(slices.Clone(parent.static), m.static...)
		t.members[m.index] = m
	} else {
		m.index = len(t.members)
		t.members = append(t.members, m)
	}
	t.byName.Insert(f.name, m)
	return nil
}

// narrows reports whether every value m accepts is also accepted by parent.
// A nil member accepts anything. Container members compare their item, key
// and value members; Range and Enum members compare bounds and items.
func (m *Member) narrows(parent *Member) bool {
	if parent == nil {
		return true
	}
	if m == nil || !m.constraint.Narrows(parent.constraint) {
		return false
	}
	switch parent.validate {
	case ValidateList, ValidateSet:
		return m.validate == parent.validate && m.item.narrows(parent.item)
	case ValidateDict:
		return m.validate == ValidateDict && m.key.narrows(parent.key) && m.value.narrows(parent.value)
	case ValidateRange:
		return m.validate == ValidateRange &&
			(parent.low == nil || (m.low != nil && *m.low >= *parent.low)) &&
			(parent.high == nil || (m.high != nil && *m.high <= *parent.high))
	case ValidateEnum:
		if m.validate != ValidateEnum {
			return false
		}
		for _, item := range m.enum {
			if !slices.ContainsFunc(parent.enum, func(p any) bool { return reflect.DeepEqual(p, item) }) {
				return false
			}
		}
		return true
	case ValidateCallable:
		return m.validate == ValidateCallable
	}
	return true
}

// describe renders the kind with its bounds or item kinds for error messages.
func (m *Member) describe() string {
	if m == nil {
		return "any"
	}
	switch m.validate {
	case ValidateList, ValidateSet:
		return fmt.Sprintf("%s(%s)", m.kind, m.item.describe())
	case ValidateDict:
		return fmt.Sprintf("Dict(%s, %s)", m.key.describe(), m.value.describe())
	case ValidateRange:
		return "Range" + m.bounds()
	case ValidateEnum:
		return fmt.Sprintf("Enum%v", m.enum)
	}
	return m.kind
}

func (t *Type) observe(o observation) error {
	m, ok := t.byName.Find(o.member)
	if !ok {
		return atomerr.Schema(t.name, o.member, "observer declared on unknown member")
	}
	if o.obs == nil && o.method == "" {
		return atomerr.Schema(t.name, o.member, "observer is nil")
	}
	if o.method != "" {
		if _, err := method[func(*Instance, change.Record) error](t, m, o.method); err != nil {
			return schemaFrom(err)
		}
	}
	// Inherited members are shared with the base; give this type its own copy.
	if t.base == nil || !t.base.owns(m) {
		m.static = append(m.static, staticObserver{fn: o.obs, method: o.method})
		return nil
	}
	cp := m.clone()
	cp.static = append(cp.static, staticObserver{fn: o.obs, method: o.method})
	t.members[cp.index] = cp
	t.byName.Insert(cp.name, cp)
	return nil
}

func (t *Type) owns(m *Member) bool {
	return m.index < len(t.members) && t.members[m.index] == m
}

// checkModes verifies that every handler a mode needs is present and that
// every referenced method exists with the right signature.
func (m *Member) checkModes(t *Type) error {
	if m.kind == "Typed" && m.explicit {
		switch {
		case m.constraint.IsNullable() && m.def.mode == DefaultStatic && m.def.value != nil:
			return atomerr.Schema(t.name, m.name, "nullable Typed member cannot have a non-nil default")
		case !m.constraint.IsNullable() && m.def.mode != DefaultNonOptional:
			return atomerr.Schema(t.name, m.name, "non-nullable Typed member cannot have a default")
		}
	}
	if err := m.checkDefault(t); err != nil {
		return err
	}

	missing := func(stage string) error {
		return atomerr.Schema(t.name, m.name, "%s handler is nil", stage)
	}
	switch m.getattr {
	case GetattrProperty, GetattrCachedProperty, GetattrCallObjectObject:
		if fn, ok := m.getFn.(func(*Instance) (any, error)); !ok || fn == nil {
			if m.getattr != GetattrProperty {
				return missing("getattr")
			}
		}
	case GetattrObjectMethod:
		if _, err := method[func(*Instance) (any, error)](t, m, m.getName); err != nil {
			return schemaFrom(err)
		}
	case GetattrCustom:
		if fn, ok := m.getFn.(GetattrHandler); !ok || fn == nil {
			return missing("getattr")
		}
	}
	switch m.setattr {
	case SetattrCallObjectObjectValue:
		if fn, ok := m.setFn.(func(*Instance, any) error); !ok || fn == nil {
			return missing("setattr")
		}
	case SetattrObjectMethodValue:
		if _, err := method[func(*Instance, any) error](t, m, m.setName); err != nil {
			return schemaFrom(err)
		}
	case SetattrCustom:
		if fn, ok := m.setFn.(SetattrHandler); !ok || fn == nil {
			return missing("setattr")
		}
	}
	switch m.validate {
	case ValidateCustom:
		if fn, ok := m.valFn.(ValidateHandler); !ok || fn == nil {
			return missing("validate")
		}
	case ValidateCoerced:
		if m.coercer == nil {
			return missing("coercer")
		}
	case ValidateEnum:
		if len(m.enum) == 0 {
			return atomerr.Schema(t.name, m.name, "enum has no items")
		}
	case ValidateRange:
		if m.low != nil && m.high != nil && *m.low > *m.high {
			return atomerr.Schema(t.name, m.name, "range low %d exceeds high %d", *m.low, *m.high)
		}
	}
	if m.delattr == DelattrCustom {
		if fn, ok := m.delFn.(DelattrHandler); !ok || fn == nil {
			return missing("delattr")
		}
	}
	if m.delattr == DelattrResetDefault && m.def.mode == DefaultNonOptional {
		return atomerr.Schema(t.name, m.name, "reset-to-default delete needs a default")
	}

	posts := []struct {
		mode  PostMode
		fn    bool
		name  string
		stage string
		check func(string) error
	}{
		{m.postGet, m.postGetFn != nil, m.postGetName, "post-getattr", func(n string) error {
			_, err := method[func(*Instance, any) (any, error)](t, m, n)
			return err
		}},
		{m.postVal, m.postValFn != nil, m.postValName, "post-validate", func(n string) error {
			_, err := method[func(*Instance, any, any) (any, error)](t, m, n)
			return err
		}},
		{m.postSet, m.postSetFn != nil, m.postSetName, "post-setattr", func(n string) error {
			_, err := method[func(*Instance, any, any) error](t, m, n)
			return err
		}},
	}
	for _, p := range posts {
		switch p.mode {
		case PostCustom:
			if !p.fn {
				return missing(p.stage)
			}
		case PostObjectMethod:
			if err := p.check(p.name); err != nil {
				return schemaFrom(err)
			}
		}
	}
	return nil
}

// method looks up a named type method and asserts its signature.
func method[F any](t *Type, m *Member, name string) (F, error) {
	var zero F
	member := ""
	if m != nil {
		member = m.name
	}
	raw, ok := t.methods.Find(name)
	if !ok {
		return zero, atomerr.Lookup(t.name, member, "method %q is not defined", name)
	}
	fn, ok := raw.(F)
	if !ok {
		return zero, atomerr.Lookup(t.name, member, "method %q has type %T, want %T", name, raw, zero)
	}
	return fn, nil
}

// Name returns the type name.
func (t *Type) Name() string { return t.name }

// Base returns the type this one extends, or nil.
func (t *Type) Base() *Type { return t.base }

// NumSlots returns the number of storage slots of every instance.
func (t *Type) NumSlots() int { return len(t.members) }

// Members returns the members in slot order.
func (t *Type) Members() []*Member { return slices.Clone(t.members) }

// Member returns the member called name.
func (t *Type) Member(name string) (*Member, bool) {
	return t.byName.Find(name)
}

// MemberNames returns the member names in ascending order.
func (t *Type) MemberNames() []string { return t.byName.Keys() }

// MethodNames returns the method names in ascending order.
func (t *Type) MethodNames() []string { return t.methods.Keys() }

// IsSubtypeOf reports whether t is other or extends it.
func (t *Type) IsSubtypeOf(other *Type) bool {
	for cur := t; cur != nil; cur = cur.base {
		if cur == other {
			return true
		}
	}
	return false
}

// EagerDefaults reports whether defaults are computed at construction.
func (t *Type) EagerDefaults() bool { return t.eagerDefaults }

// DynamicAttributes reports whether instances accept non-member attributes.
func (t *Type) DynamicAttributes() bool { return t.dynamicAttrs }

func (t *Type) String() string {
	if t.base != nil {
		return fmt.Sprintf("%s(%s)", t.name, t.base.name)
	}
	return t.name
}

// Assignment is an initial attribute value passed to Type.New.
type Assignment struct {
	name  string
	value any
}

// Assign returns an Assignment of value to name.
func Assign(name string, value any) Assignment {
	return Assignment{name: name, value: value}
}

// New creates an instance. Assignments are applied in order through the full
// write pipeline while the instance is still constructing, so ReadOnly
// members accept them and static observers see them.
func (t *Type) New(assign ...Assignment) (*Instance, error) {
	inst := &Instance{
		typ:          t,
		id:           t.ids.Generate(),
		slots:        make([]slot, len(t.members)),
		constructing: true,
		notify:       true,
	}
	if t.dynamicAttrs {
		inst.dynamic = ordmap.NewOrdered[string, any]()
	}
	for _, a := range assign {
		if err := inst.Set(a.name, a.value); err != nil {
			return nil, err
		}
	}
	if t.eagerDefaults {
		for _, m := range t.members {
			if m.getattr != GetattrSlot || m.def.mode == DefaultNonOptional || inst.slots[m.index].set {
				continue
			}
			if _, err := inst.loadSlot(m); err != nil {
				return nil, err
			}
		}
	}
	inst.constructing = false
	return inst, nil
}

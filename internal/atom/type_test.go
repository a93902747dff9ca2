package atom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/catom/internal/atomerr"
	"github.com/roach88/catom/internal/change"
	"github.com/roach88/catom/internal/typeset"
)

type seqIDs struct{ n int }

func (g *seqIDs) Generate() string {
	g.n++
	return "inst-" + string(rune('0'+g.n))
}

func personType(t *testing.T, opts ...TypeOption) *Type {
	t.Helper()
	base := []TypeOption{
		Field("name", Str()),
		Field("age", Int()),
		Field("tags", List(Int())),
		WithIDGenerator(&seqIDs{}),
	}
	typ, err := NewType("Person", append(base, opts...)...)
	require.NoError(t, err)
	return typ
}

func TestNewType_AssignsContiguousSlots(t *testing.T) {
	typ := personType(t)

	assert.Equal(t, 3, typ.NumSlots())
	for i, m := range typ.Members() {
		assert.Equal(t, i, m.Index())
	}
	m, ok := typ.Member("age")
	require.True(t, ok)
	assert.Equal(t, 1, m.Index())
	assert.Equal(t, "Int", m.Kind())
	assert.Equal(t, []string{"age", "name", "tags"}, typ.MemberNames())
}

func TestNewType_SubtypeKeepsParentSlots(t *testing.T) {
	parent := personType(t)
	child, err := NewType("Employee",
		Extends(parent),
		Field("salary", Float()),
		Field("age", Range(Bound(18), nil)),
	)
	require.NoError(t, err)

	require.GreaterOrEqual(t, child.NumSlots(), parent.NumSlots())
	for i, pm := range parent.Members() {
		cm := child.Members()[i]
		assert.Equal(t, pm.Name(), cm.Name())
		assert.Equal(t, pm.Index(), cm.Index())
	}

	age, _ := child.Member("age")
	assert.Equal(t, 1, age.Index())
	assert.Equal(t, "Range", age.Kind())
	salary, _ := child.Member("salary")
	assert.Equal(t, 3, salary.Index())
	assert.True(t, child.IsSubtypeOf(parent))
	assert.False(t, parent.IsSubtypeOf(child))
	assert.Equal(t, "Employee(Person)", child.String())

	parentAge, _ := parent.Member("age")
	assert.Equal(t, "Int", parentAge.Kind(), "parent is not modified")
}

func TestNewType_OverrideMustNarrow(t *testing.T) {
	parent := personType(t)

	_, err := NewType("Bad", Extends(parent), Field("age", Str()))
	require.Error(t, err)
	assert.True(t, atomerr.IsSchemaError(err))
	assert.Contains(t, err.Error(), "Bad.age")

	_, err = NewType("Wider", Extends(parent), Field("age", Value()))
	assert.True(t, atomerr.IsSchemaError(err))

	_, err = NewType("Nullable", Extends(parent), Field("age", Int(Nillable())))
	assert.True(t, atomerr.IsSchemaError(err), "adding nil widens the constraint")
}

func TestNewType_OverrideMustNarrowKindDetails(t *testing.T) {
	base, err := NewType("Base",
		Field("tags", List(Int())),
		Field("any_items", List(nil)),
		Field("roles", Set(Str())),
		Field("scores", Dict(Str(), Int())),
		Field("level", Range(Bound(0), Bound(10))),
		Field("color", Enum([]any{"red", "blue"})),
		Field("hook", Callable()),
	)
	require.NoError(t, err)

	tests := []struct {
		name   string
		field  string
		member *Member
		ok     bool
	}{
		{"list item widened", "tags", List(Str()), false},
		{"list item dropped", "tags", List(nil), false},
		{"list same item", "tags", List(Int()), true},
		{"list item narrowed", "tags", List(Range(Bound(0), nil)), true},
		{"untyped list narrowed", "any_items", List(Str()), true},
		{"set item widened", "roles", Set(Int()), false},
		{"list replaces set", "roles", List(Str()), false},
		{"dict key widened", "scores", Dict(Int(), Int()), false},
		{"dict value widened", "scores", Dict(Str(), Value()), false},
		{"dict narrowed", "scores", Dict(Str(), Range(Bound(0), nil)), true},
		{"range unbounded", "level", Range(nil, nil), false},
		{"range low widened", "level", Range(Bound(-1), Bound(10)), false},
		{"range high widened", "level", Range(Bound(0), Bound(11)), false},
		{"int replaces range", "level", Int(), false},
		{"range narrowed", "level", Range(Bound(2), Bound(8)), true},
		{"value replaces enum", "color", Value(), false},
		{"enum gains item", "color", Enum([]any{"red", "green"}), false},
		{"enum subset", "color", Enum([]any{"blue"}), true},
		{"value replaces callable", "hook", Value(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewType("Child", Extends(base), Field(tt.field, tt.member))
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, atomerr.IsSchemaError(err))
			assert.Contains(t, err.Error(), "Child."+tt.field)
		})
	}
}

func TestNewType_DuplicateMember(t *testing.T) {
	_, err := NewType("Dup", Field("x", Int()), Field("x", Int()))
	require.Error(t, err)
	assert.True(t, atomerr.IsSchemaError(err))
}

func TestNewType_RejectsMalformedDefaults(t *testing.T) {
	tests := []struct {
		name string
		opts []TypeOption
	}{
		{"static default fails validation", []TypeOption{Field("x", Int(WithDefault(DefaultValue("nope"))))}},
		{"delegate to unknown member", []TypeOption{Field("x", Int(WithDefault(DefaultFrom("missing"))))}},
		{"delegate cycle", []TypeOption{
			Field("a", Int(WithDefault(DefaultFrom("b")))),
			Field("b", Int(WithDefault(DefaultFrom("a")))),
		}},
		{"missing default method", []TypeOption{Field("x", Int(WithDefault(DefaultMethod("nope"))))}},
		{"wrong method signature", []TypeOption{
			Method("make", func() int { return 1 }),
			Field("x", Int(WithDefault(DefaultMethod("make")))),
		}},
		{"nil factory", []TypeOption{Field("x", Int(WithDefault(DefaultFactory(nil))))}},
		{"nullable typed with value default", []TypeOption{
			Field("x", Typed(typeset.Nullable(typeset.TypeOf[int]()), WithDefault(DefaultValue(3)))),
		}},
		{"non-nullable typed with default", []TypeOption{
			Field("x", Typed(typeset.Of(typeset.TypeOf[int]()), WithDefault(DefaultValue(3)))),
		}},
		{"reset default without default", []TypeOption{
			Field("x", Typed(typeset.Of(typeset.TypeOf[int]()), WithDelattr(DelattrResetDefault))),
		}},
		{"empty enum", []TypeOption{Field("x", Enum(nil))}},
		{"inverted range", []TypeOption{Field("x", Range(Bound(5), Bound(1)))}},
		{"coerced without coercer", []TypeOption{Field("x", Coerced(typeset.Of(typeset.TypeOf[int]()), nil))}},
		{"observer on unknown member", []TypeOption{Observe("nope", change.ObserverFunc(func(change.Record) error { return nil }))}},
		{"post-setattr method missing", []TypeOption{Field("x", Int(WithPostSetattrMethod("gone")))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewType("T", tt.opts...)
			require.Error(t, err)
			assert.True(t, atomerr.IsSchemaError(err), "got %v", err)
		})
	}
}

func TestNewType_NullableTypedAcceptsNilDefault(t *testing.T) {
	typ, err := NewType("T",
		Field("x", Typed(typeset.Nullable(typeset.TypeOf[int]()), WithDefault(DefaultValue(nil)))),
	)
	require.NoError(t, err)

	inst, err := typ.New()
	require.NoError(t, err)
	v, err := inst.Get("x")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestNewType_InheritsMethodsAndPolicies(t *testing.T) {
	parent, err := NewType("Base",
		Method("seed", func(*Instance) (any, error) { return 7, nil }),
		Field("x", Int(WithDefault(DefaultMethod("seed")))),
		WithDynamicAttributes(true),
	)
	require.NoError(t, err)

	child, err := NewType("Child", Extends(parent),
		Method("seed", func(*Instance) (any, error) { return 8, nil }),
	)
	require.NoError(t, err)
	assert.True(t, child.DynamicAttributes())
	assert.Equal(t, []string{"seed"}, child.MethodNames())

	inst, err := child.New()
	require.NoError(t, err)
	v, err := inst.Get("x")
	require.NoError(t, err)
	assert.Equal(t, 8, v, "subtype method overrides the base method")
}

func TestNewType_OverrideKeepsStaticObservers(t *testing.T) {
	var seen []string
	parent, err := NewType("Base",
		Field("x", Int()),
		Observe("x", change.ObserverFunc(func(rec change.Record) error {
			seen = append(seen, "base:"+rec.Type)
			return nil
		})),
	)
	require.NoError(t, err)

	child, err := NewType("Child", Extends(parent),
		Field("x", Int(WithDefault(DefaultValue(1)))),
		Observe("x", change.ObserverFunc(func(rec change.Record) error {
			seen = append(seen, "child:"+rec.Type)
			return nil
		})),
	)
	require.NoError(t, err)

	inst, err := child.New()
	require.NoError(t, err)
	require.NoError(t, inst.Set("x", 5))
	assert.Equal(t, []string{"base:Child", "child:Child"}, seen)

	pm, _ := parent.Member("x")
	assert.Equal(t, 1, pm.StaticObservers(), "parent member is not modified")
}

func TestRegistry_Define(t *testing.T) {
	r := NewRegistry()

	_, err := r.Define("A", Field("x", Int()))
	require.NoError(t, err)

	_, err = r.Define("A")
	assert.True(t, atomerr.IsSchemaError(err))

	_, err = r.Define("B", Field("x", Int()), Field("x", Str()))
	require.Error(t, err)
	_, ok := r.Lookup("B")
	assert.False(t, ok, "failed definitions are not registered")

	_, err = r.Resolve("C")
	assert.True(t, atomerr.IsLookupError(err))

	b, err := NewType("B")
	require.NoError(t, err)
	require.NoError(t, r.Register(b))
	assert.Equal(t, 2, r.Len())
	names := []string{}
	for _, typ := range r.Types() {
		names = append(names, typ.Name())
	}
	assert.Equal(t, []string{"A", "B"}, names)
}

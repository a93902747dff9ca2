package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/catom/internal/atom"
	"github.com/roach88/catom/internal/atomerr"
	"github.com/roach88/catom/internal/testutil"
)

const personSchema = `
types: Employee: {
	@extends(Person)
	salary: number
}
types: Person: {
	// Given name.
	first_name:  string
	middle_name: *null | string
	age:         int @member(range, low=0)
	debug:       *false | bool
	tags:        [...string]
}
`

func compile(t *testing.T, src string, opts ...Option) *atom.Registry {
	t.Helper()
	reg, err := CompileString(src, "schema.cue", opts...)
	require.NoError(t, err)
	return reg
}

func TestCompileTypes_Person(t *testing.T) {
	reg := compile(t, personSchema)

	person, err := reg.Resolve("Person")
	require.NoError(t, err)

	var names, kinds []string
	for _, m := range person.Members() {
		names = append(names, m.Name())
		kinds = append(kinds, m.Kind())
	}
	assert.Equal(t, []string{"first_name", "middle_name", "age", "debug", "tags"}, names)
	assert.Equal(t, []string{"Str", "Str", "Range", "Bool", "List"}, kinds)

	first, _ := person.Member("first_name")
	doc, ok := first.Metadata("doc")
	require.True(t, ok)
	assert.Equal(t, "Given name.", doc)

	middle, _ := person.Member("middle_name")
	assert.True(t, middle.Constraint().IsNullable())

	inst, err := person.New()
	require.NoError(t, err)
	for name, want := range map[string]any{"first_name": "", "middle_name": nil, "age": 0, "debug": false} {
		got, err := inst.Get(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}

	err = inst.Set("age", -1)
	assert.True(t, atomerr.IsValidationError(err))
	require.NoError(t, inst.Set("middle_name", "Q"))

	tags, err := inst.List("tags")
	require.NoError(t, err)
	require.NoError(t, tags.Append("go"))
	assert.Error(t, tags.Append(3))
}

func TestCompileTypes_ExtendsDefinesBaseFirst(t *testing.T) {
	reg := compile(t, personSchema)

	employee, err := reg.Resolve("Employee")
	require.NoError(t, err)
	person, _ := reg.Lookup("Person")
	assert.True(t, employee.IsSubtypeOf(person))
	assert.Equal(t, person.NumSlots()+1, employee.NumSlots())

	salary, _ := employee.Member("salary")
	assert.Equal(t, "Float", salary.Kind())
	assert.Equal(t, person.NumSlots(), salary.Index())
}

func TestCompileTypes_Attributes(t *testing.T) {
	reg := compile(t, `
types: T: {
	id:      string @member(readonly)
	version: 3 @member(constant)
	ref:     _ @member(eq=identity)
	keep:    *1 | int @member(delete=forbid)
	reset:   *5 | int @member(delete=default)
	exact:   *1.0 | number @member(strict)
	owner:   string @member(required)
	flags:   [...string] @member(set)
	color:   string @member(enum=red|green|blue)
	size:    "s" | "m" | "l" @member(enum)
	scores:  {[string]: int}
	id2:     int | string
}
`)
	typ, err := reg.Resolve("T")
	require.NoError(t, err)

	modes := func(name string) *atom.Member {
		m, ok := typ.Member(name)
		require.True(t, ok, name)
		return m
	}
	assert.Equal(t, atom.SetattrReadOnly, modes("id").SetattrMode())
	assert.Equal(t, atom.SetattrConstant, modes("version").SetattrMode())
	assert.Equal(t, atom.EqualIdentity, modes("ref").Equality())
	assert.Equal(t, atom.DelattrForbidden, modes("keep").DelattrMode())
	assert.Equal(t, atom.DelattrResetDefault, modes("reset").DelattrMode())
	assert.Equal(t, atom.DefaultNonOptional, modes("owner").DefaultMode())
	assert.Equal(t, "Set", modes("flags").Kind())
	assert.Equal(t, "Enum", modes("color").Kind())
	assert.Equal(t, "Enum", modes("size").Kind())
	assert.Equal(t, "Dict", modes("scores").Kind())
	assert.Equal(t, "Typed", modes("id2").Kind())

	inst, err := typ.New(atom.Assign("id", "abc"))
	require.NoError(t, err)

	assert.True(t, atomerr.IsAccessError(inst.Set("id", "other")))
	v, err := inst.Get("version")
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = inst.Get("owner")
	assert.True(t, atomerr.IsAccessError(err))

	assert.True(t, atomerr.IsValidationError(inst.Set("exact", 2)), "strict floats refuse ints")
	require.NoError(t, inst.Set("exact", 2.5))

	color, err := inst.Get("color")
	require.NoError(t, err)
	assert.Equal(t, "red", color)
	assert.Error(t, inst.Set("color", "purple"))
	size, err := inst.Get("size")
	require.NoError(t, err)
	assert.Equal(t, "s", size)

	require.NoError(t, inst.Set("reset", 9))
	require.NoError(t, inst.Delete("reset"))
	reset, _ := inst.Get("reset")
	assert.Equal(t, 5, reset)

	scores, err := inst.Dict("scores")
	require.NoError(t, err)
	require.NoError(t, scores.Set("a", 1))
	assert.Error(t, scores.Set("b", "x"))

	require.NoError(t, inst.Set("id2", "s"))
	require.NoError(t, inst.Set("id2", 4))
	assert.Error(t, inst.Set("id2", true))
}

func TestCompileTypes_TypeFlags(t *testing.T) {
	reg := compile(t, `
types: Bag: {
	@type(eager, dynamic)
	n: *1 | int
}
`)
	bag, err := reg.Resolve("Bag")
	require.NoError(t, err)
	assert.True(t, bag.EagerDefaults())
	assert.True(t, bag.DynamicAttributes())

	inst, err := bag.New()
	require.NoError(t, err)
	assert.True(t, inst.IsSet("n"))
}

func TestCompileTypes_Errors(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		substr string
	}{
		{"no types", `other: 1`, "no types declared"},
		{"not a struct", `types: T: 5`, "must be a struct"},
		{"unknown base", `types: T: { @extends(Missing) }`, `unknown base type "Missing"`},
		{"extends cycle", `
types: A: { @extends(B) }
types: B: { @extends(A) }
`, "cycle"},
		{"unknown flag", `types: T: { x: int @member(loud) }`, `unknown flag "loud"`},
		{"bad bound", `types: T: { x: int @member(low=ten) }`, "not an integer"},
		{"bad equality", `types: T: { x: int @member(eq=fuzzy) }`, "unknown equality"},
		{"constant without value", `types: T: { x: int @member(constant) }`, "constant needs"},
		{"range on string", `types: T: { x: string @member(range) }`, "range needs an int"},
		{"set on scalar", `types: T: { x: int @member(set) }`, "set needs a list"},
		{"unknown type flag", `types: T: { @type(fast) }`, `unknown @type flag "fast"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileString(tt.src, "bad.cue")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.substr)
			var ce *CompileError
			assert.True(t, errors.As(err, &ce), "got %T", err)
		})
	}
}

func TestCompileTypes_MemberErrorNamesField(t *testing.T) {
	_, err := CompileString(`types: T: { x: int @member(loud) }`, "bad.cue")
	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "types.T.x", ce.Field)
	assert.True(t, ce.Pos.IsValid())
	assert.Equal(t, "bad.cue", ce.Pos.Filename())
}

func TestCompileTypes_SchemaErrorsSurface(t *testing.T) {
	_, err := CompileString(`
types: Base: { x: int }
types: Child: {
	@extends(Base)
	x: string
}
`, "narrow.cue")
	require.Error(t, err)
	assert.True(t, atomerr.IsSchemaError(err))
	assert.Contains(t, err.Error(), "types.Child")
}

func TestCompileString_SyntaxError(t *testing.T) {
	_, err := CompileString("types: T: {", "broken.cue")
	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "cue", ce.Field)
}

func TestCompileTypes_Options(t *testing.T) {
	reg := atom.NewRegistry()
	_, err := CompileString(`types: P: { n: int }`, "p.cue",
		WithRegistry(reg),
		WithTypeOptions(atom.WithIDGenerator(testutil.NewSequentialIDs("p"))),
	)
	require.NoError(t, err)

	p, ok := reg.Lookup("P")
	require.True(t, ok)
	inst, err := p.New()
	require.NoError(t, err)
	assert.Equal(t, "p-1", inst.ID())
}

func TestCompileFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.cue")
	require.NoError(t, os.WriteFile(path, []byte(personSchema), 0o644))

	reg, err := CompileFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	pkg := filepath.Join(dir, "pkg")
	require.NoError(t, os.Mkdir(pkg, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "schema.cue"), []byte("package schema\n"+personSchema), 0o644))
	reg, err = CompileFile(pkg)
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	_, err = CompileFile(filepath.Join(dir, "missing.cue"))
	assert.Error(t, err)
}

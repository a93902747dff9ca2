package typeset

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	intType    = TypeOf[int]()
	stringType = TypeOf[string]()
	floatType  = TypeOf[float64]()
)

type named struct{ name string }

func (n named) String() string { return n.name }

func TestConstraint_Accepts(t *testing.T) {
	tests := []struct {
		name string
		c    Constraint
		v    any
		want bool
	}{
		{"exact type", Of(intType), 3, true},
		{"wrong type", Of(intType), "3", false},
		{"no implicit widening", Of(intType), int64(3), false},
		{"nil rejected", Of(intType), nil, false},
		{"nil accepted when nullable", Nullable(intType), nil, true},
		{"union", Of(intType, stringType), "x", true},
		{"interface", Of(TypeOf[fmt.Stringer]()), named{"a"}, true},
		{"interface miss", Of(TypeOf[fmt.Stringer]()), 1, false},
		{"any accepts nil", Any(), nil, true},
		{"any accepts value", Any(), []int{1}, true},
		{"empty set", Of(), 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.Accepts(tt.v))
		})
	}
}

func TestConstraint_Check(t *testing.T) {
	err := Of(intType).Check("x")
	require.Error(t, err)

	var mismatch *MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "expected int, got string", err.Error())
	assert.NoError(t, Of(intType).Check(1))
}

func TestFromTuple_ExtractsNullable(t *testing.T) {
	c := FromTuple(intType, nil, stringType, intType)

	assert.True(t, c.IsNullable())
	assert.Equal(t, []reflect.Type{intType, stringType}, c.Types(), "duplicates dropped, order kept")
	assert.Equal(t, "int | string | nil", c.String())

	plain := FromTuple(intType)
	assert.False(t, plain.IsNullable())
}

func TestConstraint_Narrows(t *testing.T) {
	stringer := TypeOf[fmt.Stringer]()
	namedType := TypeOf[named]()

	tests := []struct {
		name   string
		child  Constraint
		parent Constraint
		want   bool
	}{
		{"identical", Of(intType), Of(intType), true},
		{"subset of union", Of(intType), Of(intType, stringType), true},
		{"superset", Of(intType, stringType), Of(intType), false},
		{"anything narrows any", Of(floatType), Any(), true},
		{"any does not narrow bounded", Any(), Of(intType), false},
		{"nullable child needs nullable parent", Nullable(intType), Of(intType), false},
		{"non-nullable narrows nullable", Of(intType), Nullable(intType), true},
		{"concrete narrows interface", Of(namedType), Of(stringer), true},
		{"interface does not narrow concrete", Of(stringer), Of(namedType), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.child.Narrows(tt.parent))
		})
	}
}

func TestConstraint_String(t *testing.T) {
	assert.Equal(t, "any", Any().String())
	assert.Equal(t, "never", Of().String())
	assert.Equal(t, "nil", Nullable().String())
	assert.Equal(t, "float64", Of(floatType).String())
}

func TestConstraint_WithNullableCopies(t *testing.T) {
	base := Of(intType)
	opt := base.WithNullable(true)

	assert.False(t, base.IsNullable())
	assert.True(t, opt.IsNullable())
	assert.True(t, Any().WithNullable(false).IsAny())
}

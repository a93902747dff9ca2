// Package typeset models the type constraint attached to a member: a tuple of
// acceptable Go types plus a nullable flag.
//
// A Constraint is what the schema producer hands to member construction. The
// engine never inspects raw type syntax; it only asks a Constraint whether a
// value is acceptable and whether one constraint narrows another (used to
// validate member overrides in subtypes).
//
// Matching rules:
//   - nil is accepted only by nullable (or unconstrained) Constraints
//   - a concrete type matches values of exactly that dynamic type
//   - an interface type matches any value whose dynamic type implements it
package typeset

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// Constraint is an immutable set of acceptable types.
// The zero value accepts anything (equivalent to Any).
type Constraint struct {
	types    []reflect.Type
	nullable bool
	bounded  bool
}

// Any returns the unconstrained Constraint.
func Any() Constraint {
	return Constraint{}
}

// Of returns a non-nullable Constraint over the given types.
func Of(types ...reflect.Type) Constraint {
	return build(false, types)
}

// Nullable returns a nullable Constraint over the given types.
func Nullable(types ...reflect.Type) Constraint {
	return build(true, types)
}

// FromTuple builds a Constraint from a producer tuple. A nil entry in types
// stands for the "none" type and marks the Constraint nullable, mirroring
// optional type hints.
func FromTuple(types ...reflect.Type) Constraint {
	nullable := false
	concrete := make([]reflect.Type, 0, len(types))
	for _, t := range types {
		if t == nil {
			nullable = true
			continue
		}
		concrete = append(concrete, t)
	}
	return build(nullable, concrete)
}

// TypeOf returns the reflect.Type for T, including interface types.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

func build(nullable bool, types []reflect.Type) Constraint {
	seen := make([]reflect.Type, 0, len(types))
	for _, t := range types {
		if t == nil || slices.Contains(seen, t) {
			continue
		}
		seen = append(seen, t)
	}
	return Constraint{types: seen, nullable: nullable, bounded: true}
}

// IsAny reports whether the Constraint accepts every value.
func (c Constraint) IsAny() bool {
	return !c.bounded
}

// IsNullable reports whether nil is accepted.
func (c Constraint) IsNullable() bool {
	return !c.bounded || c.nullable
}

// Types returns a copy of the acceptable types.
func (c Constraint) Types() []reflect.Type {
	return slices.Clone(c.types)
}

// WithNullable returns a copy with the nullable flag set.
func (c Constraint) WithNullable(nullable bool) Constraint {
	if !c.bounded {
		return c
	}
	c.types = slices.Clone(c.types)
	c.nullable = nullable
	return c
}

// Accepts reports whether v satisfies the Constraint.
func (c Constraint) Accepts(v any) bool {
	if !c.bounded {
		return true
	}
	if v == nil {
		return c.nullable
	}
	rt := reflect.TypeOf(v)
	for _, t := range c.types {
		if matches(rt, t) {
			return true
		}
	}
	return false
}

// Check returns a *MismatchError when v does not satisfy the Constraint.
func (c Constraint) Check(v any) error {
	if c.Accepts(v) {
		return nil
	}
	return &MismatchError{Want: c, Got: v}
}

// Narrows reports whether every value accepted by c is also accepted by
// parent. A subtype may only override a member with a narrowing Constraint.
func (c Constraint) Narrows(parent Constraint) bool {
	if !parent.bounded {
		return true
	}
	if !c.bounded {
		return false
	}
	if c.nullable && !parent.nullable {
		return false
	}
	for _, t := range c.types {
		covered := false
		for _, p := range parent.types {
			if t == p || (p.Kind() == reflect.Interface && t.Implements(p)) {
				covered = true
				break
			}
		}
		if !covered {
			return false
		}
	}
	return true
}

// String renders the Constraint as a union, e.g. "int | string | nil".
func (c Constraint) String() string {
	if !c.bounded {
		return "any"
	}
	parts := make([]string, 0, len(c.types)+1)
	for _, t := range c.types {
		parts = append(parts, t.String())
	}
	if c.nullable {
		parts = append(parts, "nil")
	}
	if len(parts) == 0 {
		return "never"
	}
	return strings.Join(parts, " | ")
}

func matches(rt, t reflect.Type) bool {
	if rt == t {
		return true
	}
	return t.Kind() == reflect.Interface && rt.Implements(t)
}

// MismatchError reports a value outside a Constraint.
type MismatchError struct {
	Want Constraint
	Got  any
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("expected %s, got %s", e.Want, Describe(e.Got))
}

// Describe renders the dynamic type of v for error messages.
func Describe(v any) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}

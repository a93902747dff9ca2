// Package compiler turns CUE schema files into atom entity types.
//
// A schema declares types under the top-level "types" struct. Each field of
// a type becomes a member in declaration order, so slot indices follow the
// source:
//
//	types: Person: {
//		name:   string
//		middle: *null | string
//		age:    int @member(range, low=0)
//		tags:   [...string]
//	}
//	types: Employee: {
//		@extends(Person)
//		salary: number
//	}
//
// CUE kinds pick the member kind (string, int, number, bool, bytes, lists,
// pattern structs and top). A null disjunct makes the member nullable and a
// marked or concrete value becomes its static default. The @member field
// attribute selects behaviour:
//
//	readonly            settable only while constructing
//	constant            value fixed to the default
//	required            no default; reading before a write fails
//	strict              no implicit conversions
//	set                 a list field becomes a Set
//	enum[=a|b]          restrict to the listed items or to the disjuncts
//	range, low=, high=  integer bounds
//	eq=value|identity|always
//	delete=slot|forbid|default
//
// The @type declaration attribute accepts "eager" and "dynamic", and
// @extends(Base) makes the type a subtype of Base.
package compiler

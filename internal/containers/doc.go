// Package containers provides change-tracked List, Dict and Set values.
//
// A tracked container is bound at construction to an Owner and an attribute
// name. Every mutating method first asks an owner that implements WriteGuard
// whether the attribute may change, then runs three steps, in order:
//
//  1. validate the incoming item(s) with the configured Check functions,
//     returning a VALIDATION error without touching the container
//  2. apply the mutation
//  3. build a change.Container record describing the operation as a diff and
//     hand it to Owner.Notify
//
// Bulk calls that leave the contents as they were (Clear on an empty
// container, Extend or Update adding nothing, a Sort or Reverse that moves
// nothing) emit no record, the same as adding an item a Set already holds.
//
// Read-only methods (Len, At, Get, Contains, Items, All) never validate and
// never notify. A container without an owner behaves the same minus step 3.
//
// Dict and Set preserve insertion order; their keys and items must be
// comparable Go values.
package containers

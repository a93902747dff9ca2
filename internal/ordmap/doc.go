// Package ordmap provides a generic ordered associative container.
//
// Map is an AVL tree keyed by any type with a three-way comparator. All
// point operations (Insert, Find, Remove) are O(log n); full in-order
// iteration is O(n) and always yields keys in strictly ascending order.
//
// # Iteration Guard
//
// Mutating a Map while one of its iterators is running is a programming
// error. Insert, Remove and Clear panic with ErrMutationDuringIteration when
// called from inside a range over All, Backward, Ascend or Range. Callers
// that need to mutate while walking take a Snapshot first.
//
// # Concurrency
//
// Map has no internal locking. It follows the single-threaded model of the
// attribute engine that uses it: callers sharing a Map across goroutines must
// synchronize externally.
package ordmap

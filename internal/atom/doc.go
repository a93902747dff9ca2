// Package atom implements the typed attribute engine: entity types built
// from Members, instances holding one storage slot per Member, the behavior
// pipeline run on every attribute access, and the observer pool that
// receives change records.
//
// # Pipeline
//
// Every Member carries one behavior mode per stage. Reads run
//
//	getattr -> (default, validate, post-validate on an unset slot) -> post-getattr
//
// and writes run
//
//	validate -> post-validate -> equality check -> store -> post-setattr -> notify
//
// Validation always completes before storage is touched, and storage is
// always updated before observers run. A failed validation leaves the slot
// exactly as it was.
//
// # Slot Layout
//
// A Type flattens its base's Members and its own declarations into a single
// slot table at NewType time. Overridden Members keep the inherited slot
// index; new Members append. Instances never resize.
//
// # Observers
//
// Static observers are declared on the Type and run first, in declaration
// order. Dynamic observers are registered per instance and run next, in
// registration order. Dispatch is synchronous and depth-first: a change made
// from inside an observer is fully dispatched before the outer observer
// continues. An observer error stops dispatch and is returned to the caller
// that made the change.
//
// Handles created with Bind hold only a weak reference to their owner. Once
// the owner has been collected the handle is skipped and pruned after the
// current dispatch.
//
// # Concurrency
//
// Instances are not safe for concurrent use. The engine assumes one goroutine
// at a time works with an instance and everything reachable from it.
package atom

// Package harness runs YAML scenarios against compiled atom types.
//
// A scenario names a CUE schema and a type, constructs one instance, and
// drives it through set, get, delete, observe, unobserve and container
// steps. Every change notification is captured in a trace with a
// deterministic sequence number, so a run can be compared byte for byte
// against a golden file:
//
//	name: person_basics
//	schema: schema/person.cue
//	type: Person
//	init: {name: Ada}
//	steps:
//	  - set: age
//	    value: 36
//	  - set: age
//	    value: -1
//	    error: VALIDATION
//	assertions:
//	  - type: trace_count
//	    member: age
//	    count: 1
//
// Watchers registered by observe steps record under their own name and may
// run a nested step each time they fire, which exercises re-entrant
// dispatch.
package harness

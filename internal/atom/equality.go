package atom

import (
	"reflect"

	"github.com/roach88/catom/internal/containers"
)

// unchanged reports whether storing newValue over oldValue is a no-op under
// the member's equality policy.
func (m *Member) unchanged(oldValue, newValue any) bool {
	switch m.equality {
	case AlwaysNotify:
		return false
	case EqualIdentity:
		return identical(oldValue, newValue)
	}
	return equalValues(oldValue, newValue)
}

func equalValues(a, b any) bool {
	sa, okA := a.(containers.Snapshotter)
	sb, okB := b.(containers.Snapshotter)
	if okA && okB {
		return reflect.TypeOf(a) == reflect.TypeOf(b) && reflect.DeepEqual(sa.Snapshot(), sb.Snapshot())
	}
	return reflect.DeepEqual(a, b)
}

func identical(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}
	if va.Type().Comparable() {
		return a == b
	}
	return false
}

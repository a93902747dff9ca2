package atom

import (
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/catom/internal/atomerr"
	"github.com/roach88/catom/internal/change"
)

func pointType(t *testing.T, opts ...TypeOption) *Type {
	t.Helper()
	typ, err := NewType("Point", append([]TypeOption{Field("x", Int()), Field("y", Int())}, opts...)...)
	require.NoError(t, err)
	return typ
}

func TestObserve_DuplicateHandleFiresOnce(t *testing.T) {
	inst, err := pointType(t).New()
	require.NoError(t, err)

	calls := 0
	h := Func(func(change.Record) error {
		calls++
		return nil
	})
	ok, err := inst.Observe("x", h)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = inst.Observe("x", h)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, inst.Set("x", 1))
	require.NoError(t, inst.Set("x", 2))
	assert.Equal(t, 2, calls)
}

func TestObserve_UnknownMember(t *testing.T) {
	inst, err := pointType(t).New()
	require.NoError(t, err)

	_, err = inst.Observe("z", Func(func(change.Record) error { return nil }))
	assert.True(t, atomerr.IsLookupError(err))
	_, err = inst.Observe("x", nil)
	assert.Error(t, err)
}

func TestObserve_RegistrationOrder(t *testing.T) {
	var order []string
	typ := pointType(t,
		Observe("x", change.ObserverFunc(func(change.Record) error {
			order = append(order, "static")
			return nil
		})),
	)
	inst, err := typ.New()
	require.NoError(t, err)

	for _, name := range []string{"first", "second", "third"} {
		_, err := inst.Observe("x", Func(func(change.Record) error {
			order = append(order, name)
			return nil
		}))
		require.NoError(t, err)
	}

	require.NoError(t, inst.Set("x", 1))
	assert.Equal(t, []string{"static", "first", "second", "third"}, order)
}

func TestObserve_ReentrantDispatchIsDepthFirst(t *testing.T) {
	inst, err := pointType(t).New()
	require.NoError(t, err)

	var order []string
	_, err = inst.Observe("x", Func(func(rec change.Record) error {
		order = append(order, "A start")
		if err := inst.Set("y", rec.NewValue.(int)*10); err != nil {
			return err
		}
		order = append(order, "A end")
		return nil
	}))
	require.NoError(t, err)
	_, err = inst.Observe("x", Func(func(change.Record) error {
		order = append(order, "B")
		return nil
	}))
	require.NoError(t, err)
	for _, name := range []string{"Y1", "Y2"} {
		_, err = inst.Observe("y", Func(func(rec change.Record) error {
			order = append(order, name)
			return nil
		}))
		require.NoError(t, err)
	}

	require.NoError(t, inst.Set("x", 2))
	assert.Equal(t, []string{"A start", "Y1", "Y2", "A end", "B"}, order)
	y, _ := inst.Get("y")
	assert.Equal(t, 20, y)
}

func TestObserve_ErrorStopsDispatch(t *testing.T) {
	inst, err := pointType(t).New()
	require.NoError(t, err)

	boom := errors.New("observer failed")
	var order []string
	for _, name := range []string{"one", "two", "three"} {
		_, err := inst.Observe("x", Func(func(change.Record) error {
			order = append(order, name)
			if name == "two" {
				return boom
			}
			return nil
		}))
		require.NoError(t, err)
	}

	err = inst.Set("x", 5)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"one", "two"}, order)

	v, _ := inst.Get("x")
	assert.Equal(t, 5, v, "storage is updated before observers run")
}

func TestObserve_RegistrationDuringDispatch(t *testing.T) {
	inst, err := pointType(t).New()
	require.NoError(t, err)

	late := 0
	lateHandle := Func(func(change.Record) error {
		late++
		return nil
	})
	var self *Handle
	self = Func(func(change.Record) error {
		inst.Unobserve("x", self)
		_, err := inst.Observe("x", lateHandle)
		return err
	})
	_, err = inst.Observe("x", self)
	require.NoError(t, err)

	require.NoError(t, inst.Set("x", 1))
	assert.Equal(t, 0, late, "handles added during dispatch wait for the next change")
	assert.False(t, inst.HasObserver("x", self))

	require.NoError(t, inst.Set("x", 2))
	assert.Equal(t, 1, late)
}

func TestObserve_KindFilter(t *testing.T) {
	inst, err := pointType(t).New()
	require.NoError(t, err)

	var kinds []change.Kind
	_, err = inst.Observe("x", Func(func(rec change.Record) error {
		kinds = append(kinds, rec.Kind)
		return nil
	}).Only(change.Update|change.Delete))
	require.NoError(t, err)

	require.NoError(t, inst.Set("x", 1))
	require.NoError(t, inst.Set("x", 2))
	require.NoError(t, inst.Delete("x"))
	assert.Equal(t, []change.Kind{change.Update, change.Delete}, kinds)
}

func TestObserve_StaticMethodObserver(t *testing.T) {
	var got []string
	typ := pointType(t,
		Method("onX", func(inst *Instance, rec change.Record) error {
			got = append(got, rec.String())
			return nil
		}),
		ObserveMethod("x", "onX"),
	)
	inst, err := typ.New()
	require.NoError(t, err)

	require.NoError(t, inst.Set("x", 3))
	assert.Equal(t, []string{"Point.x create old=<nil> new=3"}, got)
	assert.True(t, inst.HasObservers("x"))
	assert.False(t, inst.HasObservers("y"))

	_, err = NewType("Bad", Field("x", Int()), Method("onX", func() {}), ObserveMethod("x", "onX"))
	assert.True(t, atomerr.IsSchemaError(err))
}

func TestObserve_UnobserveAndQueries(t *testing.T) {
	inst, err := pointType(t).New()
	require.NoError(t, err)

	h1 := Func(func(change.Record) error { return nil })
	h2 := Func(func(change.Record) error { return nil })
	_, _ = inst.Observe("x", h1)
	_, _ = inst.Observe("x", h2)
	_, _ = inst.Observe("y", h1)

	assert.True(t, inst.HasObserver("x", h1))
	assert.Equal(t, []string{"x", "y"}, inst.ObservedNames())

	assert.True(t, inst.Unobserve("x", h1))
	assert.False(t, inst.Unobserve("x", h1))
	assert.False(t, inst.HasObserver("x", h1))
	assert.True(t, inst.HasObserver("y", h1))

	assert.Equal(t, 1, inst.UnobserveAll("x"))
	assert.False(t, inst.HasObservers("x"))
	assert.Equal(t, []string{"y"}, inst.ObservedNames())
}

func TestObserve_SuppressAndDisable(t *testing.T) {
	inst, err := pointType(t).New()
	require.NoError(t, err)
	buf := record(t, inst, "x")

	err = inst.Suppress(func() error { return inst.Set("x", 1) })
	require.NoError(t, err)
	assert.True(t, inst.NotificationsEnabled())
	assert.Equal(t, 0, buf.Len())

	prev := inst.SetNotificationsEnabled(false)
	assert.True(t, prev)
	require.NoError(t, inst.Set("x", 2))
	inst.SetNotificationsEnabled(true)
	require.NoError(t, inst.Set("x", 3))

	recs := buf.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, 2, recs[0].OldValue)
}

func TestInstance_NotifyManualRecord(t *testing.T) {
	inst, err := pointType(t).New()
	require.NoError(t, err)
	buf := record(t, inst, "x")

	require.NoError(t, inst.Notify(change.Record{Name: "x", Kind: change.Update, NewValue: "manual"}))
	recs := buf.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "Point", recs[0].Type)
	assert.Same(t, inst, recs[0].Object)
}

type watcher struct {
	hits *int
	name string
}

func (w *watcher) OnChange(change.Record) error {
	*w.hits++
	return nil
}

func (w *watcher) OnOther(change.Record) error {
	return nil
}

func TestBind_SameOwnerAndMethodAreEqual(t *testing.T) {
	hits := 0
	w := &watcher{hits: &hits}
	inst, err := pointType(t).New()
	require.NoError(t, err)

	ok, err := inst.Observe("x", Bind(w, (*watcher).OnChange))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = inst.Observe("x", Bind(w, (*watcher).OnChange))
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = inst.Observe("x", Bind(w, (*watcher).OnOther))
	require.NoError(t, err)
	assert.True(t, ok, "a different method is a different handle")

	require.NoError(t, inst.Set("x", 1))
	assert.Equal(t, 1, hits)
	assert.True(t, inst.Unobserve("x", Bind(w, (*watcher).OnChange)))
	runtime.KeepAlive(w)
}

func observeTemporary(t *testing.T, inst *Instance, hits *int) {
	t.Helper()
	w := &watcher{hits: hits, name: "temporary"}
	_, err := inst.Observe("x", Bind(w, (*watcher).OnChange))
	require.NoError(t, err)
	require.NoError(t, inst.Set("x", 1))
}

func TestBind_DeadOwnerIsPrunedLazily(t *testing.T) {
	inst, err := pointType(t).New()
	require.NoError(t, err)

	hits := 0
	observeTemporary(t, inst, &hits)
	assert.Equal(t, 1, hits)
	assert.Equal(t, []string{"x"}, inst.ObservedNames())

	runtime.GC()
	runtime.GC()

	assert.False(t, inst.HasObservers("x"))
	assert.Equal(t, []string{"x"}, inst.ObservedNames(), "nothing is pruned before the next dispatch")

	require.NoError(t, inst.Set("x", 2))
	assert.Equal(t, 1, hits)
	assert.Empty(t, inst.ObservedNames())
}

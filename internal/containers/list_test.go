package containers

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/catom/internal/atomerr"
	"github.com/roach88/catom/internal/change"
)

// recorder is an Owner that keeps every record it is handed.
type recorder struct {
	change.Buffer
	fail error
}

func (r *recorder) Notify(rec change.Record) error {
	if err := r.Observe(rec); err != nil {
		return err
	}
	return r.fail
}

func intCheck(item any) (any, error) {
	if _, ok := item.(int); !ok {
		return nil, fmt.Errorf("expected int, got %T", item)
	}
	return item, nil
}

func newTrackedList(t *testing.T, items ...any) (*List, *recorder) {
	t.Helper()
	rec := &recorder{}
	l, err := NewList(items, WithOwner(rec, "tags"), WithItemCheck(intCheck))
	require.NoError(t, err)
	return l, rec
}

func TestNewList_ChecksItemsWithoutNotifying(t *testing.T) {
	rec := &recorder{}
	_, err := NewList([]any{1, "x"}, WithOwner(rec, "tags"), WithItemCheck(intCheck))
	require.Error(t, err)
	assert.True(t, atomerr.IsValidationError(err))

	l, err := NewList([]any{1, 2}, WithOwner(rec, "tags"), WithItemCheck(intCheck))
	require.NoError(t, err)
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, 0, rec.Len())
}

func TestList_AppendNotifies(t *testing.T) {
	l, rec := newTrackedList(t)

	require.NoError(t, l.Append(1))

	recs := rec.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, change.Container, recs[0].Kind)
	assert.Equal(t, "tags", recs[0].Name)
	assert.Equal(t, 1, recs[0].NewValue)
	require.NotNil(t, recs[0].Container)
	assert.Equal(t, change.OpAppend, recs[0].Container.Op)
	assert.Equal(t, 0, recs[0].Container.Index)
}

func TestList_AppendInvalidLeavesListUnchanged(t *testing.T) {
	l, rec := newTrackedList(t, 1)

	err := l.Append("x")
	require.Error(t, err)
	assert.True(t, atomerr.IsValidationError(err))
	assert.Contains(t, err.Error(), "tags")
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, 0, rec.Len())
}

func TestList_InsertClampsIndex(t *testing.T) {
	l, rec := newTrackedList(t, 1, 2)

	require.NoError(t, l.Insert(100, 3))
	require.NoError(t, l.Insert(-100, 0))
	require.NoError(t, l.Insert(-1, 9))

	assert.Equal(t, []any{0, 1, 2, 9, 3}, l.Items())
	recs := rec.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, 2, recs[0].Container.Index)
	assert.Equal(t, 0, recs[1].Container.Index)
	assert.Equal(t, 3, recs[2].Container.Index)
}

func TestList_ExtendIsAllOrNothing(t *testing.T) {
	l, rec := newTrackedList(t, 1)

	err := l.Extend(2, "bad", 3)
	require.Error(t, err)
	assert.Equal(t, []any{1}, l.Items())
	assert.Equal(t, 0, rec.Len())

	require.NoError(t, l.Extend(2, 3))
	assert.Equal(t, []any{1, 2, 3}, l.Items())
	recs := rec.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, []any{2, 3}, recs[0].NewValue)
	assert.Equal(t, 1, recs[0].Container.Index)
	assert.Equal(t, []any{2, 3}, recs[0].Container.Added)
}

func TestList_SetAndDelete(t *testing.T) {
	l, rec := newTrackedList(t, 1, 2, 3)

	require.NoError(t, l.Set(-1, 30))
	require.NoError(t, l.Delete(0))

	assert.Equal(t, []any{2, 30}, l.Items())
	recs := rec.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, 3, recs[0].OldValue)
	assert.Equal(t, 30, recs[0].NewValue)
	assert.Equal(t, 2, recs[0].Container.Index)
	assert.Equal(t, change.OpDelItem, recs[1].Container.Op)
	assert.Equal(t, 1, recs[1].OldValue)
}

func TestList_IndexOutOfRange(t *testing.T) {
	l, rec := newTrackedList(t, 1)

	_, err := l.At(5)
	assert.True(t, atomerr.IsLookupError(err))
	assert.True(t, atomerr.IsLookupError(l.Set(-2, 1)))
	assert.True(t, atomerr.IsLookupError(l.Delete(1)))
	_, err = l.Pop(3)
	assert.True(t, atomerr.IsLookupError(err))
	assert.Equal(t, 0, rec.Len())
}

func TestList_PopAndRemove(t *testing.T) {
	l, rec := newTrackedList(t, 1, 2, 3, 2)

	v, err := l.Pop(-1)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	require.NoError(t, l.Remove(2))
	assert.Equal(t, []any{1, 3}, l.Items())

	err = l.Remove(42)
	assert.True(t, atomerr.IsLookupError(err))

	recs := rec.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, change.OpPop, recs[0].Container.Op)
	assert.Equal(t, 3, recs[0].Container.Index)
	assert.Equal(t, change.OpRemove, recs[1].Container.Op)
	assert.Equal(t, 1, recs[1].Container.Index)
}

func TestList_SortReverseClearUseSnapshots(t *testing.T) {
	l, rec := newTrackedList(t, 3, 1, 2)

	require.NoError(t, l.Sort(nil))
	require.NoError(t, l.Reverse())
	require.NoError(t, l.Clear())

	recs := rec.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, []any{3, 1, 2}, recs[0].OldValue)
	assert.Equal(t, []any{1, 2, 3}, recs[0].NewValue)
	assert.Equal(t, []any{1, 2, 3}, recs[1].OldValue)
	assert.Equal(t, []any{3, 2, 1}, recs[1].NewValue)
	assert.Equal(t, []any{3, 2, 1}, recs[2].OldValue)
	assert.Nil(t, recs[2].NewValue)
	assert.Equal(t, 0, l.Len())
}

func TestList_NoOpBulkCallsEmitNothing(t *testing.T) {
	l, rec := newTrackedList(t)

	require.NoError(t, l.Clear())
	require.NoError(t, l.Extend())
	require.NoError(t, l.Append(1))
	require.NoError(t, l.Reverse())
	require.NoError(t, l.Append(2))
	require.NoError(t, l.Sort(nil))
	assert.Equal(t, 2, rec.Len(), "only the two appends are recorded")

	require.NoError(t, l.Reverse())
	require.Equal(t, 3, rec.Len())
	assert.Equal(t, change.OpReverse, rec.Records()[2].Container.Op)
}

func TestList_SortRejectsMixedItems(t *testing.T) {
	l, err := NewList([]any{1, "a"})
	require.NoError(t, err)

	err = l.Sort(nil)
	assert.True(t, atomerr.IsValidationError(err))
	assert.Equal(t, []any{1, "a"}, l.Items())
}

func TestList_SortWithComparator(t *testing.T) {
	l, err := NewList([]any{"bb", "a", "ccc"})
	require.NoError(t, err)

	require.NoError(t, l.Sort(func(a, b any) int { return len(b.(string)) - len(a.(string)) }))
	assert.Equal(t, []any{"ccc", "bb", "a"}, l.Items())
}

func TestList_OwnerErrorIsReturned(t *testing.T) {
	boom := errors.New("observer failed")
	rec := &recorder{fail: boom}
	l, err := NewList(nil, WithOwner(rec, "tags"))
	require.NoError(t, err)

	err = l.Append(1)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, l.Len(), "the mutation is applied before observers run")
}

func TestList_ItemsReturnsCopy(t *testing.T) {
	l, _ := newTrackedList(t, 1, 2)

	items := l.Items()
	items[0] = 99
	v, err := l.At(0)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	snap := l.Snapshot().([]any)
	snap[1] = 99
	assert.Equal(t, []any{1, 2}, l.Items())
}

func TestList_All(t *testing.T) {
	l, _ := newTrackedList(t, 5, 6)

	var got []int
	for i, v := range l.All() {
		got = append(got, i, v.(int))
	}
	assert.Equal(t, []int{0, 5, 1, 6}, got)
}

func TestList_UnownedDoesNotNotify(t *testing.T) {
	l, err := NewList(nil)
	require.NoError(t, err)

	require.NoError(t, l.Append("anything"))
	assert.Equal(t, "", l.Name())
	assert.Nil(t, l.Owner())
}

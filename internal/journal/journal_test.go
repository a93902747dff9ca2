package journal

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/catom/internal/atom"
	"github.com/roach88/catom/internal/change"
	"github.com/roach88/catom/internal/testutil"
)

func openTestJournal(t *testing.T, opts ...Option) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j, path
}

func personInstance(t *testing.T, ids atom.IDGenerator) *atom.Instance {
	t.Helper()
	typ, err := atom.NewType("Person",
		atom.Field("name", atom.Str()),
		atom.Field("tags", atom.List(atom.Str())),
		atom.WithIDGenerator(ids),
	)
	require.NoError(t, err)
	inst, err := typ.New()
	require.NoError(t, err)
	return inst
}

func TestOpen_CreatesDatabase(t *testing.T) {
	j, path := openTestJournal(t)

	_, err := os.Stat(path)
	assert.NoError(t, err)

	var mode string
	require.NoError(t, j.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	v, err := j.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, v)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	for range 3 {
		j, err := Open(path)
		require.NoError(t, err)
		require.NoError(t, j.Close())
	}
}

func TestAttach_RecordsChangesInOrder(t *testing.T) {
	ctx := context.Background()
	j, _ := openTestJournal(t)
	inst := personInstance(t, testutil.FixedID("p-1"))

	_, err := j.Attach(ctx, inst)
	require.NoError(t, err)

	require.NoError(t, inst.Set("name", "Ada"))
	require.NoError(t, inst.Set("name", "Grace"))
	tags, err := inst.List("tags")
	require.NoError(t, err)
	require.NoError(t, tags.Append("x"))
	require.NoError(t, inst.Delete("name"))

	entries, err := j.Changes(ctx, "p-1")
	require.NoError(t, err)
	require.Len(t, entries, 4)

	kinds := make([]string, len(entries))
	for i, e := range entries {
		kinds[i] = e.Kind
		assert.Equal(t, int64(i+1), e.Seq)
		assert.Equal(t, "Person", e.Type)
	}
	assert.Equal(t, []string{"create", "update", "container", "delete"}, kinds)

	assert.Equal(t, "null", entries[0].OldValue)
	assert.Equal(t, `"Ada"`, entries[0].NewValue)
	assert.Equal(t, `"Ada"`, entries[1].OldValue)
	assert.Equal(t, "tags", entries[2].Member)
	assert.Equal(t, "append", entries[2].Op)
	assert.Contains(t, entries[2].Detail, `"Added":["x"]`)
	assert.Equal(t, `"Grace"`, entries[3].OldValue)

	n, err := j.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	ids, err := j.Instances(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p-1"}, ids)
}

func TestAttach_SelectedMembersAndUnobserve(t *testing.T) {
	ctx := context.Background()
	j, _ := openTestJournal(t)
	inst := personInstance(t, testutil.FixedID("p-1"))

	h, err := j.Attach(ctx, inst, "name")
	require.NoError(t, err)

	require.NoError(t, inst.Set("name", "Ada"))
	tags, _ := inst.List("tags")
	require.NoError(t, tags.Append("ignored"))

	assert.True(t, inst.Unobserve("name", h))
	require.NoError(t, inst.Set("name", "Later"))

	n, err := j.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = j.Attach(ctx, inst, "missing")
	assert.Error(t, err)
}

func TestOpen_ResumesSequence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	inst := personInstance(t, testutil.NewSequentialIDs("p"))
	_, err = j.Attach(ctx, inst, "name")
	require.NoError(t, err)
	require.NoError(t, inst.Set("name", "one"))
	require.NoError(t, inst.Set("name", "two"))
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()
	obs, err := j.Recorder(ctx, inst)
	require.NoError(t, err)
	require.NoError(t, obs.Observe(change.Record{Type: "Person", Name: "name", Kind: change.Update, OldValue: "two", NewValue: "three"}))

	all, err := j.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(3), all[2].Seq)
}

func TestWithClock(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewDeterministicClock()
	clock.Next()
	j, _ := openTestJournal(t, WithClock(clock))
	inst := personInstance(t, testutil.FixedID("p-1"))

	_, err := j.Attach(ctx, inst, "name")
	require.NoError(t, err)
	require.NoError(t, inst.Set("name", "Ada"))

	entries, err := j.Changes(ctx, "p-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].Seq)
}

func TestRecorder_WriteFailureAbortsDispatch(t *testing.T) {
	ctx := context.Background()
	j, _ := openTestJournal(t, WithClock(fixedClock(7)))
	inst := personInstance(t, testutil.FixedID("p-1"))

	_, err := j.Attach(ctx, inst, "name")
	require.NoError(t, err)
	require.NoError(t, inst.Set("name", "first"))

	err = inst.Set("name", "second")
	require.Error(t, err, "a reused seq violates the primary key")
	assert.Contains(t, err.Error(), "write change")

	v, _ := inst.Get("name")
	assert.Equal(t, "second", v, "the write itself is kept")
}

type fixedClock int64

func (c fixedClock) Next() int64 { return int64(c) }

func TestSeqClock(t *testing.T) {
	c := NewSeqClock(10)
	assert.Equal(t, int64(11), c.Next())
	assert.Equal(t, int64(12), c.Next())
	assert.Equal(t, int64(12), c.Current())
}

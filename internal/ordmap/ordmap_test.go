package ordmap

import (
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkInvariants verifies ordering, AVL balance and cached heights.
func checkInvariants[K, V any](t *testing.T, m *Map[K, V]) {
	t.Helper()
	count := 0
	var visit func(n *node[K, V]) int8
	visit = func(n *node[K, V]) int8 {
		if n == nil {
			return 0
		}
		count++
		if n.left != nil {
			require.Negative(t, m.cmp(n.left.key, n.key), "left child must be smaller")
		}
		if n.right != nil {
			require.Positive(t, m.cmp(n.right.key, n.key), "right child must be larger")
		}
		lh, rh := visit(n.left), visit(n.right)
		require.LessOrEqual(t, abs(int(lh)-int(rh)), 1, "subtree out of balance")
		require.Equal(t, 1+max(lh, rh), n.height, "stale height")
		return n.height
	}
	visit(m.root)
	require.Equal(t, m.Len(), count, "size mismatch")

	keys := m.Keys()
	for i := 1; i < len(keys); i++ {
		require.Negative(t, m.cmp(keys[i-1], keys[i]), "in-order traversal must be strictly increasing")
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func TestMap_InsertFind(t *testing.T) {
	m := NewOrdered[string, int]()

	_, replaced := m.Insert("b", 2)
	assert.False(t, replaced)
	m.Insert("a", 1)
	m.Insert("c", 3)

	v, ok := m.Find("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = m.Find("z")
	assert.False(t, ok)
	assert.Equal(t, 3, m.Len())
	assert.True(t, m.Contains("c"))
}

func TestMap_InsertDuplicateOverwrites(t *testing.T) {
	m := NewOrdered[string, int]()
	m.Insert("k", 1)

	old, replaced := m.Insert("k", 2)
	assert.True(t, replaced)
	assert.Equal(t, 1, old)
	assert.Equal(t, 1, m.Len())

	v, _ := m.Find("k")
	assert.Equal(t, 2, v)
}

func TestMap_Remove(t *testing.T) {
	m := NewOrdered[int, string]()
	for i := range 10 {
		m.Insert(i, strings.Repeat("x", i))
	}

	v, ok := m.Remove(4)
	require.True(t, ok)
	assert.Equal(t, "xxxx", v)

	_, ok = m.Find(4)
	assert.False(t, ok, "find after remove must miss")

	_, ok = m.Remove(4)
	assert.False(t, ok, "second remove must miss")
	assert.Equal(t, 9, m.Len())
	checkInvariants(t, m)
}

func TestMap_SequentialInsertStaysBalanced(t *testing.T) {
	m := NewOrdered[int, int]()
	for i := range 1024 {
		m.Insert(i, i)
	}
	checkInvariants(t, m)
	// A perfectly balanced tree of 1024 nodes has height 11; AVL allows ~1.44 log n.
	assert.LessOrEqual(t, int(m.root.height), 15)
}

func TestMap_RandomOperationsKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	m := NewOrdered[int, int]()
	ref := map[int]int{}

	for i := range 5000 {
		k := rng.IntN(300)
		if rng.IntN(3) == 0 {
			_, want := ref[k]
			_, got := m.Remove(k)
			assert.Equal(t, want, got)
			delete(ref, k)
		} else {
			m.Insert(k, i)
			ref[k] = i
		}
		if i%250 == 0 {
			checkInvariants(t, m)
		}
	}
	checkInvariants(t, m)

	want := make([]int, 0, len(ref))
	for k := range ref {
		want = append(want, k)
	}
	slices.Sort(want)
	if diff := cmp.Diff(want, m.Keys()); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	for k, v := range ref {
		got, ok := m.Find(k)
		require.True(t, ok)
		assert.Equal(t, v, got)
	}
}

func TestMap_CustomComparator(t *testing.T) {
	// Descending order comparator.
	m := New[int, string](func(a, b int) int { return b - a })
	m.Insert(1, "one")
	m.Insert(3, "three")
	m.Insert(2, "two")

	assert.Equal(t, []int{3, 2, 1}, m.Keys())
}

func TestMap_AllStopsEarly(t *testing.T) {
	m := NewOrdered[int, int]()
	for i := range 10 {
		m.Insert(i, i*i)
	}

	var seen []int
	for k, v := range m.All() {
		if k == 3 {
			break
		}
		seen = append(seen, v)
	}
	assert.Equal(t, []int{0, 1, 4}, seen)

	// Breaking out must release the guard.
	assert.NotPanics(t, func() { m.Insert(100, 0) })
}

func TestMap_AscendAndRange(t *testing.T) {
	m := NewOrdered[int, bool]()
	for _, k := range []int{10, 20, 30, 40, 50} {
		m.Insert(k, true)
	}

	var ascend []int
	for k := range m.Ascend(25) {
		ascend = append(ascend, k)
	}
	assert.Equal(t, []int{30, 40, 50}, ascend)

	var rng []int
	for k := range m.Range(20, 50) {
		rng = append(rng, k)
	}
	assert.Equal(t, []int{20, 30, 40}, rng)

	var back []int
	for k := range m.Backward() {
		back = append(back, k)
	}
	assert.Equal(t, []int{50, 40, 30, 20, 10}, back)
}

func TestMap_MinMaxFloorCeiling(t *testing.T) {
	m := NewOrdered[int, string]()
	_, _, ok := m.Min()
	assert.False(t, ok)

	for _, k := range []int{5, 1, 9} {
		m.Insert(k, "")
	}
	k, _, _ := m.Min()
	assert.Equal(t, 1, k)
	k, _, _ = m.Max()
	assert.Equal(t, 9, k)

	k, _, ok = m.Ceiling(6)
	require.True(t, ok)
	assert.Equal(t, 9, k)
	k, _, ok = m.Floor(6)
	require.True(t, ok)
	assert.Equal(t, 5, k)
	_, _, ok = m.Ceiling(10)
	assert.False(t, ok)
	_, _, ok = m.Floor(0)
	assert.False(t, ok)
}

func TestMap_MutationDuringIterationPanics(t *testing.T) {
	m := NewOrdered[int, int]()
	m.Insert(1, 1)
	m.Insert(2, 2)

	assert.PanicsWithValue(t, ErrMutationDuringIteration, func() {
		for k := range m.All() {
			m.Insert(k+10, 0)
		}
	})
	assert.PanicsWithValue(t, ErrMutationDuringIteration, func() {
		for k := range m.All() {
			m.Remove(k)
		}
	})

	// Guard released after the panic unwound the iterator.
	assert.NotPanics(t, func() { m.Clear() })
	assert.Equal(t, 0, m.Len())
}

func TestMap_SnapshotAllowsMutation(t *testing.T) {
	m := NewOrdered[string, int]()
	m.Insert("a", 1)
	m.Insert("b", 2)

	for _, e := range m.Snapshot() {
		m.Remove(e.Key)
	}
	assert.Equal(t, 0, m.Len())
}

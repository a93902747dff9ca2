package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicClock_NextIncrementsMonotonically(t *testing.T) {
	clock := NewDeterministicClock()
	assert.Equal(t, int64(0), clock.Current())

	assert.Equal(t, int64(1), clock.Next())
	assert.Equal(t, int64(2), clock.Next())
	assert.Equal(t, int64(2), clock.Current())
}

func TestDeterministicClock_Reset(t *testing.T) {
	clock := NewDeterministicClock()
	clock.Next()
	clock.Next()

	clock.Reset()
	assert.Equal(t, int64(0), clock.Current())
	assert.Equal(t, int64(1), clock.Next())
}

func TestDeterministicClock_ThreadSafe(t *testing.T) {
	clock := NewDeterministicClock()
	const workers, calls = 50, 100

	var wg sync.WaitGroup
	results := make([][]int64, workers)
	for i := range workers {
		results[i] = make([]int64, calls)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range calls {
				results[i][j] = clock.Next()
			}
		}()
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for _, rs := range results {
		for _, v := range rs {
			require.False(t, seen[v], "duplicate value %d", v)
			seen[v] = true
		}
	}
	assert.Len(t, seen, workers*calls)
}

func TestSequentialIDs_Generate(t *testing.T) {
	ids := NewSequentialIDs("person")
	assert.Equal(t, "person-1", ids.Generate())
	assert.Equal(t, "person-2", ids.Generate())

	assert.Equal(t, "inst-1", NewSequentialIDs("").Generate())
}

func TestFixedID_Generate(t *testing.T) {
	id := FixedID("only")
	assert.Equal(t, "only", id.Generate())
	assert.Equal(t, "only", id.Generate())
}

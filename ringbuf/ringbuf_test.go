package ringbuf

import (
	"sync"
	"testing"
	"time"

	"github.com/cardialab/ekgraph/schema"
	"github.com/stretchr/testify/require"
)

func sample(sec int64, v int) schema.Sample {
	return schema.Sample{Timestamp: time.Unix(sec, 0), Value: v}
}

func TestPushAndSnapshot(t *testing.T) {
	b := New(10)
	b.Push(sample(1, 100))
	b.Push(sample(2, 200))

	snap := b.Snapshot()
	require.Equal(t, []schema.Sample{sample(1, 100), sample(2, 200)}, snap)
}

func TestEvictsOldestFirst(t *testing.T) {
	b := New(3)
	b.Push(sample(1, 'A'))
	b.Push(sample(2, 'B'))
	b.Push(sample(3, 'C'))
	b.Push(sample(4, 'D'))

	require.Equal(t, []schema.Sample{
		sample(2, 'B'),
		sample(3, 'C'),
		sample(4, 'D'),
	}, b.Snapshot())
}

func TestLenNeverExceedsCapacity(t *testing.T) {
	const capacity = 5
	b := New(capacity)
	for i := 0; i < 100; i++ {
		b.Push(sample(int64(i), i))
		require.LessOrEqual(t, b.Len(), capacity)
	}

	snap := b.Snapshot()
	require.Len(t, snap, capacity)
	for i, s := range snap {
		require.Equal(t, 95+i, s.Value, "snapshot holds the last N pushes in order")
	}
}

func TestClear(t *testing.T) {
	b := New(4)
	b.PushAll([]schema.Sample{sample(1, 1), sample(2, 2)})
	require.Equal(t, 2, b.Len())

	b.Clear()
	require.Equal(t, 0, b.Len())
	require.Empty(t, b.Snapshot())
}

func TestSnapshotIsACopy(t *testing.T) {
	b := New(4)
	b.Push(sample(1, 1))

	snap := b.Snapshot()
	snap[0].Value = 999

	require.Equal(t, 1, b.Snapshot()[0].Value)
}

func TestConcurrentPushAndSnapshot(t *testing.T) {
	b := New(128)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 5000; i++ {
			b.Push(sample(int64(i), i))
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			snap := b.Snapshot()
			require.LessOrEqual(t, len(snap), 128)
			for j := 1; j < len(snap); j++ {
				require.Less(t, snap[j-1].Value, snap[j].Value, "snapshot preserves arrival order")
			}
		}
	}()

	wg.Wait()
}

package schedule

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustItem(t *testing.T, id, interval, offset int64, repeat bool, now int64) Item {
	t.Helper()
	it, err := NewItem(id, id, interval, offset, repeat, now, ModeNext)
	require.NoError(t, err)
	return it
}

func TestNewItemRejectsInvalidConfig(t *testing.T) {
	_, err := NewItem(1, nil, 0, 0, true, 0, ModeNext)
	assert.ErrorIs(t, err, ErrInvalidScheduleConfig)

	_, err = NewItem(1, nil, 1000, 1000, true, 0, ModeNext)
	assert.ErrorIs(t, err, ErrInvalidScheduleConfig)

	_, err = NewItem(-1, nil, 1000, 0, true, 0, ModeNext)
	assert.ErrorIs(t, err, ErrInvalidScheduleConfig)
}

func TestNewItemPrevMode(t *testing.T) {
	it, err := NewItem(1, nil, 1000, 0, true, 1500, ModePrev)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), it.NextTime)
	assert.True(t, it.Due(1500))
}

func TestRegistryAddOverwrites(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(mustItem(t, 1, 1000, 0, true, 0)))
	require.NoError(t, r.Add(mustItem(t, 1, 5000, 0, true, 0)))

	assert.Equal(t, 1, r.Len())
	got, ok := r.Get(1)
	require.True(t, ok)
	assert.Equal(t, int64(5000), got.Interval)
}

func TestRegistryAddRejectsInvalidItem(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(mustItem(t, 1, 1000, 0, true, 0)))

	err := r.Add(Item{ID: 1, Interval: 0, Repeat: true})
	assert.ErrorIs(t, err, ErrInvalidScheduleConfig)
	err = r.Add(Item{ID: 2, Interval: 1000, Offset: 1000, Repeat: true})
	assert.ErrorIs(t, err, ErrInvalidScheduleConfig)
	err = r.Add(Item{ID: -1, Interval: 1000})
	assert.ErrorIs(t, err, ErrInvalidScheduleConfig)

	it, ok := r.Get(1)
	require.True(t, ok)
	assert.Equal(t, int64(1000), it.Interval)
	assert.Equal(t, 1, r.Len())

	assert.NotPanics(t, func() {
		r.AdvanceAll(r.DueItems(5000), 5000)
	})
}

func TestRegistryUpdatePayloadKeepsNextTime(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(mustItem(t, 1, 1000, 0, true, 500)))
	require.True(t, r.UpdatePayload(1, func(cur any) any { return cur.(int64) + 10 }))
	it, ok := r.Get(1)
	require.True(t, ok)
	assert.Equal(t, int64(11), it.Payload)
	assert.Equal(t, int64(1000), it.NextTime)
	assert.False(t, r.UpdatePayload(2, func(any) any { return nil }))
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(mustItem(t, 1, 1000, 0, true, 0)))
	assert.True(t, r.Remove(1))
	assert.False(t, r.Remove(1))
	assert.Equal(t, 0, r.Len())
}

func TestRegistryDueItemsOrdered(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(mustItem(t, 3, 1000, 0, true, 0)))   // 0
	require.NoError(t, r.Add(mustItem(t, 1, 1000, 500, true, 0))) // 500
	require.NoError(t, r.Add(mustItem(t, 2, 1000, 0, true, 0)))   // 0
	require.NoError(t, r.Add(mustItem(t, 4, 10000, 0, true, 1)))  // 10000

	due := r.DueItems(600)
	require.Len(t, due, 3)
	assert.Equal(t, []int64{2, 3, 1}, []int64{due[0].ID, due[1].ID, due[2].ID})

	// 返回的是副本
	due[0].NextTime = 999999
	got, _ := r.Get(2)
	assert.Equal(t, int64(0), got.NextTime)
}

func TestRegistryAdvanceAll(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(mustItem(t, 1, 1000, 0, true, 0)))
	require.NoError(t, r.Add(mustItem(t, 2, 1000, 0, false, 0)))

	due := r.DueItems(0)
	require.Len(t, due, 2)
	r.AdvanceAll(due, 0)

	assert.Equal(t, 1, r.Len())
	it, ok := r.Get(1)
	require.True(t, ok)
	assert.Equal(t, int64(1000), it.NextTime)

	// 同一个快照再次推进不会重复触发
	r.AdvanceAll(due, 0)
	it, _ = r.Get(1)
	assert.Equal(t, int64(1000), it.NextTime)
	assert.Empty(t, r.DueItems(999))
}

func TestRegistryAdvanceAllSkipsRescheduled(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(mustItem(t, 1, 1000, 0, true, 0)))
	due := r.DueItems(0)

	require.NoError(t, r.Add(mustItem(t, 1, 5000, 100, true, 0)))
	r.AdvanceAll(due, 0)

	it, _ := r.Get(1)
	assert.Equal(t, int64(100), it.NextTime)
	assert.Equal(t, int64(5000), it.Interval)
}

func TestRegistryRemoveWhereAndNextDue(t *testing.T) {
	r := NewRegistry()
	_, ok := r.NextDue()
	assert.False(t, ok)

	require.NoError(t, r.Add(mustItem(t, 1, 1000, 0, true, 1)))
	require.NoError(t, r.Add(mustItem(t, 2, 1000, 300, true, 1)))
	require.NoError(t, r.Add(mustItem(t, 3, 1000, 900, true, 1)))

	next, ok := r.NextDue()
	require.True(t, ok)
	assert.Equal(t, int64(300), next)

	n := r.RemoveWhere(func(it Item) bool { return it.ID >= 2 })
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, r.Len())
	assert.Len(t, r.Snapshot(), 1)
}

func TestRegistryNextIDUnique(t *testing.T) {
	r := NewRegistry()
	seen := make(map[int64]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := r.NextID()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 800)
}

func TestRegistryConcurrentDueAndAdvance(t *testing.T) {
	r := NewRegistry()
	for i := int64(0); i < 50; i++ {
		require.NoError(t, r.Add(mustItem(t, i, 1000, 0, true, 0)))
	}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			due := r.DueItems(0)
			r.AdvanceAll(due, 0)
		}()
	}
	wg.Wait()

	// 每个调度项只推进一次
	for _, it := range r.Snapshot() {
		assert.Equal(t, int64(1000), it.NextTime, "item %d", it.ID)
	}
}

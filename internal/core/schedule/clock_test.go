package schedule

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextFireTime(t *testing.T) {
	cases := []struct {
		name     string
		interval int64
		offset   int64
		now      int64
		want     int64
	}{
		{"aligned no offset", 60000, 0, 120000, 120000},
		{"mid interval", 60000, 0, 125000, 180000},
		{"offset ahead", 60000, 15000, 125000, 135000},
		{"offset behind", 60000, 5000, 130000, 185000},
		{"offset exact", 60000, 5000, 125000, 125000},
		{"negative now", 1000, 0, -1500, -1000},
		{"negative now offset", 1000, 200, -1500, -800},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NextFireTime(tc.interval, tc.offset, tc.now))
		})
	}
}

func TestPrevFireTime(t *testing.T) {
	assert.Equal(t, int64(120000), PrevFireTime(60000, 0, 125000))
	assert.Equal(t, int64(125000), PrevFireTime(60000, 5000, 125000))
	assert.Equal(t, int64(75000), PrevFireTime(60000, 15000, 125000))
	assert.Equal(t, int64(-2000), PrevFireTime(1000, 0, -1500))
}

func TestFireTimeProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 5000; i++ {
		interval := rng.Int63n(3600000) + 1
		offset := rng.Int63n(interval)
		now := rng.Int63n(1<<42) - (1 << 41)

		next := NextFireTime(interval, offset, now)
		require.GreaterOrEqual(t, next, now)
		require.Less(t, next-now, 2*interval)
		require.Equal(t, offset, mod(next, interval))

		prev := PrevFireTime(interval, offset, now)
		require.LessOrEqual(t, prev, now)
		require.Less(t, now-prev, 2*interval)
		require.Equal(t, offset, mod(prev, interval))
	}
}

func TestValidateConfig(t *testing.T) {
	assert.NoError(t, ValidateConfig(1000, 0))
	assert.NoError(t, ValidateConfig(1000, 999))
	assert.ErrorIs(t, ValidateConfig(0, 0), ErrInvalidScheduleConfig)
	assert.ErrorIs(t, ValidateConfig(-5, 0), ErrInvalidScheduleConfig)
	assert.ErrorIs(t, ValidateConfig(1000, 1000), ErrInvalidScheduleConfig)
	assert.ErrorIs(t, ValidateConfig(1000, -1), ErrInvalidScheduleConfig)
}

func TestAdvanceIncremental(t *testing.T) {
	item, err := NewItem(1, nil, 1000, 0, true, 0, ModeNext)
	require.NoError(t, err)
	require.Equal(t, int64(0), item.NextTime)

	Advance(&item, 0)
	assert.Equal(t, int64(1000), item.NextTime)
	Advance(&item, 1500)
	assert.Equal(t, int64(2000), item.NextTime)
}

func TestAdvanceCatchUp(t *testing.T) {
	item, err := NewItem(1, nil, 1000, 250, true, 0, ModeNext)
	require.NoError(t, err)
	require.Equal(t, int64(250), item.NextTime)

	// 进程挂起很久，不补发中间的触发
	Advance(&item, 1_000_000)
	assert.Equal(t, int64(1_000_250), item.NextTime)
	assert.Equal(t, int64(250), mod(item.NextTime, item.Interval))
}

func TestAdvanceTwiceNeverDecreases(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 1000; i++ {
		interval := rng.Int63n(100000) + 1
		offset := rng.Int63n(interval)
		now := rng.Int63n(1 << 40)
		item, err := NewItem(int64(i), nil, interval, offset, true, now-rng.Int63n(1<<20), ModeNext)
		require.NoError(t, err)

		Advance(&item, now)
		first := item.NextTime
		Advance(&item, now)
		require.GreaterOrEqual(t, item.NextTime, first)
	}
}

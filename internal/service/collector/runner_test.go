package collector

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"neofleet/internal/core/command"
	"neofleet/internal/core/measurement"
	"neofleet/internal/core/schedule"
	"neofleet/internal/model/base"
	"neofleet/internal/pkg/communication"
)

type staticConfigs map[measurement.EntityID]*command.ConfigResponse

func (s staticConfigs) Get(e measurement.EntityID) (*command.ConfigResponse, bool) {
	cfg, ok := s[e]
	return cfg, ok
}

func scheduleMetric(t *testing.T, reg *schedule.Registry, m measurement.ScheduledMeasurement, now int64) {
	t.Helper()
	it, err := schedule.NewItem(m.DerivedID, m, m.Interval, 0, true, now, schedule.ModePrev)
	require.NoError(t, err)
	require.NoError(t, reg.Add(it))
}

func TestRunOnceCollectsAdvancesAndBuffers(t *testing.T) {
	reg := schedule.NewRegistry()
	var now atomic.Int64
	now.Store(60000)

	entity := measurement.EntityID{Type: 1, ID: 1}
	ok := measurement.ScheduledMeasurement{DSN: "fake:ok", Interval: 60000, DerivedID: 1, Entity: entity}
	bad := measurement.ScheduledMeasurement{DSN: "fake:bad", Interval: 60000, DerivedID: 2, Entity: entity}
	later := measurement.ScheduledMeasurement{DSN: "fake:ok", Interval: 60000, DerivedID: 3, Entity: entity}
	scheduleMetric(t, reg, ok, 60000)
	scheduleMetric(t, reg, bad, 60000)
	it, err := schedule.NewItem(3, later, 60000, 30000, true, 60000, schedule.ModeNext)
	require.NoError(t, err)
	require.NoError(t, reg.Add(it))

	router := NewRouter()
	var seenCfg atomic.Pointer[command.ConfigResponse]
	router.Register("fake", CollectorFunc(func(_ context.Context, tg Target) (float64, error) {
		seenCfg.Store(tg.Config)
		if tg.Metric == "bad" {
			return 0, errors.New("device offline")
		}
		return 7.5, nil
	}))

	cfg := command.NewConfigResponse(map[string]string{"a": "b"}, nil)
	r := NewRunner(reg, router, staticConfigs{entity: cfg}, Options{Workers: 2, Clock: now.Load})

	assert.Equal(t, 2, r.RunOnce(context.Background()))
	assert.Same(t, cfg, seenCfg.Load())

	reports := r.Buffer().Drain(0)
	require.Len(t, reports, 2)
	byID := map[int64]communication.MeasurementReport{}
	for _, rep := range reports {
		m, err := measurement.Decode(rep.Record)
		require.NoError(t, err)
		byID[m.DerivedID] = rep
	}
	assert.Equal(t, 7.5, byID[1].Value)
	assert.Empty(t, byID[1].Error)
	assert.Equal(t, "device offline", byID[2].Error)

	// 成功采集更新 LastCollected，失败不更新
	got1, _ := reg.Get(1)
	got2, _ := reg.Get(2)
	assert.Equal(t, int64(60000), got1.Payload.(measurement.ScheduledMeasurement).LastCollected)
	assert.Zero(t, got2.Payload.(measurement.ScheduledMeasurement).LastCollected)
	assert.Equal(t, int64(120000), got1.NextTime)

	// 同一时刻再次运行不会重复采集
	assert.Equal(t, 0, r.RunOnce(context.Background()))

	now.Store(90000)
	assert.Equal(t, 1, r.RunOnce(context.Background()))
	got3, _ := reg.Get(3)
	assert.Equal(t, int64(150000), got3.NextTime)
}

func TestRunOnceCatchUpAfterClockGap(t *testing.T) {
	reg := schedule.NewRegistry()
	var now atomic.Int64
	now.Store(0)
	scheduleMetric(t, reg, measurement.ScheduledMeasurement{DSN: "fake:x", Interval: 1000, DerivedID: 1}, 0)

	var calls atomic.Int32
	router := NewRouter()
	router.Register("fake", CollectorFunc(func(context.Context, Target) (float64, error) {
		calls.Add(1)
		return 1, nil
	}))
	r := NewRunner(reg, router, nil, Options{Clock: now.Load})

	r.RunOnce(context.Background())
	now.Store(10500)
	r.RunOnce(context.Background())
	assert.Equal(t, int32(2), calls.Load())

	it, _ := reg.Get(1)
	assert.Equal(t, int64(11000), it.NextTime)
}

func TestCollectNowRecoversPanics(t *testing.T) {
	router := NewRouter()
	router.Register("fake", CollectorFunc(func(_ context.Context, tg Target) (float64, error) {
		if tg.Metric == "panic" {
			panic("driver bug")
		}
		return 3, nil
	}))
	r := NewRunner(schedule.NewRegistry(), router, nil, Options{Workers: 4, Clock: func() int64 { return 5 }})

	vals := r.CollectNow(context.Background(), []measurement.ScheduledMeasurement{
		{DSN: "fake:panic", DerivedID: 1},
		{DSN: "fake:ok", DerivedID: 2},
		{DSN: "missing", DerivedID: 3},
	})
	require.Len(t, vals, 3)
	assert.Contains(t, vals[0].Error, "panic")
	assert.Equal(t, 3.0, vals[1].Value)
	assert.Equal(t, int64(5), vals[1].Timestamp)
	assert.NotEmpty(t, vals[2].Error)
	assert.Zero(t, r.Buffer().Len())
}

func TestBufferDropsOldest(t *testing.T) {
	b := NewBuffer(3)
	for i := 0; i < 5; i++ {
		b.Add(communication.MeasurementReport{Timestamp: int64(i)})
	}
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, uint64(2), b.Dropped())

	first := b.Drain(2)
	require.Len(t, first, 2)
	assert.Equal(t, int64(2), first[0].Timestamp)

	b.Requeue(first)
	all := b.Drain(0)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{2, 3, 4}, []int64{all[0].Timestamp, all[1].Timestamp, all[2].Timestamp})
}

type mockReporter struct {
	mock.Mock
	mu sync.Mutex
}

func (m *mockReporter) PushMeasurements(ctx context.Context, reports []communication.MeasurementReport) (*base.BatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	args := m.Called(ctx, reports)
	res, _ := args.Get(0).(*base.BatchResult)
	return res, args.Error(1)
}

func TestFlusherRequeuesOnFailure(t *testing.T) {
	b := NewBuffer(10)
	b.Add(communication.MeasurementReport{Record: "a"}, communication.MeasurementReport{Record: "b"})

	rep := &mockReporter{}
	rep.On("PushMeasurements", mock.Anything, mock.Anything).Return(nil, errors.New("master down")).Once()
	rep.On("PushMeasurements", mock.Anything, mock.Anything).Return(&base.BatchResult{Accepted: 2}, nil).Once()

	f := NewFlusher(b, func() Reporter { return rep }, 0, 0)
	_, err := f.FlushOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, b.Len())

	n, err := f.FlushOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, b.Len())
	rep.AssertExpectations(t)

	n, err = f.FlushOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Error(t, f.Run(context.Background()))
}

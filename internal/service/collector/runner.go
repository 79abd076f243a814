/**
 * 采集调度运行器
 * @author: sun977
 * @date: 2026.03.10
 * @description: 按 tick 取出到期调度项，并发采集后推进调度
 * @func: 一次 tick: DueItems -> 并发 Collect -> 更新 LastCollected -> AdvanceAll -> 写入缓冲
 */
package collector

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"neofleet/internal/core/command"
	"neofleet/internal/core/measurement"
	"neofleet/internal/core/schedule"
	"neofleet/internal/pkg/communication"
	"neofleet/internal/pkg/logger"
)

// Options 运行器参数
type Options struct {
	Tick           time.Duration
	CollectTimeout time.Duration
	Workers        int
	BufferSize     int
	Clock          func() int64 // 毫秒
}

// Runner 采集运行器
type Runner struct {
	schedules *schedule.Registry
	collector Collector
	configs   ConfigSource
	buffer    *Buffer
	tick      time.Duration
	timeout   time.Duration
	workers   int
	now       func() int64
}

// NewRunner 创建运行器
func NewRunner(schedules *schedule.Registry, collector Collector, configs ConfigSource, opts Options) *Runner {
	r := &Runner{
		schedules: schedules,
		collector: collector,
		configs:   configs,
		buffer:    NewBuffer(opts.BufferSize),
		tick:      opts.Tick,
		timeout:   opts.CollectTimeout,
		workers:   opts.Workers,
		now:       opts.Clock,
	}
	if r.tick <= 0 {
		r.tick = time.Second
	}
	if r.workers <= 0 {
		r.workers = 1
	}
	if r.now == nil {
		r.now = func() int64 { return time.Now().UnixMilli() }
	}
	return r
}

// Buffer 待上报缓冲
func (r *Runner) Buffer() *Buffer {
	return r.buffer
}

// Run 阻塞运行直到 ctx 取消
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()
	logger.LogSystemEvent("collector", "start", fmt.Sprintf("tick=%s workers=%d", r.tick, r.workers), logger.InfoLevel, nil)
	for {
		select {
		case <-ctx.Done():
			logger.LogSystemEvent("collector", "stop", "", logger.InfoLevel, nil)
			return nil
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce 处理一次 tick，返回本次采集的指标数
func (r *Runner) RunOnce(ctx context.Context) int {
	now := r.now()
	due := r.schedules.DueItems(now)
	if len(due) == 0 {
		return 0
	}

	targets := make([]measurement.ScheduledMeasurement, 0, len(due))
	for _, it := range due {
		m, ok := it.Payload.(measurement.ScheduledMeasurement)
		if !ok {
			logger.LogScheduleEvent(it.ID, "", "skipped", fmt.Sprintf("unexpected payload %T", it.Payload), logger.WarnLevel, nil)
			continue
		}
		targets = append(targets, m)
	}

	values := r.collect(ctx, targets)
	reports := make([]communication.MeasurementReport, 0, len(values))
	for i, v := range values {
		m := targets[i]
		if v.Error == "" {
			ts := v.Timestamp
			r.schedules.UpdatePayload(m.DerivedID, func(cur any) any {
				if cm, ok := cur.(measurement.ScheduledMeasurement); ok {
					cm.LastCollected = ts
					return cm
				}
				return cur
			})
		}
		record, err := measurement.Encode(m)
		if err != nil {
			logger.LogScheduleEvent(m.DerivedID, m.DSN, "encode_failed", err.Error(), logger.ErrorLevel, nil)
			continue
		}
		reports = append(reports, communication.MeasurementReport{Record: record, Value: v.Value, Timestamp: v.Timestamp, Error: v.Error})
	}

	// 采集结束后再推进，同一调度项不会在本轮被重复触发
	r.schedules.AdvanceAll(due, now)
	r.buffer.Add(reports...)
	return len(targets)
}

// CollectNow 立即采集，不影响调度和缓冲
func (r *Runner) CollectNow(ctx context.Context, ms []measurement.ScheduledMeasurement) []command.MeasurementValue {
	return r.collect(ctx, ms)
}

// collect 并发采集，结果与输入一一对应；单个失败只写入该条的 Error
func (r *Runner) collect(ctx context.Context, ms []measurement.ScheduledMeasurement) []command.MeasurementValue {
	out := make([]command.MeasurementValue, len(ms))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, m := range ms {
		g.Go(func() error {
			out[i] = r.collectOne(gctx, m)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *Runner) collectOne(ctx context.Context, m measurement.ScheduledMeasurement) (v command.MeasurementValue) {
	v = command.MeasurementValue{DerivedID: m.DerivedID, DSN: m.DSN}
	defer func() {
		if rec := recover(); rec != nil {
			v.Error = fmt.Sprintf("collector panic: %v", rec)
			v.Timestamp = r.now()
			logger.LogScheduleEvent(m.DerivedID, m.DSN, "collect_failed", v.Error, logger.ErrorLevel, nil)
		}
	}()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	var cfg *command.ConfigResponse
	if r.configs != nil {
		cfg, _ = r.configs.Get(m.Entity)
	}

	value, err := r.collector.Collect(ctx, Target{Measurement: m, Config: cfg})
	v.Timestamp = r.now()
	if err != nil {
		v.Error = err.Error()
		logger.LogScheduleEvent(m.DerivedID, m.DSN, "collect_failed", err.Error(), logger.WarnLevel, nil)
		return v
	}
	v.Value = value
	logger.LogScheduleEvent(m.DerivedID, m.DSN, "collected", "", logger.DebugLevel, map[string]interface{}{"value": value})
	return v
}

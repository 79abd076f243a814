package collector

import (
	"context"
	"fmt"
	"time"

	"neofleet/internal/model/base"
	"neofleet/internal/pkg/communication"
	"neofleet/internal/pkg/logger"
)

// Reporter 上报采集值 (communication.Client 实现)
type Reporter interface {
	PushMeasurements(ctx context.Context, reports []communication.MeasurementReport) (*base.BatchResult, error)
}

// ReporterSource 每次上报时取当前的 Reporter，配置热更新后自动使用新客户端
type ReporterSource func() Reporter

// Flusher 定时把缓冲中的采集值推送到 Master
type Flusher struct {
	buffer   *Buffer
	source   ReporterSource
	interval time.Duration
	batch    int
}

// NewFlusher 创建上报器，batch<=0 表示一次全部上报
func NewFlusher(buffer *Buffer, source ReporterSource, interval time.Duration, batch int) *Flusher {
	return &Flusher{buffer: buffer, source: source, interval: interval, batch: batch}
}

// FlushOnce 上报一批；失败时放回缓冲
func (f *Flusher) FlushOnce(ctx context.Context) (int, error) {
	reports := f.buffer.Drain(f.batch)
	if len(reports) == 0 {
		return 0, nil
	}
	rep := f.source()
	if rep == nil {
		f.buffer.Requeue(reports)
		return 0, fmt.Errorf("no reporter available")
	}
	res, err := rep.PushMeasurements(ctx, reports)
	if err != nil {
		f.buffer.Requeue(reports)
		return 0, err
	}
	if res == nil {
		return len(reports), nil
	}
	for _, item := range res.Failed {
		logger.LogSystemEvent("flusher", "rejected", item.Error, logger.WarnLevel, map[string]interface{}{"index": item.Index})
	}
	return len(reports), nil
}

// Run 阻塞运行直到 ctx 取消，退出前尽量再上报一次
func (f *Flusher) Run(ctx context.Context) error {
	if f.interval <= 0 {
		return fmt.Errorf("flush interval must be positive, got %s", f.interval)
	}
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if _, err := f.FlushOnce(final); err != nil {
				logger.LogSystemEvent("flusher", "final_flush", err.Error(), logger.WarnLevel, nil)
			}
			cancel()
			return nil
		case <-ticker.C:
			n, err := f.FlushOnce(ctx)
			if err != nil {
				logger.LogSystemEvent("flusher", "flush_failed", err.Error(), logger.WarnLevel, map[string]interface{}{
					"buffered": f.buffer.Len(),
				})
				continue
			}
			if n > 0 {
				logger.LogSystemEvent("flusher", "flushed", fmt.Sprintf("%d measurements", n), logger.DebugLevel, nil)
			}
		}
	}
}

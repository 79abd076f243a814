package collector

import (
	"context"
	"time"

	"neofleet/internal/pkg/monitor"
)

// SystemCollector 本机指标 (gopsutil)
// 资源配置键: disk.path, net.interface
type SystemCollector struct {
	CPUSample time.Duration
}

func (c *SystemCollector) Collect(ctx context.Context, t Target) (float64, error) {
	opts := monitor.Options{CPUSample: c.CPUSample}
	if v, ok := t.Config.Get("disk.path"); ok {
		opts.DiskPath = v
	}
	if v, ok := t.Config.Get("net.interface"); ok {
		opts.Interface = v
	}
	return monitor.Sample(ctx, t.Metric, opts)
}

/**
 * 主机指标采集
 * @author: sun977
 * @date: 2026.03.08
 * @description: 基于 gopsutil 的本机指标，供 system: 前缀的采集器和启动日志使用
 * @func: Sample 按指标名返回单个数值；GetHostInfo 返回主机静态信息
 */
package monitor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"

	"neofleet/internal/pkg/logger"
)

// ErrUnknownMetric 不支持的指标名
var ErrUnknownMetric = errors.New("unknown system metric")

// HostInfo 主机静态信息
type HostInfo struct {
	Hostname        string `json:"hostname"`
	OS              string `json:"os"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platform_version"`
	KernelVersion   string `json:"kernel_version"`
	Arch            string `json:"arch"`
	CPUCores        int    `json:"cpu_cores"`
	MemoryTotal     uint64 `json:"memory_total"`
	DiskTotal       uint64 `json:"disk_total"`
}

// Options 单次采样参数
type Options struct {
	DiskPath  string        // disk.* 指标的挂载点，默认 "/"
	CPUSample time.Duration // cpu.usage 的采样窗口，默认 100ms
	Interface string        // net.* 指标的网卡名，为空时汇总全部网卡
}

type sampler func(ctx context.Context, opts Options) (float64, error)

var samplers = map[string]sampler{
	"cpu.usage": func(ctx context.Context, opts Options) (float64, error) {
		window := opts.CPUSample
		if window <= 0 {
			window = 100 * time.Millisecond
		}
		pct, err := cpu.PercentWithContext(ctx, window, false)
		if err != nil {
			return 0, err
		}
		if len(pct) == 0 {
			return 0, fmt.Errorf("no cpu samples")
		}
		return pct[0], nil
	},
	"cpu.cores": func(ctx context.Context, _ Options) (float64, error) {
		n, err := cpu.CountsWithContext(ctx, true)
		return float64(n), err
	},
	"mem.usage": func(ctx context.Context, _ Options) (float64, error) {
		v, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return 0, err
		}
		return v.UsedPercent, nil
	},
	"mem.used": func(ctx context.Context, _ Options) (float64, error) {
		v, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return 0, err
		}
		return float64(v.Used), nil
	},
	"mem.available": func(ctx context.Context, _ Options) (float64, error) {
		v, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return 0, err
		}
		return float64(v.Available), nil
	},
	"disk.usage": func(ctx context.Context, opts Options) (float64, error) {
		u, err := diskUsage(ctx, opts.DiskPath)
		if err != nil {
			return 0, err
		}
		return u.UsedPercent, nil
	},
	"disk.free": func(ctx context.Context, opts Options) (float64, error) {
		u, err := diskUsage(ctx, opts.DiskPath)
		if err != nil {
			return 0, err
		}
		return float64(u.Free), nil
	},
	"net.bytes_sent": func(ctx context.Context, opts Options) (float64, error) {
		c, err := netCounters(ctx, opts.Interface)
		if err != nil {
			return 0, err
		}
		return float64(c.BytesSent), nil
	},
	"net.bytes_recv": func(ctx context.Context, opts Options) (float64, error) {
		c, err := netCounters(ctx, opts.Interface)
		if err != nil {
			return 0, err
		}
		return float64(c.BytesRecv), nil
	},
	"load.1": func(ctx context.Context, _ Options) (float64, error) {
		a, err := load.AvgWithContext(ctx)
		if err != nil {
			return 0, err
		}
		return a.Load1, nil
	},
	"load.5": func(ctx context.Context, _ Options) (float64, error) {
		a, err := load.AvgWithContext(ctx)
		if err != nil {
			return 0, err
		}
		return a.Load5, nil
	},
	"load.15": func(ctx context.Context, _ Options) (float64, error) {
		a, err := load.AvgWithContext(ctx)
		if err != nil {
			return 0, err
		}
		return a.Load15, nil
	},
	"host.uptime": func(ctx context.Context, _ Options) (float64, error) {
		up, err := host.UptimeWithContext(ctx)
		return float64(up), err
	},
}

// Metrics 支持的指标名 (有序)
func Metrics() []string {
	out := make([]string, 0, len(samplers))
	for name := range samplers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Supported 是否支持该指标
func Supported(name string) bool {
	_, ok := samplers[name]
	return ok
}

// Sample 采集单个指标
func Sample(ctx context.Context, name string, opts Options) (float64, error) {
	fn, ok := samplers[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
	}
	v, err := fn(ctx, opts)
	if err != nil {
		return 0, fmt.Errorf("sample %s: %w", name, err)
	}
	return v, nil
}

func diskUsage(ctx context.Context, path string) (*disk.UsageStat, error) {
	if path == "" {
		path = "/"
	}
	u, err := disk.UsageWithContext(ctx, path)
	if err != nil && path == "/" && runtime.GOOS == "windows" {
		u, err = disk.UsageWithContext(ctx, "C:")
	}
	return u, err
}

func netCounters(ctx context.Context, iface string) (net.IOCountersStat, error) {
	if iface == "" {
		all, err := net.IOCountersWithContext(ctx, false)
		if err != nil {
			return net.IOCountersStat{}, err
		}
		if len(all) == 0 {
			return net.IOCountersStat{}, fmt.Errorf("no network counters")
		}
		return all[0], nil
	}
	per, err := net.IOCountersWithContext(ctx, true)
	if err != nil {
		return net.IOCountersStat{}, err
	}
	for _, c := range per {
		if c.Name == iface {
			return c, nil
		}
	}
	return net.IOCountersStat{}, fmt.Errorf("interface %q not found", iface)
}

// GetHostInfo 获取主机静态信息，单项失败只记录日志
func GetHostInfo(ctx context.Context) *HostInfo {
	info := &HostInfo{}

	hInfo, err := host.InfoWithContext(ctx)
	if err != nil {
		logger.LogSystemEvent("Monitor", "GetHostInfo", "Failed to get host info: "+err.Error(), logger.WarnLevel, nil)
	} else {
		info.Hostname = hInfo.Hostname
		info.OS = hInfo.OS
		info.Platform = hInfo.Platform
		info.PlatformVersion = hInfo.PlatformVersion
		info.KernelVersion = hInfo.KernelVersion
		info.Arch = hInfo.KernelArch
	}
	if info.OS == "" {
		info.OS = runtime.GOOS
	}
	if info.Arch == "" {
		info.Arch = runtime.GOARCH
	}

	if cores, err := cpu.CountsWithContext(ctx, false); err == nil && cores > 0 {
		info.CPUCores = cores
	} else {
		info.CPUCores = runtime.NumCPU()
	}

	if vMem, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		logger.LogSystemEvent("Monitor", "GetHostInfo", "Failed to get Memory info: "+err.Error(), logger.WarnLevel, nil)
	} else {
		info.MemoryTotal = vMem.Total
	}

	if dUsage, err := diskUsage(ctx, "/"); err != nil {
		logger.LogSystemEvent("Monitor", "GetHostInfo", "Failed to get Disk info: "+err.Error(), logger.WarnLevel, nil)
	} else {
		info.DiskTotal = dUsage.Total
	}
	return info
}

/**
 * 指标采集器
 * @author: sun977
 * @date: 2026.03.10
 * @description: 按 DSN 前缀路由到具体采集器 ("system:cpu.usage" -> system 采集器, 指标 "cpu.usage")
 * @func: 采集器只负责取数，调度与上报由 Runner 处理
 */
package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"neofleet/internal/core/command"
	"neofleet/internal/core/measurement"
)

var (
	ErrNoCollector = errors.New("no collector for dsn")
	ErrInvalidDSN  = errors.New("dsn must be <collector>:<metric>")
)

// Target 一次采集的输入
type Target struct {
	Metric      string                           // DSN 中前缀之后的部分
	Measurement measurement.ScheduledMeasurement // 被采集的指标
	Config      *command.ConfigResponse          // 资源配置，可能为 nil
}

// Collector 采集单个数值
type Collector interface {
	Collect(ctx context.Context, t Target) (float64, error)
}

// CollectorFunc 函数适配
type CollectorFunc func(ctx context.Context, t Target) (float64, error)

func (f CollectorFunc) Collect(ctx context.Context, t Target) (float64, error) {
	return f(ctx, t)
}

// ConfigSource 资源配置来源
type ConfigSource interface {
	Get(entity measurement.EntityID) (*command.ConfigResponse, bool)
}

// SplitDSN 拆分 "<prefix>:<metric>"
func SplitDSN(dsn string) (prefix, metric string, err error) {
	prefix, metric, ok := strings.Cut(dsn, ":")
	if !ok || prefix == "" || metric == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidDSN, dsn)
	}
	return prefix, metric, nil
}

// Router 前缀路由
type Router struct {
	mu     sync.RWMutex
	routes map[string]Collector
}

// NewRouter 创建空路由
func NewRouter() *Router {
	return &Router{routes: make(map[string]Collector)}
}

// Register 注册前缀，重复注册覆盖
func (r *Router) Register(prefix string, c Collector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[prefix] = c
}

// Prefixes 已注册前缀
func (r *Router) Prefixes() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.routes))
	for p := range r.routes {
		out = append(out, p)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Collect 按 DSN 前缀分派
func (r *Router) Collect(ctx context.Context, t Target) (float64, error) {
	prefix, metric, err := SplitDSN(t.Measurement.DSN)
	if err != nil {
		return 0, err
	}
	r.mu.RLock()
	c, ok := r.routes[prefix]
	r.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNoCollector, t.Measurement.DSN)
	}
	t.Metric = metric
	return c.Collect(ctx, t)
}

// DefaultRouter 内置采集器: 本机、SNMP 以及数据库/中间件资源
func DefaultRouter() *Router {
	r := NewRouter()
	r.Register("system", &SystemCollector{})
	r.Register("snmp", &SNMPCollector{})

	for _, c := range []*SQLCollector{
		NewMySQLCollector(),
		NewPostgresCollector(),
		NewSQLServerCollector(),
		NewOracleCollector(),
		NewClickHouseCollector(),
	} {
		r.Register(c.Prefix, c)
	}
	r.Register("mongo", &MongoCollector{})
	r.Register("redis", &RedisCollector{})
	r.Register("ssh", &SSHCollector{})
	r.Register("ftp", &FTPCollector{})
	return r
}

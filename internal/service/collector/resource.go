/**
 * 远程资源采集公共部分
 * @author: sun977
 * @date: 2026.03.14
 * @description: 数据库/中间件类资源的连接参数从资源配置读取，键名统一为 "<前缀>.<字段>"
 * @func: 每个资源类采集器都支持 availability (可用为 1，不可用为 0) 与 response_time (毫秒)
 */
package collector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// 通用指标名
const (
	MetricAvailability = "availability"
	MetricResponseTime = "response_time"
)

var ErrUnknownMetric = errors.New("unknown metric")

// Endpoint 资源连接参数
type Endpoint struct {
	Host     string
	Port     int
	User     string
	Password string // 放在加密配置中
	Database string
	Timeout  time.Duration
}

// Addr host:port
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// endpointFrom 读取 "<prefix>.host" 等配置，host 必填
func endpointFrom(t Target, prefix string, defaultPort int, timeout time.Duration) (Endpoint, error) {
	ep := Endpoint{Port: defaultPort, Timeout: timeout}
	if ep.Timeout <= 0 {
		ep.Timeout = 5 * time.Second
	}

	host, ok := t.Config.Get(prefix + ".host")
	if !ok || host == "" {
		return ep, fmt.Errorf("resource %s has no %s.host configured", t.Measurement.Entity, prefix)
	}
	ep.Host = host

	if v, ok := t.Config.Get(prefix + ".port"); ok && v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 || p > 65535 {
			return ep, fmt.Errorf("invalid %s.port %q", prefix, v)
		}
		ep.Port = p
	}
	ep.User, _ = t.Config.Get(prefix + ".user")
	ep.Password, _ = t.Config.Get(prefix + ".password")
	ep.Database, _ = t.Config.Get(prefix + ".database")
	return ep, nil
}

// probe availability/response_time 的公共实现
// check 返回错误视为不可用；availability 不把不可用当作采集错误
func probe(ctx context.Context, metric string, check func(ctx context.Context) error) (float64, bool, error) {
	switch metric {
	case MetricAvailability:
		if err := check(ctx); err != nil {
			return 0, true, nil
		}
		return 1, true, nil
	case MetricResponseTime:
		start := time.Now()
		if err := check(ctx); err != nil {
			return 0, true, err
		}
		return float64(time.Since(start).Microseconds()) / 1000, true, nil
	}
	return 0, false, nil
}

// parseNumber 把驱动返回的标量转为 float64
func parseNumber(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, errors.New("value is null")
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return strconv.ParseFloat(string(n), 64)
	case string:
		return strconv.ParseFloat(n, 64)
	case fmt.Stringer:
		return strconv.ParseFloat(n.String(), 64)
	}
	return 0, fmt.Errorf("unsupported value type %T", v)
}

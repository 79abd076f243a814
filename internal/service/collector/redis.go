package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCollector redis:，除通用指标外，指标名为 INFO 输出中的字段
//
//	redis:connected_clients
//	redis:used_memory
type RedisCollector struct {
	Timeout time.Duration
}

func (c *RedisCollector) Collect(ctx context.Context, t Target) (float64, error) {
	ep, err := endpointFrom(t, "redis", 6379, c.Timeout)
	if err != nil {
		return 0, err
	}
	client := redis.NewClient(&redis.Options{
		Addr:         ep.Addr(),
		Username:     ep.User,
		Password:     ep.Password,
		DialTimeout:  ep.Timeout,
		ReadTimeout:  ep.Timeout,
		WriteTimeout: ep.Timeout,
		MaxRetries:   -1,
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, ep.Timeout)
	defer cancel()

	ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
	if v, ok, err := probe(ctx, t.Metric, ping); ok {
		return v, err
	}

	info, err := client.Info(ctx).Result()
	if err != nil {
		return 0, fmt.Errorf("redis info on %s: %w", ep.Addr(), err)
	}
	raw, ok := parseRedisInfo(info)[t.Metric]
	if !ok {
		return 0, fmt.Errorf("%w: redis info has no field %q", ErrUnknownMetric, t.Metric)
	}
	return parseNumber(raw)
}

// parseRedisInfo "# Section" 与空行忽略，其余按 key:value 解析
func parseRedisInfo(info string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if k, v, ok := strings.Cut(line, ":"); ok {
			out[k] = v
		}
	}
	return out
}

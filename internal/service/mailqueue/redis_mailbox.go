/**
 * Redis 邮箱
 * @author: sun977
 * @date: 2026.03.05
 * @description: 每个 Agent 一个 Redis list，信封以 JSON 存储
 * @func: 多个 Master 实例共享同一个 Redis 时，Drain 通过 MULTI 保证同一信封只被取走一次
 */
package mailqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"neofleet/internal/config"
	"neofleet/internal/core/command"
	"neofleet/internal/pkg/logger"
)

// RedisMailbox 基于 go-redis 的邮箱
type RedisMailbox struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisMailbox 使用已有客户端创建邮箱；ttl>0 时每次写入刷新 key 过期时间
func NewRedisMailbox(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisMailbox {
	return &RedisMailbox{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

// DialRedis 按配置创建客户端并 PING
func DialRedis(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

func (r *RedisMailbox) key(agentToken string) string {
	return r.keyPrefix + agentToken
}

func (r *RedisMailbox) Push(ctx context.Context, agentToken string, reqs []*command.Request) error {
	if len(reqs) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(reqs))
	for _, req := range reqs {
		raw, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("encode envelope %s: %w", req.CorrelationID, err)
		}
		values = append(values, raw)
	}
	key := r.key(agentToken)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	return err
}

func (r *RedisMailbox) Drain(ctx context.Context, agentToken string, max int) ([]*command.Request, error) {
	key := r.key(agentToken)
	stop := int64(-1)
	if max > 0 {
		stop = int64(max - 1)
	}

	var rangeCmd *redis.StringSliceCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		rangeCmd = pipe.LRange(ctx, key, 0, stop)
		if stop < 0 {
			pipe.Del(ctx, key)
		} else {
			pipe.LTrim(ctx, key, stop+1, -1)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	items := rangeCmd.Val()
	out := make([]*command.Request, 0, len(items))
	for _, item := range items {
		var req command.Request
		if err := json.Unmarshal([]byte(item), &req); err != nil {
			// 已经从 list 中移除，无法回退，对应的待应答记录由老化扫描清理
			logger.LogCommandOperation("", "", agentToken, "send", "dropped", fmt.Sprintf("undecodable envelope in redis: %v", err), nil)
			continue
		}
		out = append(out, &req)
	}
	return out, nil
}

func (r *RedisMailbox) Len(ctx context.Context, agentToken string) (int, error) {
	n, err := r.client.LLen(ctx, r.key(agentToken)).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

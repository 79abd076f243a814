package mailqueue

import (
	"context"
	"fmt"
	"time"

	"neofleet/internal/pkg/logger"
)

// AbandonHandler 处理老化扫描的结果 (例如把 Agent 标记为不可达)
type AbandonHandler func(ctx context.Context, stale map[string][]PendingRequest)

// Sweeper 定时执行 ExpireStaleRequests
type Sweeper struct {
	svc      *Service
	interval time.Duration
	handler  AbandonHandler
}

// NewSweeper 创建老化扫描器
func NewSweeper(svc *Service, interval time.Duration, handler AbandonHandler) *Sweeper {
	return &Sweeper{svc: svc, interval: interval, handler: handler}
}

// SweepOnce 执行一次扫描，返回过期条数
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	stale := s.svc.ExpireStaleRequests(s.svc.now())
	if len(stale) == 0 {
		return 0
	}
	n := 0
	for _, list := range stale {
		n += len(list)
	}
	logger.LogSystemEvent("mailqueue", "sweep", fmt.Sprintf("expired %d requests from %d agents", n, len(stale)), logger.WarnLevel, nil)
	if s.handler != nil {
		s.handler(ctx, stale)
	}
	return n
}

// Run 阻塞运行直到 ctx 取消
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", s.interval)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

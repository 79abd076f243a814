package setup

import (
	"context"
	"fmt"

	"neofleet/internal/config"
	"neofleet/internal/core/command"
	mqHandler "neofleet/internal/handler/mailqueue"
	"neofleet/internal/pkg/logger"
	"neofleet/internal/pkg/utils"
	"neofleet/internal/service/mailqueue"
)

// SetupMailQueue 初始化翻译器、邮箱后端、队列服务和老化扫描
func SetupMailQueue(ctx context.Context, cfg *config.Config) (*MailQueueModule, error) {
	sealer, err := sealerFromConfig(cfg.Security)
	if err != nil {
		return nil, err
	}
	translators := command.DefaultRegistry(sealer)

	m := &MailQueueModule{Translators: translators, Backend: cfg.MailQueue.Backend}

	var mailbox mailqueue.Mailbox
	switch cfg.MailQueue.Backend {
	case "redis":
		client, err := mailqueue.DialRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		m.closers = append(m.closers, client.Close)
		// 邮箱 key 的过期时间与老化阈值一致，老化后的信封不会一直留在 Redis
		mailbox = mailqueue.NewRedisMailbox(client, cfg.Redis.KeyPrefix, cfg.MailQueue.MaxAge)
	default:
		mailbox = mailqueue.NewMemoryMailbox()
	}

	m.Service = mailqueue.NewService(translators, mailbox, mailqueue.Options{
		MaxAge:    cfg.MailQueue.MaxAge,
		BatchSize: cfg.MailQueue.BatchSize,
	})
	m.Agents = mailqueue.NewAgentDirectory()
	m.Sweeper = mailqueue.NewSweeper(m.Service, cfg.MailQueue.SweepInterval, m.Agents.AbandonHandler())
	m.Handler = mqHandler.NewMailQueueHandler(m.Service, m.Agents)

	logger.LogSystemEvent("mailqueue", "initialized", fmt.Sprintf("backend=%s", m.Backend), logger.InfoLevel, map[string]interface{}{
		"max_age_ms":     m.Service.MaxAge(),
		"sweep_interval": cfg.MailQueue.SweepInterval.String(),
		"batch_size":     cfg.MailQueue.BatchSize,
	})
	return m, nil
}

// sealerFromConfig 未配置共享口令时使用明文封装
func sealerFromConfig(sec *config.SecurityConfig) (command.Sealer, error) {
	if sec == nil || sec.SealingSecret == "" {
		logger.LogSystemEvent("mailqueue", "sealer_disabled", "security.sealing_secret is empty, secured config is sent in plain text", logger.WarnLevel, nil)
		return command.PlainSealer{}, nil
	}
	s, err := utils.NewAESSealer(sec.SealingSecret, sec.SealingSalt)
	if err != nil {
		return nil, fmt.Errorf("init sealer: %w", err)
	}
	return s, nil
}

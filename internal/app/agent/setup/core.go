package setup

import (
	"fmt"

	"neofleet/internal/config"
	"neofleet/internal/core/command"
	"neofleet/internal/pkg/logger"
	"neofleet/internal/pkg/utils"
	"neofleet/internal/service/executor"
)

// SetupCore 初始化翻译器与命令执行器
// 立即采集由采集模块创建后通过 SetSampler 注入
func SetupCore(cfg *config.Config) (*CoreModule, error) {
	sealer, err := sealerFromConfig(cfg.Security)
	if err != nil {
		return nil, err
	}
	translators := command.DefaultRegistry(sealer)
	exec := executor.New(executor.Options{
		Translators: translators,
	})
	return &CoreModule{
		Translators: translators,
		Executor:    exec,
	}, nil
}

// sealerFromConfig Master 与 Agent 必须使用相同的口令和盐
func sealerFromConfig(sec *config.SecurityConfig) (command.Sealer, error) {
	if sec == nil || sec.SealingSecret == "" {
		logger.LogSystemEvent("agent", "sealer_disabled", "security.sealing_secret is empty, secured config is expected in plain text", logger.WarnLevel, nil)
		return command.PlainSealer{}, nil
	}
	s, err := utils.NewAESSealer(sec.SealingSecret, sec.SealingSalt)
	if err != nil {
		return nil, fmt.Errorf("init sealer: %w", err)
	}
	return s, nil
}

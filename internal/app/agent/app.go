/**
 * Agent应用程序核心逻辑
 * @author: sun977
 * @date: 2026.03.12
 * @description: 负责装配命令执行、指标采集、结果上报，并管理它们的生命周期
 * @architecture: 拉取循环、采集运行器、上报器在同一个 errgroup 中运行，任一失败或收到退出信号时全部停止
 */

package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"neofleet/internal/app/agent/setup"
	"neofleet/internal/config"
	"neofleet/internal/pkg/communication"
	"neofleet/internal/pkg/logger"
	"neofleet/internal/pkg/monitor"
	"neofleet/internal/service/executor"
)

var (
	// ErrRestartRequested Master 下发了 AGENT_RESTART，调用方应重新创建 App
	ErrRestartRequested = errors.New("agent restart requested")
	errDieRequested     = errors.New("agent stop requested")
)

// App Agent应用程序
type App struct {
	config     *config.Config
	configPath string
	core       *setup.CoreModule
	client     *setup.ClientModule
	collector  *setup.CollectorModule
}

// NewApp 创建 Agent 应用；configPath 非空时启用配置热重载
func NewApp(cfg *config.Config, configPath string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	core, err := setup.SetupCore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup core: %w", err)
	}
	client, err := setup.SetupClient(cfg)
	if err != nil {
		return nil, err
	}
	return &App{
		config:     cfg,
		configPath: configPath,
		core:       core,
		client:     client,
		collector:  setup.SetupCollector(cfg, core, client),
	}, nil
}

// GetExecutor 命令执行器
func (a *App) GetExecutor() *executor.Executor {
	return a.core.Executor
}

// GetClient 当前 Master 客户端
func (a *App) GetClient() *communication.Client {
	return a.client.Holder.Get()
}

// Run 阻塞运行直到 ctx 取消、收到生命周期命令或任一组件失败
// 收到 AGENT_DIE 时返回 nil，收到 AGENT_RESTART 时返回 ErrRestartRequested
func (a *App) Run(ctx context.Context) error {
	a.logStartup(ctx)

	if a.configPath != "" {
		watcher, err := a.startConfigWatcher()
		if err != nil {
			logger.LogSystemEvent("agent", "config_watch_disabled", err.Error(), logger.WarnLevel, nil)
		} else {
			defer watcher.Stop()
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.pollLoop(gctx) })
	g.Go(func() error { return a.collector.Runner.Run(gctx) })
	g.Go(func() error { return a.collector.Flusher.Run(gctx) })

	err := g.Wait()
	switch {
	case errors.Is(err, errDieRequested):
		logger.LogSystemEvent("agent", "stopped", "stopped by master", logger.WarnLevel, nil)
		return nil
	case errors.Is(err, ErrRestartRequested):
		logger.LogSystemEvent("agent", "restarting", "restart requested by master", logger.WarnLevel, nil)
		return err
	case err != nil:
		return err
	}
	logger.LogSystemEvent("agent", "stopped", "", logger.InfoLevel, nil)
	return nil
}

// pollLoop 定时拉取命令；生命周期动作在结果回传之后才处理
func (a *App) pollLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.config.Agent.PollInterval)
	defer ticker.Stop()
	for {
		if _, err := a.PollOnce(ctx); err != nil && ctx.Err() == nil {
			logger.LogSystemEvent("agent", "poll_failed", err.Error(), logger.WarnLevel, nil)
		}
		select {
		case act := <-a.core.Executor.Actions():
			return lifecycleError(act)
		default:
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// PollOnce 拉取、执行并回传一轮命令，返回执行的命令数
func (a *App) PollOnce(ctx context.Context) (int, error) {
	client := a.client.Holder.Get()
	reqs, err := client.FetchCommands(ctx)
	if err != nil {
		return 0, err
	}
	if len(reqs) == 0 {
		return 0, nil
	}
	responses := a.core.Executor.Execute(ctx, reqs)
	res, err := client.PushResults(ctx, responses)
	if err != nil {
		// 结果已丢失，不重试：Master 端对应请求老化后被移除，Agent 被标记为不可达
		return len(reqs), fmt.Errorf("push %d results: %w", len(responses), err)
	}
	for _, item := range res.Failed {
		logger.LogCommandOperation(item.CorrelationID, "", client.Token(), "deliver", "dropped", item.Error, map[string]interface{}{
			"index": item.Index,
		})
	}
	return len(reqs), nil
}

func lifecycleError(act executor.LifecycleAction) error {
	logger.LogSystemEvent("agent", string(act.Action), act.Reason, logger.WarnLevel, map[string]interface{}{
		"correlation_id": act.CorrelationID,
	})
	if act.Action == executor.ActionRestart {
		return ErrRestartRequested
	}
	return errDieRequested
}

// startConfigWatcher 热重载: 日志级别与 Master 连接参数
func (a *App) startConfigWatcher() (*config.ConfigWatcher, error) {
	watcher, err := config.NewConfigWatcher(a.configPath, a.config)
	if err != nil {
		return nil, err
	}
	watcher.AddCallback(config.ValidateConfigChange)
	watcher.AddCallback(a.onConfigChange)
	watcher.OnError(func(err error) {
		logger.LogSystemEvent("agent", "config_reload_failed", err.Error(), logger.ErrorLevel, nil)
	})
	if err := watcher.Start(); err != nil {
		_ = watcher.Stop()
		return nil, err
	}
	return watcher, nil
}

func (a *App) onConfigChange(oldCfg, newCfg *config.Config) error {
	if err := a.client.Holder.Reconfigure(newCfg.Master, newCfg.Agent.Token); err != nil {
		return err
	}
	if lm := logger.LoggerInstance; lm != nil && newCfg.Log != nil {
		if err := lm.UpdateConfig(newCfg.Log); err != nil {
			return fmt.Errorf("update log config: %w", err)
		}
	}
	logger.LogSystemEvent("agent", "config_reloaded", a.configPath, logger.InfoLevel, map[string]interface{}{
		"master": newCfg.Master.BaseURL(),
	})
	return nil
}

func (a *App) logStartup(ctx context.Context) {
	fields := map[string]interface{}{
		"master":        a.client.Holder.Get().BaseURL(),
		"poll_interval": a.config.Agent.PollInterval.String(),
		"collectors":    a.collector.Router.Prefixes(),
	}
	if info := monitor.GetHostInfo(ctx); info != nil {
		fields["hostname"] = info.Hostname
		fields["os"] = info.OS
		fields["cpu_cores"] = info.CPUCores
	}
	logger.LogSystemEvent("agent", "started", a.config.Agent.Name, logger.InfoLevel, fields)
}

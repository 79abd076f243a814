package setup

import (
	"neofleet/internal/config"
	"neofleet/internal/service/collector"
)

// flushBatch 单次上报的最大条数
const flushBatch = 500

// SetupCollector 初始化采集运行器与上报器
// 运行器共享执行器的调度注册表与资源配置
func SetupCollector(cfg *config.Config, core *CoreModule, client *ClientModule) *CollectorModule {
	router := collector.DefaultRouter()
	runner := collector.NewRunner(core.Executor.Schedules(), router, core.Executor.Resources(), collector.Options{
		Tick:           cfg.Scheduler.Tick,
		CollectTimeout: cfg.Scheduler.CollectTimeout,
		Workers:        cfg.Scheduler.Workers,
		BufferSize:     cfg.Agent.BufferSize,
	})
	core.Executor.SetSampler(runner)

	source := func() collector.Reporter {
		if c := client.Holder.Get(); c != nil {
			return c
		}
		return nil
	}
	return &CollectorModule{
		Router:  router,
		Runner:  runner,
		Flusher: collector.NewFlusher(runner.Buffer(), source, cfg.Agent.FlushInterval, flushBatch),
	}
}

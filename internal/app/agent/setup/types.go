package setup

import (
	"neofleet/internal/core/command"
	"neofleet/internal/pkg/communication"
	"neofleet/internal/service/collector"
	"neofleet/internal/service/executor"
)

// CoreModule 命令执行模块
type CoreModule struct {
	Translators *command.Registry
	Executor    *executor.Executor
}

// ClientModule 客户端通信模块
type ClientModule struct {
	Holder *communication.Holder
}

// CollectorModule 指标采集模块
type CollectorModule struct {
	Router  *collector.Router
	Runner  *collector.Runner
	Flusher *collector.Flusher
}

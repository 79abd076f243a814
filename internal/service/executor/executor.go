/**
 * Agent 命令执行器
 * @author: sun977
 * @date: 2026.03.09
 * @description: 把拉取到的命令信封还原为领域命令，按命令类型分派到本地处理函数，生成结果信封
 * @func: 单条命令失败或 panic 只影响自身；无法解析关联ID的信封无法回传，只记录日志
 */
package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"neofleet/internal/core/command"
	"neofleet/internal/core/measurement"
	"neofleet/internal/core/schedule"
	"neofleet/internal/pkg/logger"
)

// Sampler 立即采集一批指标 (GET_MEASUREMENTS)，由采集运行器实现
type Sampler interface {
	CollectNow(ctx context.Context, ms []measurement.ScheduledMeasurement) []command.MeasurementValue
}

// Action 生命周期动作
type Action string

const (
	ActionRestart Action = "restart"
	ActionDie     Action = "die"
)

// LifecycleAction 等待 Agent 进程执行的生命周期动作
// 执行器只负责接受命令，进程在结果回传之后再处理动作
type LifecycleAction struct {
	Action        Action
	Reason        string
	CorrelationID string
}

// Handler 单个命令类型的处理函数
type Handler func(ctx context.Context, cid command.CorrelationID, cmd command.Command) (any, error)

// Options 执行器依赖
type Options struct {
	Translators *command.Registry
	Resources   *ResourceStore
	Schedules   *schedule.Registry
	Sampler     Sampler
	Clock       func() int64 // 毫秒
}

// Executor 命令执行器
type Executor struct {
	translators *command.Registry
	resources   *ResourceStore
	schedules   *schedule.Registry
	sampler     Sampler
	now         func() int64
	handlers    map[command.Type]Handler
	actions     chan LifecycleAction
}

// New 创建执行器并注册内置处理函数
func New(opts Options) *Executor {
	e := &Executor{
		translators: opts.Translators,
		resources:   opts.Resources,
		schedules:   opts.Schedules,
		sampler:     opts.Sampler,
		now:         opts.Clock,
		handlers:    make(map[command.Type]Handler),
		actions:     make(chan LifecycleAction, 1),
	}
	if e.translators == nil {
		e.translators = command.DefaultRegistry(nil)
	}
	if e.resources == nil {
		e.resources = NewResourceStore()
	}
	if e.schedules == nil {
		e.schedules = schedule.NewRegistry()
	}
	if e.now == nil {
		e.now = func() int64 { return time.Now().UnixMilli() }
	}

	e.handlers[command.TypeAgentPing] = e.handlePing
	e.handlers[command.TypeAgentRestart] = e.handleRestart
	e.handlers[command.TypeAgentDie] = e.handleDie
	e.handlers[command.TypeGetCurrentAgentBundle] = e.handleBundle
	e.handlers[command.TypeConfigureResource] = e.handleConfigure
	e.handlers[command.TypeRemoveResource] = e.handleRemove
	e.handlers[command.TypeScheduleMeasurements] = e.handleSchedule
	e.handlers[command.TypeUnscheduleMeasurements] = e.handleUnschedule
	e.handlers[command.TypeGetMeasurements] = e.handleCollect
	return e
}

// SetHandler 替换或新增处理函数，nil 表示移除
func (e *Executor) SetHandler(t command.Type, h Handler) {
	if h == nil {
		delete(e.handlers, t)
		return
	}
	e.handlers[t] = h
}

// SetSampler 设置立即采集实现 (采集运行器创建晚于执行器时使用)
func (e *Executor) SetSampler(s Sampler) {
	e.sampler = s
}

// Actions 被接受的生命周期动作
func (e *Executor) Actions() <-chan LifecycleAction {
	return e.actions
}

// Resources 资源配置存储
func (e *Executor) Resources() *ResourceStore {
	return e.resources
}

// Schedules 调度注册表
func (e *Executor) Schedules() *schedule.Registry {
	return e.schedules
}

// Execute 顺序执行一批命令信封，返回可回传的结果信封
func (e *Executor) Execute(ctx context.Context, reqs []*command.Request) []*command.Response {
	out := make([]*command.Response, 0, len(reqs))
	for _, req := range reqs {
		if req == nil {
			continue
		}
		if resp := e.executeOne(ctx, req); resp != nil {
			out = append(out, resp)
		}
	}
	return out
}

func (e *Executor) executeOne(ctx context.Context, req *command.Request) (resp *command.Response) {
	cid, cmd, err := e.translators.UnpackRequest(req)
	if err != nil {
		if _, perr := command.ParseCorrelationID(req.CorrelationID); perr != nil {
			logger.LogCommandOperation(req.CorrelationID, "", "", "execute", "dropped", err.Error(), nil)
			return nil
		}
		logger.LogCommandOperation(req.CorrelationID, string(cid.Type), cid.AgentToken, "execute", "failed", err.Error(), nil)
		return command.NewFailure(req.CorrelationID, err)
	}

	defer func() {
		if r := recover(); r != nil {
			logger.LogCommandOperation(req.CorrelationID, string(cid.Type), cid.AgentToken, "execute", "failed",
				fmt.Sprintf("panic: %v", r), map[string]interface{}{"stack": string(debug.Stack())})
			resp = command.NewFailure(req.CorrelationID, fmt.Errorf("panic while executing %s: %v", cid.Type, r))
		}
	}()

	h, ok := e.handlers[cid.Type]
	if !ok {
		logger.LogCommandOperation(req.CorrelationID, string(cid.Type), cid.AgentToken, "execute", "failed", command.ErrUnknownCommandType.Error(), nil)
		return command.NewFailure(req.CorrelationID, command.ErrUnknownCommandType)
	}

	start := time.Now()
	result, err := h(ctx, cid, cmd)
	if err != nil {
		logger.LogCommandOperation(req.CorrelationID, string(cid.Type), cid.AgentToken, "execute", "failed", err.Error(), nil)
		return command.NewFailure(req.CorrelationID, err)
	}
	resp, err = command.NewResult(req.CorrelationID, result)
	if err != nil {
		logger.LogCommandOperation(req.CorrelationID, string(cid.Type), cid.AgentToken, "execute", "failed", err.Error(), nil)
		return command.NewFailure(req.CorrelationID, err)
	}
	logger.LogCommandOperation(req.CorrelationID, string(cid.Type), cid.AgentToken, "execute", "success", "",
		map[string]interface{}{"duration_ms": time.Since(start).Milliseconds()})
	return resp
}

// errUnexpectedCommand 处理函数收到的命令与注册类型不符
var errUnexpectedCommand = errors.New("unexpected command payload")

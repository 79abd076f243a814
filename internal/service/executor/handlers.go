package executor

import (
	"context"
	"fmt"

	"neofleet/internal/core/command"
	"neofleet/internal/core/measurement"
	"neofleet/internal/core/schedule"
	"neofleet/internal/pkg/logger"
	"neofleet/internal/pkg/version"
)

// payload 接受值或指针形式的命令
func payload[T command.Command](cmd command.Command) (T, error) {
	switch c := any(cmd).(type) {
	case T:
		return c, nil
	case *T:
		if c != nil {
			return *c, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%w: %T", errUnexpectedCommand, cmd)
}

// ==================== Agent 生命周期 ====================

func (e *Executor) handlePing(_ context.Context, _ command.CorrelationID, _ command.Command) (any, error) {
	return command.PingResponse{AgentTime: e.now()}, nil
}

func (e *Executor) handleRestart(_ context.Context, cid command.CorrelationID, cmd command.Command) (any, error) {
	c, err := payload[command.RestartCommand](cmd)
	if err != nil {
		return nil, err
	}
	return e.offerAction(LifecycleAction{Action: ActionRestart, Reason: c.Reason, CorrelationID: cid.String()}), nil
}

func (e *Executor) handleDie(_ context.Context, cid command.CorrelationID, cmd command.Command) (any, error) {
	c, err := payload[command.DieCommand](cmd)
	if err != nil {
		return nil, err
	}
	return e.offerAction(LifecycleAction{Action: ActionDie, Reason: c.Reason, CorrelationID: cid.String()}), nil
}

// offerAction 同一时间只接受一个生命周期动作
func (e *Executor) offerAction(a LifecycleAction) command.LifecycleResponse {
	select {
	case e.actions <- a:
		logger.LogSystemEvent("executor", string(a.Action), "lifecycle action accepted: "+a.Reason, logger.WarnLevel, nil)
		return command.LifecycleResponse{Accepted: true, Message: fmt.Sprintf("%s scheduled after results are delivered", a.Action)}
	default:
		return command.LifecycleResponse{Accepted: false, Message: "another lifecycle action is already pending"}
	}
}

func (e *Executor) handleBundle(_ context.Context, _ command.CorrelationID, _ command.Command) (any, error) {
	info := version.GetInfo()
	return command.BundleResponse{
		Version:   info.Version,
		GitCommit: info.GitCommit,
		BuildTime: info.BuildTime,
		GoVersion: info.GoVersion,
		Platform:  info.Platform,
	}, nil
}

// ==================== 资源配置 ====================

func (e *Executor) handleConfigure(_ context.Context, _ command.CorrelationID, cmd command.Command) (any, error) {
	c, err := payload[command.ConfigureResourceCommand](cmd)
	if err != nil {
		return nil, err
	}
	replaced := e.resources.Put(c.Entity, c.Config)
	return command.ConfigureResourceResponse{Entity: c.Entity, Keys: c.Config.Len(), Replace: replaced}, nil
}

func (e *Executor) handleRemove(_ context.Context, _ command.CorrelationID, cmd command.Command) (any, error) {
	c, err := payload[command.RemoveResourceCommand](cmd)
	if err != nil {
		return nil, err
	}
	removed := e.resources.Remove(c.Entity)
	unscheduled := e.unscheduleEntities(map[measurement.EntityID]struct{}{c.Entity: {}})
	return command.RemoveResourceResponse{Entity: c.Entity, Removed: removed, Unscheduled: unscheduled}, nil
}

// ==================== 指标调度 ====================

// handleSchedule 每条指标按 DerivedID 调度，同一 DerivedID 重复调度时覆盖
// 首次触发使用最近一个已过去的对齐时间，新指标在下一次 tick 立即采集
func (e *Executor) handleSchedule(_ context.Context, _ command.CorrelationID, cmd command.Command) (any, error) {
	c, err := payload[command.ScheduleMeasurementsCommand](cmd)
	if err != nil {
		return nil, err
	}
	resp := command.ScheduleMeasurementsResponse{
		Scheduled: make([]int64, 0, len(c.Measurements)),
		Rejected:  append([]command.RejectedMeasurement(nil), c.Rejected...),
	}
	now := e.now()
	for _, m := range c.Measurements {
		if err := m.Validate(); err != nil {
			resp.Rejected = append(resp.Rejected, command.RejectedMeasurement{DerivedID: m.DerivedID, Reason: err.Error()})
			continue
		}
		item, err := schedule.NewItem(m.DerivedID, m, m.Interval, 0, true, now, schedule.ModePrev)
		if err != nil {
			resp.Rejected = append(resp.Rejected, command.RejectedMeasurement{DerivedID: m.DerivedID, Reason: err.Error()})
			logger.LogScheduleEvent(m.DerivedID, m.DSN, "rejected", err.Error(), logger.WarnLevel, nil)
			continue
		}
		if err := e.schedules.Add(item); err != nil {
			resp.Rejected = append(resp.Rejected, command.RejectedMeasurement{DerivedID: m.DerivedID, Reason: err.Error()})
			logger.LogScheduleEvent(m.DerivedID, m.DSN, "rejected", err.Error(), logger.WarnLevel, nil)
			continue
		}
		resp.Scheduled = append(resp.Scheduled, m.DerivedID)
		logger.LogScheduleEvent(m.DerivedID, m.DSN, "scheduled", fmt.Sprintf("every %d ms on %s", m.Interval, m.Entity), logger.DebugLevel, nil)
	}
	for _, r := range c.Rejected {
		logger.LogScheduleEvent(r.DerivedID, "", "rejected", r.Reason, logger.WarnLevel, nil)
	}
	return resp, nil
}

func (e *Executor) handleUnschedule(_ context.Context, _ command.CorrelationID, cmd command.Command) (any, error) {
	c, err := payload[command.UnscheduleMeasurementsCommand](cmd)
	if err != nil {
		return nil, err
	}
	set := make(map[measurement.EntityID]struct{}, len(c.Entities))
	for _, ent := range c.Entities {
		set[ent] = struct{}{}
	}
	return command.UnscheduleMeasurementsResponse{Removed: e.unscheduleEntities(set)}, nil
}

func (e *Executor) unscheduleEntities(set map[measurement.EntityID]struct{}) int {
	n := e.schedules.RemoveWhere(func(it schedule.Item) bool {
		m, ok := it.Payload.(measurement.ScheduledMeasurement)
		if !ok {
			return false
		}
		_, hit := set[m.Entity]
		return hit
	})
	if n > 0 {
		logger.LogScheduleEvent(-1, "", "unscheduled", fmt.Sprintf("%d measurements removed from %d entities", n, len(set)), logger.InfoLevel, nil)
	}
	return n
}

// handleCollect 立即采集；未被调度的 DerivedID 以错误值返回
func (e *Executor) handleCollect(ctx context.Context, _ command.CorrelationID, cmd command.Command) (any, error) {
	c, err := payload[command.GetMeasurementsCommand](cmd)
	if err != nil {
		return nil, err
	}
	if e.sampler == nil {
		return nil, fmt.Errorf("measurement collection is not available on this agent")
	}

	wanted := make(map[int64]bool, len(c.DerivedIDs))
	for _, id := range c.DerivedIDs {
		wanted[id] = false
	}
	var targets []measurement.ScheduledMeasurement
	for _, it := range e.schedules.Snapshot() {
		m, ok := it.Payload.(measurement.ScheduledMeasurement)
		if !ok || m.Entity != c.Entity {
			continue
		}
		if len(wanted) > 0 {
			if _, ok := wanted[m.DerivedID]; !ok {
				continue
			}
			wanted[m.DerivedID] = true
		}
		targets = append(targets, m)
	}

	values := e.sampler.CollectNow(ctx, targets)
	now := e.now()
	for _, id := range c.DerivedIDs {
		if !wanted[id] {
			values = append(values, command.MeasurementValue{DerivedID: id, Timestamp: now, Error: "measurement is not scheduled on this entity"})
		}
	}
	if values == nil {
		values = []command.MeasurementValue{}
	}
	return command.GetMeasurementsResponse{Values: values}, nil
}

/**
 * 领域命令与领域响应
 * @author: sun977
 * @date: 2026.03.03
 * @description: 每种命令类型对应一个命令结构和一个响应结构
 */
package command

import "neofleet/internal/core/measurement"

// ==================== Agent 生命周期 ====================

// PingCommand 探活
type PingCommand struct{}

func (PingCommand) CommandType() Type { return TypeAgentPing }

// PingResponse 返回 Agent 本地时间，可用于估算时钟偏差
type PingResponse struct {
	AgentTime int64 `json:"agent_time"`
}

// RestartCommand 重启 Agent
type RestartCommand struct {
	Reason string `json:"reason"`
}

func (RestartCommand) CommandType() Type { return TypeAgentRestart }

// DieCommand 停止 Agent
type DieCommand struct {
	Reason string `json:"reason"`
}

func (DieCommand) CommandType() Type { return TypeAgentDie }

// LifecycleResponse 重启/停止命令的响应
type LifecycleResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message,omitempty"`
}

// GetBundleCommand 查询当前 Agent 版本包
type GetBundleCommand struct{}

func (GetBundleCommand) CommandType() Type { return TypeGetCurrentAgentBundle }

// BundleResponse Agent 版本信息
type BundleResponse struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// ==================== 资源配置 ====================

// ConfigureResourceCommand 下发资源配置
type ConfigureResourceCommand struct {
	Entity measurement.EntityID `json:"entity"`
	Config *ConfigResponse      `json:"config"`
}

func (ConfigureResourceCommand) CommandType() Type { return TypeConfigureResource }

// ConfigureResourceResponse 资源配置结果
type ConfigureResourceResponse struct {
	Entity  measurement.EntityID `json:"entity"`
	Keys    int                  `json:"keys"`
	Replace bool                 `json:"replace"` // 是否覆盖了已有配置
}

// RemoveResourceCommand 删除资源，同时取消其全部调度
type RemoveResourceCommand struct {
	Entity measurement.EntityID `json:"entity"`
}

func (RemoveResourceCommand) CommandType() Type { return TypeRemoveResource }

// RemoveResourceResponse 删除结果
type RemoveResourceResponse struct {
	Entity      measurement.EntityID `json:"entity"`
	Removed     bool                 `json:"removed"`
	Unscheduled int                  `json:"unscheduled"`
}

// ==================== 指标调度 ====================

// ScheduleMeasurementsCommand 调度一批指标
type ScheduleMeasurementsCommand struct {
	Measurements []measurement.ScheduledMeasurement `json:"measurements"`
	Rejected     []RejectedMeasurement              `json:"-"` // Agent 端解包时无法解码的记录
}

func (ScheduleMeasurementsCommand) CommandType() Type { return TypeScheduleMeasurements }

// RejectedMeasurement Agent 拒绝调度的指标
type RejectedMeasurement struct {
	DerivedID int64  `json:"derived_id"`
	Reason    string `json:"reason"`
}

// ScheduleMeasurementsResponse 调度结果
type ScheduleMeasurementsResponse struct {
	Scheduled []int64               `json:"scheduled"`
	Rejected  []RejectedMeasurement `json:"rejected,omitempty"`
}

// UnscheduleMeasurementsCommand 取消资源实体上的全部调度
type UnscheduleMeasurementsCommand struct {
	Entities []measurement.EntityID `json:"entities"`
}

func (UnscheduleMeasurementsCommand) CommandType() Type { return TypeUnscheduleMeasurements }

// UnscheduleMeasurementsResponse 取消调度结果
type UnscheduleMeasurementsResponse struct {
	Removed int `json:"removed"`
}

// GetMeasurementsCommand 立即采集；DerivedIDs 为空时采集实体上的全部指标
type GetMeasurementsCommand struct {
	Entity     measurement.EntityID `json:"entity"`
	DerivedIDs []int64              `json:"derived_ids,omitempty"`
}

func (GetMeasurementsCommand) CommandType() Type { return TypeGetMeasurements }

// MeasurementValue 单个指标采集值
type MeasurementValue struct {
	DerivedID int64   `json:"derived_id"`
	DSN       string  `json:"dsn"`
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
	Error     string  `json:"error,omitempty"`
}

// GetMeasurementsResponse 采集结果
type GetMeasurementsResponse struct {
	Values []MeasurementValue `json:"values"`
}

/**
 * 调度指标描述
 * @author: sun977
 * @date: 2026.03.02
 * @description: 绑定到具体资源实体的调度指标描述 (ScheduledMeasurement)
 * @func: 身份与相等性只由 DerivedID 决定
 */
package measurement

import "fmt"

// EntityID 被监控资源的标识 (type, id)
type EntityID struct {
	Type int32 `json:"type"` // 资源类型
	ID   int32 `json:"id"`   // 资源ID
}

// String 返回 "type:id" 形式
func (e EntityID) String() string {
	return fmt.Sprintf("%d:%d", e.Type, e.ID)
}

// ScheduledMeasurement 调度指标描述
// LastCollected 是 Agent 本地运行时状态，不参与编码
type ScheduledMeasurement struct {
	DSN           string   `json:"dsn"`            // 数据源名称
	Interval      int64    `json:"interval"`       // 采集间隔 (毫秒)
	DerivedID     int64    `json:"derived_id"`     // 派生指标ID，身份键
	DSNID         int64    `json:"dsn_id"`         // 数据源ID
	Entity        EntityID `json:"entity"`         // 资源实体
	Category      string   `json:"category"`       // 指标分类
	Units         string   `json:"units"`          // 单位
	LastCollected int64    `json:"last_collected"` // 最近一次成功采集时间 (毫秒)
}

// Key 返回身份键
func (m ScheduledMeasurement) Key() int64 {
	return m.DerivedID
}

// Equal 两条记录 DerivedID 相同即视为同一指标
func (m ScheduledMeasurement) Equal(other ScheduledMeasurement) bool {
	return m.DerivedID == other.DerivedID
}

// Validate 检查调度所需的字段
func (m ScheduledMeasurement) Validate() error {
	if m.DSN == "" {
		return fmt.Errorf("measurement %d: dsn is required", m.DerivedID)
	}
	if m.Interval <= 0 {
		return fmt.Errorf("measurement %d: interval must be positive, got %d", m.DerivedID, m.Interval)
	}
	return nil
}

package mailqueue

import (
	"context"
	"sort"
	"sync"

	"neofleet/internal/pkg/logger"
)

// AgentStatus Master 视角的 Agent 状态
type AgentStatus string

const (
	AgentOnline      AgentStatus = "online"
	AgentUnreachable AgentStatus = "unreachable"
)

// AgentState 单个 Agent 的状态记录
type AgentState struct {
	Token        string      `json:"token"`
	Status       AgentStatus `json:"status"`
	LastSeen     int64       `json:"last_seen"` // 最近一次拉取/上报 (毫秒)
	Abandoned    int         `json:"abandoned"` // 累计老化的请求数
	StatusReason string      `json:"status_reason,omitempty"`
}

// AgentDirectory 记录 Agent 的在线状态，由 HTTP 处理器和老化扫描共同更新
type AgentDirectory struct {
	mu     sync.Mutex
	agents map[string]*AgentState
}

// NewAgentDirectory 创建目录
func NewAgentDirectory() *AgentDirectory {
	return &AgentDirectory{agents: make(map[string]*AgentState)}
}

// Touch Agent 有活动时调用，恢复为 online
func (d *AgentDirectory) Touch(token string, now int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.agents[token]
	if !ok {
		a = &AgentState{Token: token}
		d.agents[token] = a
	}
	if a.Status == AgentUnreachable {
		logger.LogSystemEvent("mailqueue", "agent_recovered", token, logger.InfoLevel, nil)
	}
	a.Status = AgentOnline
	a.StatusReason = ""
	a.LastSeen = now
}

// MarkUnreachable 标记 Agent 不可达
func (d *AgentDirectory) MarkUnreachable(token, reason string, abandoned int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.agents[token]
	if !ok {
		a = &AgentState{Token: token}
		d.agents[token] = a
	}
	a.Status = AgentUnreachable
	a.StatusReason = reason
	a.Abandoned += abandoned
}

// Get 单个 Agent 状态
func (d *AgentDirectory) Get(token string) (AgentState, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.agents[token]
	if !ok {
		return AgentState{}, false
	}
	return *a, true
}

// List 全部 Agent，按令牌排序
func (d *AgentDirectory) List() []AgentState {
	d.mu.Lock()
	out := make([]AgentState, 0, len(d.agents))
	for _, a := range d.agents {
		out = append(out, *a)
	}
	d.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out
}

// AbandonHandler 供 Sweeper 使用：有请求老化的 Agent 被标记为不可达
func (d *AgentDirectory) AbandonHandler() AbandonHandler {
	return func(_ context.Context, stale map[string][]PendingRequest) {
		for token, list := range stale {
			d.MarkUnreachable(token, "pending requests aged out", len(list))
			logger.LogSystemEvent("mailqueue", "agent_unreachable", token, logger.WarnLevel, map[string]interface{}{
				"abandoned": len(list),
			})
		}
	}
}

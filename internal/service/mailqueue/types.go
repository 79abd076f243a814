/**
 * 邮件队列数据模型
 * @author: sun977
 * @date: 2026.03.05
 * @description: 待应答请求、单条错误、入站结果
 * @func: 命令生命周期 Created -> Translated -> Sent -> {Answered | AgedOut}，不允许跳过状态
 */
package mailqueue

import (
	"errors"
	"fmt"

	"neofleet/internal/core/command"
)

var (
	ErrOrphanResponse = errors.New("orphan response")           // 没有对应的 Sent 记录
	ErrMailboxClosed  = errors.New("mailbox is closed")         // 后端已关闭
	ErrEmptyBatch     = errors.New("no commands were enqueued") // 整批翻译失败
)

// State 命令生命周期状态
type State int

const (
	StateCreated State = iota
	StateTranslated
	StateSent
	StateAnswered
	StateAgedOut
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateTranslated:
		return "translated"
	case StateSent:
		return "sent"
	case StateAnswered:
		return "answered"
	case StateAgedOut:
		return "aged_out"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText 以名称形式输出到 JSON
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText 运维客户端解析 JSON 时使用
func (s *State) UnmarshalText(text []byte) error {
	for st := StateCreated; st <= StateAgedOut; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// PendingRequest 已发出但尚未应答的请求
// 老化扫描返回的也是这个结构 (State=AgedOut)
type PendingRequest struct {
	CorrelationID string           `json:"correlation_id"`
	AgentToken    string           `json:"agent_token"`
	CommandUUID   string           `json:"command_uuid"`
	Type          command.Type     `json:"type"`
	State         State            `json:"state"`
	CreatedAt     int64            `json:"created_at"` // 毫秒
	UpdatedAt     int64            `json:"updated_at"` // 最近一次状态变更，老化以此计算
	Request       *command.Request `json:"-"`
}

// Age 距最近一次状态变更的毫秒数
func (p PendingRequest) Age(now int64) int64 {
	return now - p.UpdatedAt
}

// ItemError 批处理中单条失败，不影响同批其他条目
type ItemError struct {
	Index         int          `json:"index"`
	CorrelationID string       `json:"correlation_id,omitempty"`
	Type          command.Type `json:"type,omitempty"`
	Err           error        `json:"-"`
}

func (e *ItemError) Error() string {
	if e.CorrelationID != "" {
		return fmt.Sprintf("item %d [%s]: %v", e.Index, e.CorrelationID, e.Err)
	}
	return fmt.Sprintf("item %d (%s): %v", e.Index, e.Type, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// Incoming 解码后的入站结果
// RemoteError 非空时 Response 为 nil，表示 Agent 端执行失败
type Incoming struct {
	ID          command.CorrelationID `json:"-"`
	Response    any                   `json:"response,omitempty"`
	RemoteError string                `json:"remote_error,omitempty"`
	SentAt      int64                 `json:"sent_at"`
	AnsweredAt  int64                 `json:"answered_at"`
}

// Stats 队列计数
type Stats struct {
	Translated uint64 `json:"translated"`
	Sent       uint64 `json:"sent"`
	Answered   uint64 `json:"answered"`
	Orphans    uint64 `json:"orphans"`
	Expired    uint64 `json:"expired"`
	Failed     uint64 `json:"failed"`
	Pending    int    `json:"pending"`
}

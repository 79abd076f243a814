package mailqueue

import (
	"context"
	"sync"

	"neofleet/internal/core/command"
)

// Mailbox 每个 Agent 一个先进先出邮箱，保存等待被拉取的信封
type Mailbox interface {
	Push(ctx context.Context, agentToken string, reqs []*command.Request) error
	// Drain 取出最多 max 个信封，max<=0 表示全部
	Drain(ctx context.Context, agentToken string, max int) ([]*command.Request, error)
	Len(ctx context.Context, agentToken string) (int, error)
}

// MemoryMailbox 进程内邮箱，Master 单实例部署时使用
type MemoryMailbox struct {
	mu    sync.Mutex
	boxes map[string][]*command.Request
}

// NewMemoryMailbox 创建内存邮箱
func NewMemoryMailbox() *MemoryMailbox {
	return &MemoryMailbox{boxes: make(map[string][]*command.Request)}
}

func (m *MemoryMailbox) Push(ctx context.Context, agentToken string, reqs []*command.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boxes[agentToken] = append(m.boxes[agentToken], reqs...)
	return nil
}

func (m *MemoryMailbox) Drain(ctx context.Context, agentToken string, max int) ([]*command.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	box := m.boxes[agentToken]
	n := len(box)
	if max > 0 && max < n {
		n = max
	}
	out := make([]*command.Request, n)
	copy(out, box[:n])
	if n == len(box) {
		delete(m.boxes, agentToken)
	} else {
		m.boxes[agentToken] = append([]*command.Request(nil), box[n:]...)
	}
	return out, nil
}

func (m *MemoryMailbox) Len(ctx context.Context, agentToken string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.boxes[agentToken]), nil
}

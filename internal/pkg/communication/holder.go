package communication

import (
	"fmt"
	"sync"

	"neofleet/internal/config"
)

// Holder 持有当前客户端，配置变更时整体替换
// 已经取得旧客户端的调用继续使用旧实例完成
type Holder struct {
	mu     sync.RWMutex
	client *Client
}

// NewHolder 创建 Holder
func NewHolder(c *Client) *Holder {
	return &Holder{client: c}
}

// Get 当前客户端
func (h *Holder) Get() *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.client
}

// Swap 替换客户端，返回旧实例
func (h *Holder) Swap(c *Client) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	old := h.client
	h.client = c
	return old
}

// Reconfigure 按新配置重建客户端；失败时保留旧客户端
func (h *Holder) Reconfigure(cfg *config.MasterConfig, agentToken string) error {
	c, err := NewClientFromConfig(cfg, agentToken)
	if err != nil {
		return fmt.Errorf("rebuild master client: %w", err)
	}
	old := h.Swap(c)
	if old != nil {
		old.client.CloseIdleConnections()
	}
	return nil
}

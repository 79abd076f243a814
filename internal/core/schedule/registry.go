/**
 * 调度注册表
 * @author: sun977
 * @date: 2026.03.02
 * @description: 活跃调度项集合，按 ID 唯一
 * @func: 单把互斥锁保护全部读写，DueItems 与 AdvanceAll 之间不会重复触发
 */
package schedule

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Registry 调度项注册表
type Registry struct {
	mu     sync.Mutex
	items  map[int64]*Item
	nextID atomic.Int64
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{items: make(map[int64]*Item)}
}

// NextID 分配一个新的进程内唯一 ID
func (r *Registry) NextID() int64 {
	return r.nextID.Add(1) - 1
}

// Add 添加调度项，ID 已存在时覆盖 (重新调度)
// 周期或偏移不合法的调度项被拒绝，注册表保持不变
func (r *Registry) Add(item Item) error {
	if item.ID < 0 {
		return invalidConfig("id must be non-negative, got %d", item.ID)
	}
	if err := ValidateConfig(item.Interval, item.Offset); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := item
	r.items[item.ID] = &cp
	return nil
}

// Remove 删除调度项，返回是否存在
func (r *Registry) Remove(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return false
	}
	delete(r.items, id)
	return true
}

// RemoveWhere 删除满足条件的调度项，返回删除数量
func (r *Registry) RemoveWhere(pred func(Item) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, it := range r.items {
		if pred(*it) {
			delete(r.items, id)
			n++
		}
	}
	return n
}

// UpdatePayload 在锁内基于当前载荷生成新载荷，不影响触发时间
func (r *Registry) UpdatePayload(id int64, fn func(current any) any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return false
	}
	it.Payload = fn(it.Payload)
	return true
}

// Get 返回调度项副本
func (r *Registry) Get(id int64) (Item, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return Item{}, false
	}
	return *it, true
}

// Len 调度项数量
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// DueItems 返回 NextTime <= now 的调度项副本，按 NextTime、ID 排序
func (r *Registry) DueItems(now int64) []Item {
	r.mu.Lock()
	due := make([]Item, 0)
	for _, it := range r.items {
		if it.Due(now) {
			due = append(due, *it)
		}
	}
	r.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].NextTime != due[j].NextTime {
			return due[i].NextTime < due[j].NextTime
		}
		return due[i].ID < due[j].ID
	})
	return due
}

// AdvanceAll 对已触发的调度项执行 Advance，一次性调度项直接移除
// 只处理 NextTime 与 due 快照一致的项，期间被重新调度或已推进过的项保持不变
func (r *Registry) AdvanceAll(due []Item, now int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range due {
		it, ok := r.items[d.ID]
		if !ok || it.NextTime != d.NextTime {
			continue
		}
		if !it.Repeat {
			delete(r.items, d.ID)
			continue
		}
		Advance(it, now)
	}
}

// NextDue 返回最早的 NextTime
func (r *Registry) NextDue() (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var (
		min   int64
		found bool
	)
	for _, it := range r.items {
		if !found || it.NextTime < min {
			min = it.NextTime
			found = true
		}
	}
	return min, found
}

// Snapshot 返回全部调度项副本，按 ID 排序
func (r *Registry) Snapshot() []Item {
	r.mu.Lock()
	out := make([]Item, 0, len(r.items))
	for _, it := range r.items {
		out = append(out, *it)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

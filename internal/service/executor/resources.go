package executor

import (
	"sort"
	"sync"

	"neofleet/internal/core/command"
	"neofleet/internal/core/measurement"
)

// ResourceStore Agent 本地的资源配置，由 CONFIGURE_RESOURCE / REMOVE_RESOURCE 维护
// 配置对象不可变，读写只替换引用
type ResourceStore struct {
	mu        sync.RWMutex
	resources map[measurement.EntityID]*command.ConfigResponse
}

// NewResourceStore 创建空存储
func NewResourceStore() *ResourceStore {
	return &ResourceStore{resources: make(map[measurement.EntityID]*command.ConfigResponse)}
}

// Put 保存配置，返回是否覆盖了已有配置
func (s *ResourceStore) Put(entity measurement.EntityID, cfg *command.ConfigResponse) bool {
	if cfg == nil {
		cfg = command.NewConfigResponse(nil, nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.resources[entity]
	s.resources[entity] = cfg
	return existed
}

// Get 读取配置
func (s *ResourceStore) Get(entity measurement.EntityID) (*command.ConfigResponse, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.resources[entity]
	return cfg, ok
}

// Remove 删除配置
func (s *ResourceStore) Remove(entity measurement.EntityID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.resources[entity]; !ok {
		return false
	}
	delete(s.resources, entity)
	return true
}

// Entities 已配置的实体，按 (type, id) 排序
func (s *ResourceStore) Entities() []measurement.EntityID {
	s.mu.RLock()
	out := make([]measurement.EntityID, 0, len(s.resources))
	for e := range s.resources {
		out = append(out, e)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len 资源数量
func (s *ResourceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.resources)
}

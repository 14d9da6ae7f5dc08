package breaker

import (
	"fmt"
	"sort"
	"sync"
)

// Registry 持有进程级的具名熔断器。熔断器在启动时创建一次，再注入到使用方。
type Registry struct {
	mu       sync.RWMutex
	observer Observer
	breakers map[string]*Breaker
}

func NewRegistry(observer Observer) *Registry {
	return &Registry{
		observer: observer,
		breakers: make(map[string]*Breaker),
	}
}

// Register 创建并登记一个熔断器，同名重复注册返回错误。
func (r *Registry) Register(settings Settings) (*Breaker, error) {
	if settings.Name == "" {
		return nil, fmt.Errorf("breaker name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.breakers[settings.Name]; exists {
		return nil, fmt.Errorf("breaker %q already registered", settings.Name)
	}
	b := New(settings, r.observer)
	r.breakers[settings.Name] = b
	return b, nil
}

func (r *Registry) Get(name string) (*Breaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.breakers[name]
	return b, ok
}

// Snapshot 按名称排序返回所有熔断器的状态。
func (r *Registry) Snapshot() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Snapshot, 0, len(r.breakers))
	for _, b := range r.breakers {
		out = append(out, b.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

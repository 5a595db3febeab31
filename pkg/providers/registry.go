package providers

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownEngine 注册表中没有该引擎
var ErrUnknownEngine = errors.New("unknown translation engine")

// Registry 翻译引擎注册表，键为配置中的引擎名（如 iflyrec、deeplx）
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry 创建新的注册表
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register 注册引擎，同名重复注册返回错误
func (r *Registry) Register(name string, provider Provider) error {
	if name == "" || provider == nil {
		return fmt.Errorf("register engine: empty name or nil provider")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("engine %s already registered", name)
	}
	r.providers[name] = provider
	return nil
}

// Get 按名称获取引擎
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEngine, name)
	}
	return provider, nil
}

// List 按名称排序列出所有引擎
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Attributions 返回 引擎名 -> 来源说明，用于展示
func (r *Registry) Attributions() map[string]Attribution {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Attribution, len(r.providers))
	for name, p := range r.providers {
		out[name] = p.Attribution()
	}
	return out
}

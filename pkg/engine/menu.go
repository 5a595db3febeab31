package engine

import (
	"fmt"
	"sync"
)

// 功能开关键名
const (
	FlagRegexp    = "enable_RegExp"
	FlagTransDesc = "enable_transDesc"
)

// FlagStore 功能开关存储。SetBool 成功后须同步通知订阅者。
type FlagStore interface {
	Bool(key string, def bool) bool
	SetBool(key string, value bool) error
	Subscribe(fn func(key string, value bool)) (unsubscribe func())
}

// MenuItem 菜单项
type MenuItem struct {
	Key     string
	Label   string
	Enabled bool
}

var menuLabels = []struct{ key, label string }{
	{FlagRegexp, "正则功能"},
	{FlagTransDesc, "描述翻译"},
}

// Menu 返回菜单项及当前状态
func (e *Engine) Menu() []MenuItem {
	items := make([]MenuItem, 0, len(menuLabels))
	for _, m := range menuLabels {
		items = append(items, MenuItem{Key: m.key, Label: m.label, Enabled: e.flags.Bool(m.key, true)})
	}
	return items
}

// Toggle 翻转开关并返回新值。存储通知引擎后立即生效。
// 不能在 Do 的回调中调用。
func (e *Engine) Toggle(key string) (bool, error) {
	if key != FlagRegexp && key != FlagTransDesc {
		return false, fmt.Errorf("unknown feature flag %q", key)
	}
	v := !e.flags.Bool(key, true)
	if err := e.flags.SetBool(key, v); err != nil {
		return false, fmt.Errorf("save feature flag %s: %w", key, err)
	}
	return v, nil
}

// onFlag 开关变化回调
func (e *Engine) onFlag(key string, value bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch key {
	case FlagRegexp:
		e.features.regexp = value
		if value && e.started && e.scope.Load() != nil {
			e.traverse(e.doc.Body())
		}
	case FlagTransDesc:
		e.features.desc = value
		if !e.started {
			return
		}
		if value {
			e.installDescControl()
		} else {
			e.removeDescControl()
		}
	default:
		return
	}
	e.drain()
}

// MemoryFlags 内存中的开关存储
type MemoryFlags struct {
	mu     sync.RWMutex
	values map[string]bool
	subs   map[int]func(string, bool)
	nextID int
}

// NewMemoryFlags 创建内存存储
func NewMemoryFlags() *MemoryFlags {
	return &MemoryFlags{
		values: make(map[string]bool),
		subs:   make(map[int]func(string, bool)),
	}
}

// Bool 读取开关
func (m *MemoryFlags) Bool(key string, def bool) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.values[key]; ok {
		return v
	}
	return def
}

// SetBool 写入开关并通知订阅者
func (m *MemoryFlags) SetBool(key string, value bool) error {
	m.mu.Lock()
	m.values[key] = value
	subs := make([]func(string, bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(key, value)
	}
	return nil
}

// Subscribe 订阅变化
func (m *MemoryFlags) Subscribe(fn func(string, bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

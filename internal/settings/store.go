// Package settings 持久化功能开关。文件为 YAML，写入后同步通知订阅者。
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Store 开关存储
type Store struct {
	path     string
	defaults map[string]bool

	mu     sync.RWMutex
	values map[string]bool
	subs   map[int]func(string, bool)
	nextID int
}

// Open 打开设置文件，文件不存在时视为空
func Open(path string, defaults map[string]bool) (*Store, error) {
	s := &Store{
		path:     path,
		defaults: defaults,
		values:   make(map[string]bool),
		subs:     make(map[int]func(string, bool)),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("读取设置文件失败: %w", err)
	}
	if err := yaml.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("解析设置文件 %s 失败: %w", path, err)
	}
	if s.values == nil {
		s.values = make(map[string]bool)
	}
	return s, nil
}

// Path 返回设置文件路径
func (s *Store) Path() string {
	return s.path
}

// Bool 读取开关：文件中的值优先，其次是默认值表，最后是 def
func (s *Store) Bool(key string, def bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[key]; ok {
		return v
	}
	if v, ok := s.defaults[key]; ok {
		return v
	}
	return def
}

// SetBool 写入开关并落盘，成功后同步通知订阅者
func (s *Store) SetBool(key string, value bool) error {
	s.mu.Lock()
	prev, had := s.values[key]
	s.values[key] = value
	if err := s.save(); err != nil {
		if had {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		s.mu.Unlock()
		return err
	}
	subs := s.subscribers()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(key, value)
	}
	return nil
}

// Subscribe 订阅变化，返回取消函数
func (s *Store) Subscribe(fn func(key string, value bool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// All 返回全部已知开关（含默认值），按键名排序
func (s *Store) All() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make(map[string]struct{})
	for k := range s.defaults {
		keys[k] = struct{}{}
	}
	for k := range s.values {
		keys[k] = struct{}{}
	}

	entries := make([]Entry, 0, len(keys))
	for k := range keys {
		v, stored := s.values[k]
		if !stored {
			v = s.defaults[k]
		}
		entries = append(entries, Entry{Key: k, Value: v, Stored: stored})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

// Entry 开关项
type Entry struct {
	Key   string
	Value bool
	// 是否来自设置文件
	Stored bool
}

// subscribers 按订阅顺序返回回调，调用方持有锁
func (s *Store) subscribers() []func(string, bool) {
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(string, bool), 0, len(ids))
	for _, id := range ids {
		out = append(out, s.subs[id])
	}
	return out
}

// save 原子写入：先写临时文件再改名
func (s *Store) save() error {
	if s.path == "" {
		return nil
	}
	data, err := yaml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("序列化设置失败: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("创建设置目录失败: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("写入设置文件失败: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("保存设置文件失败: %w", err)
	}
	return nil
}

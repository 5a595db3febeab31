package i18n

import (
	"embed"
	"fmt"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Builtin 返回内置示例词库
func Builtin() (*Repository, error) {
	data, err := builtinFS.ReadFile("builtin/zh-CN.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read builtin rules: %w", err)
	}
	part, err := Decode(data, FormatYAML)
	if err != nil {
		return nil, fmt.Errorf("builtin rules: %w", err)
	}
	repo := NewRepository()
	repo.Merge(part)
	return repo, nil
}

// LoadOrBuiltin path 为空时使用内置词库
func LoadOrBuiltin(path string) (*Repository, error) {
	if path == "" {
		return Builtin()
	}
	return Load(path)
}

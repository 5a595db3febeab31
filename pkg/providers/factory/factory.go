// Package factory 根据配置创建翻译引擎
package factory

import (
	"fmt"
	"sort"
	"time"

	"github.com/nerdneilsfield/go-github-chinese/pkg/providers"
	"github.com/nerdneilsfield/go-github-chinese/pkg/providers/httpjson"
	"github.com/nerdneilsfield/go-github-chinese/pkg/providers/ollama"
	"github.com/nerdneilsfield/go-github-chinese/pkg/providers/openai"
	"github.com/nerdneilsfield/go-github-chinese/pkg/providers/retry"
)

// 引擎类型
const (
	TypeHTTPJSON = "httpjson"
	TypeOpenAI   = "openai"
	TypeOllama   = "ollama"
)

// EngineConfig 单个引擎的配置。Preset 非空时以内置配置为底，其余非零字段覆盖。
type EngineConfig struct {
	Type   string `mapstructure:"type"`
	Preset string `mapstructure:"preset"`

	Name     string            `mapstructure:"name"`
	URL      string            `mapstructure:"url"`
	Endpoint string            `mapstructure:"endpoint"`
	APIKey   string            `mapstructure:"api_key"`
	Headers  map[string]string `mapstructure:"headers"`
	Timeout  time.Duration     `mapstructure:"timeout"`
	Retries  int               `mapstructure:"retries"`

	// httpjson
	Method       string `mapstructure:"method"`
	Template     string `mapstructure:"template"`
	TextPath     string `mapstructure:"text_path"`
	ResponsePath string `mapstructure:"response_path"`

	// openai / ollama
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// ProviderFactory 引擎工厂
type ProviderFactory struct {
	registry *providers.Registry
}

// New 创建工厂
func New() *ProviderFactory {
	return &ProviderFactory{
		registry: providers.NewRegistry(),
	}
}

// Registry 返回已创建引擎的注册表
func (f *ProviderFactory) Registry() *providers.Registry {
	return f.registry
}

// Build 注册全部内置引擎，再按名称顺序创建配置中的引擎（同名覆盖内置）
func (f *ProviderFactory) Build(engines map[string]EngineConfig) error {
	presets := httpjson.Presets()
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, overridden := engines[name]; overridden {
			continue
		}
		p, err := httpjson.New(name, presets[name])
		if err != nil {
			return err
		}
		if err := f.registry.Register(name, p); err != nil {
			return err
		}
	}

	names = names[:0]
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p, err := f.CreateProvider(name, engines[name])
		if err != nil {
			return err
		}
		if err := f.registry.Register(name, p); err != nil {
			return err
		}
	}
	return nil
}

// CreateProvider 根据配置创建引擎
func (f *ProviderFactory) CreateProvider(name string, ec EngineConfig) (providers.Provider, error) {
	typ := ec.Type
	if typ == "" {
		typ = TypeHTTPJSON
	}
	switch typ {
	case TypeHTTPJSON:
		return f.createHTTPJSON(name, ec)
	case TypeOpenAI:
		return f.createOpenAI(ec), nil
	case TypeOllama:
		return f.createOllama(ec), nil
	default:
		return nil, fmt.Errorf("unsupported engine type %q for %s", typ, name)
	}
}

func (f *ProviderFactory) createHTTPJSON(name string, ec EngineConfig) (providers.Provider, error) {
	presetName := ec.Preset
	if presetName == "" {
		presetName = name
	}
	cfg, ok := httpjson.Preset(presetName)
	if !ok {
		if ec.Preset != "" {
			return nil, fmt.Errorf("unknown engine preset %q", ec.Preset)
		}
		cfg = httpjson.Config{BaseConfig: providers.DefaultConfig(), Retry: retry.DefaultRetryConfig()}
	}

	applyBase(&cfg.BaseConfig, ec)
	if ec.Name != "" {
		cfg.Name = ec.Name
	}
	if ec.URL != "" {
		cfg.SiteURL = ec.URL
	}
	if ec.Method != "" {
		cfg.Method = ec.Method
	}
	if ec.Template != "" {
		cfg.Template = ec.Template
	}
	if ec.TextPath != "" {
		cfg.TextPath = ec.TextPath
	}
	if ec.ResponsePath != "" {
		cfg.ResponsePath = ec.ResponsePath
	}
	if ec.Retries > 0 {
		cfg.Retry.MaxRetries = ec.Retries
	}
	return httpjson.New(name, cfg)
}

func (f *ProviderFactory) createOpenAI(ec EngineConfig) providers.Provider {
	cfg := openai.DefaultConfig()
	applyBase(&cfg.BaseConfig, ec)
	if ec.Model != "" {
		cfg.Model = ec.Model
	}
	if ec.Temperature > 0 {
		cfg.Temperature = ec.Temperature
	}
	if ec.MaxTokens > 0 {
		cfg.MaxTokens = ec.MaxTokens
	}
	cfg.MaxRetries = ec.Retries
	return openai.New(cfg)
}

func (f *ProviderFactory) createOllama(ec EngineConfig) providers.Provider {
	cfg := ollama.DefaultConfig()
	applyBase(&cfg.BaseConfig, ec)
	if ec.Model != "" {
		cfg.Model = ec.Model
	}
	if ec.Temperature > 0 {
		cfg.Temperature = ec.Temperature
	}
	if ec.MaxTokens > 0 {
		cfg.MaxTokens = ec.MaxTokens
	}
	cfg.RetryConfig.MaxRetries = ec.Retries
	return ollama.New(cfg)
}

func applyBase(base *providers.BaseConfig, ec EngineConfig) {
	if ec.Endpoint != "" {
		base.APIEndpoint = ec.Endpoint
	}
	if ec.APIKey != "" {
		base.APIKey = ec.APIKey
	}
	if ec.Timeout > 0 {
		base.Timeout = ec.Timeout
	}
	if len(ec.Headers) > 0 {
		merged := make(map[string]string, len(base.Headers)+len(ec.Headers))
		for k, v := range base.Headers {
			merged[k] = v
		}
		for k, v := range ec.Headers {
			merged[k] = v
		}
		base.Headers = merged
	}
}

// SupportedTypes 支持的引擎类型
func SupportedTypes() []string {
	return []string{TypeHTTPJSON, TypeOpenAI, TypeOllama}
}

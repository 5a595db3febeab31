// Package providers 定义远程翻译引擎的统一接口与注册表。
package providers

import (
	"context"
	"time"
)

// BaseConfig 基础配置
type BaseConfig struct {
	// API配置
	APIKey      string `json:"api_key,omitempty" mapstructure:"api_key"`
	APIEndpoint string `json:"api_endpoint,omitempty" mapstructure:"api_endpoint"`

	// 超时和重试
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries int           `json:"max_retries" mapstructure:"max_retries"`
	RetryDelay time.Duration `json:"retry_delay" mapstructure:"retry_delay"`

	// 代理设置
	ProxyURL string `json:"proxy_url,omitempty" mapstructure:"proxy_url"`

	// 自定义头部
	Headers map[string]string `json:"headers,omitempty" mapstructure:"headers"`
}

// DefaultTimeout 远程请求默认超时
const DefaultTimeout = 30 * time.Second

// DefaultConfig 返回默认配置
func DefaultConfig() BaseConfig {
	return BaseConfig{
		Timeout:    DefaultTimeout,
		MaxRetries: 0,
		RetryDelay: time.Second,
		Headers:    make(map[string]string),
	}
}

// Attribution 译文来源说明，显示在结果块中
type Attribution struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Provider 远程翻译引擎
type Provider interface {
	// Translate 执行翻译
	Translate(ctx context.Context, req *Request) (*Response, error)

	// GetName 获取引擎名称
	GetName() string

	// Attribution 返回来源说明
	Attribution() Attribution
}

// Request 翻译请求
type Request struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"source_language,omitempty"`
	TargetLanguage string `json:"target_language,omitempty"`
}

// Response 翻译响应
type Response struct {
	Text      string            `json:"text"`
	TokensIn  int               `json:"tokens_in,omitempty"`
	TokensOut int               `json:"tokens_out,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Error 提供商错误
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable 判断错误是否可重试
func (e *Error) IsRetryable() bool {
	switch e.Code {
	case "rate_limit", "timeout", "server_error":
		return true
	default:
		return false
	}
}

// NewError 创建提供商错误
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WrapError 包装底层错误
func WrapError(code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

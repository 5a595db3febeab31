// Package retry 为远程翻译请求提供重试与错误分类。
package retry

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// RetryConfig 重试配置
type RetryConfig struct {
	// 最大重试次数，0 表示不重试
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`

	// 初始延迟时间
	InitialDelay time.Duration `json:"initial_delay" mapstructure:"initial_delay"`

	// 最大延迟时间
	MaxDelay time.Duration `json:"max_delay" mapstructure:"max_delay"`

	// 退避因子（指数退避）
	BackoffFactor float64 `json:"backoff_factor" mapstructure:"backoff_factor"`
}

// DefaultRetryConfig 返回默认重试配置。简介翻译由用户点击触发，默认只重试一次。
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    1,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
	}
}

// ErrorType 错误类型枚举
type ErrorType int

const (
	ErrorTypeNone          ErrorType = iota
	ErrorTypeTimeout                 // 超时
	ErrorTypeNetwork                 // 网络瞬时错误
	ErrorTypeRetryableHTTP           // 可重试的HTTP错误（429）
	ErrorTypeClientError             // 客户端错误（4xx）
	ErrorTypeServerError             // 服务端错误（5xx）
	ErrorTypePermanent               // 永久性错误
)

// String 返回显示在失败提示中的分类名
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeNone:
		return "none"
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeRetryableHTTP:
		return "rate_limit"
	case ErrorTypeClientError:
		return "client_error"
	case ErrorTypeServerError:
		return "server_error"
	default:
		return "error"
	}
}

// Classify 把传输层错误归类为 timeout、network 或 error
func Classify(err error) string {
	switch classifyError(err, nil) {
	case ErrorTypeNone:
		return ""
	case ErrorTypeTimeout:
		return ErrorTypeTimeout.String()
	case ErrorTypeNetwork:
		return ErrorTypeNetwork.String()
	default:
		return "error"
	}
}

// NetworkRetrier 网络重试器
type NetworkRetrier struct {
	config RetryConfig
}

// NewNetworkRetrier 创建网络重试器
func NewNetworkRetrier(config RetryConfig) *NetworkRetrier {
	return &NetworkRetrier{
		config: config,
	}
}

// RetryableFunc 可重试的函数类型
type RetryableFunc func() (*http.Response, error)

// ExecuteWithRetry 执行带重试的函数。
// 返回的非 2xx 响应由调用方关闭。
func (nr *NetworkRetrier) ExecuteWithRetry(ctx context.Context, fn RetryableFunc) (*http.Response, error) {
	var lastErr error
	var lastResp *http.Response

	for attempt := 0; attempt <= nr.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := fn()
		if err == nil && resp != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if lastResp != nil {
				lastResp.Body.Close()
			}
			return resp, nil
		}

		if lastResp != nil {
			lastResp.Body.Close()
			lastResp = nil
		}
		lastErr = err
		lastResp = resp

		if !shouldRetry(classifyError(err, resp)) || attempt == nr.config.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			if lastResp != nil {
				lastResp.Body.Close()
			}
			return nil, ctx.Err()
		case <-time.After(nr.calculateDelay(attempt)):
		}
	}

	if lastErr != nil {
		if lastResp != nil {
			lastResp.Body.Close()
		}
		return nil, lastErr
	}
	if lastResp != nil {
		return lastResp, nil
	}
	return nil, errors.New("no response received")
}

// classifyError 分类错误
func classifyError(err error, resp *http.Response) ErrorType {
	if err != nil {
		if isTimeout(err) {
			return ErrorTypeTimeout
		}
		if isNetworkError(err) {
			return ErrorTypeNetwork
		}
		return ErrorTypePermanent
	}

	if resp != nil {
		switch {
		case resp.StatusCode >= 500:
			return ErrorTypeServerError
		case resp.StatusCode == http.StatusTooManyRequests:
			return ErrorTypeRetryableHTTP
		case resp.StatusCode >= 400:
			return ErrorTypeClientError
		}
	}

	return ErrorTypeNone
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isNetworkError 判断是否为网络错误
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil && urlErr.Err != err {
		if isNetworkError(urlErr.Err) {
			return true
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	// 检查错误消息模式
	errStr := strings.ToLower(err.Error())
	networkPatterns := []string{
		"connection refused",
		"connection reset",
		"network is unreachable",
		"no such host",
		"broken pipe",
		"eof",
	}
	for _, pattern := range networkPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// shouldRetry 超时、网络错误与 5xx/429 可重试
func shouldRetry(t ErrorType) bool {
	switch t {
	case ErrorTypeTimeout, ErrorTypeNetwork, ErrorTypeServerError, ErrorTypeRetryableHTTP:
		return true
	default:
		return false
	}
}

// calculateDelay 计算延迟时间
func (nr *NetworkRetrier) calculateDelay(attempt int) time.Duration {
	delay := nr.config.InitialDelay
	if attempt > 0 {
		factor := nr.config.BackoffFactor
		if factor <= 1.0 {
			factor = 2.0
		}
		delay = time.Duration(float64(delay) * math.Pow(factor, float64(attempt)))
	}
	if nr.config.MaxDelay > 0 && delay > nr.config.MaxDelay {
		delay = nr.config.MaxDelay
	}
	return delay
}

// WrapHTTPClient 包装HTTP客户端，添加重试功能
func (nr *NetworkRetrier) WrapHTTPClient(client *http.Client) *RetryableHTTPClient {
	return &RetryableHTTPClient{
		client:  client,
		retrier: nr,
	}
}

// RetryableHTTPClient 可重试的HTTP客户端
type RetryableHTTPClient struct {
	client  *http.Client
	retrier *NetworkRetrier
}

// Do 执行HTTP请求（带重试）
func (rc *RetryableHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return rc.retrier.ExecuteWithRetry(req.Context(), func() (*http.Response, error) {
		cloned := req.Clone(req.Context())
		// 重新获取请求体，避免重试时 Body 已被读完
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			cloned.Body = body
		}
		return rc.client.Do(cloned)
	})
}

package retry

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"syscall"
	"time"
)

// RetryConfig 重试配置
type RetryConfig struct {
	// 最大重试次数（不含首次请求）
	MaxRetries int `json:"max_retries"`

	// 初始延迟时间
	InitialDelay time.Duration `json:"initial_delay"`

	// 最大延迟时间
	MaxDelay time.Duration `json:"max_delay"`

	// 退避因子（指数退避）
	BackoffFactor float64 `json:"backoff_factor"`
}

// DefaultRetryConfig 返回默认重试配置。
// 翻译只是增强功能，重试次数保持很少，失败后交给上层的回退链处理。
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
	ErrorTypeNetwork                 // 网络瞬时错误
	ErrorTypeRetryableHTTP           // 可重试的HTTP错误（429）
	ErrorTypeClientError             // 客户端错误（4xx）
	ErrorTypeServerError             // 服务端错误（5xx）
	ErrorTypePermanent               // 永久性错误
)

// NetworkRetrier 网络重试器
type NetworkRetrier struct {
	config RetryConfig
}

// NewNetworkRetrier 创建网络重试器
func NewNetworkRetrier(config RetryConfig) *NetworkRetrier {
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	return &NetworkRetrier{
		config: config,
	}
}

// RetryableFunc 可重试的函数类型
type RetryableFunc func() (*http.Response, error)

// ExecuteWithRetry 执行带重试的函数。
// 返回最后一次的响应（可能是非 2xx），由调用方检查状态码。
func (nr *NetworkRetrier) ExecuteWithRetry(ctx context.Context, fn RetryableFunc) (*http.Response, error) {
	var (
		resp *http.Response
		err  error
	)

	for attempt := 0; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		resp, err = fn()
		errorType := nr.classifyError(err, resp)
		if errorType == ErrorTypeNone || attempt >= nr.config.MaxRetries || !nr.shouldRetry(errorType) {
			return resp, err
		}

		// 丢弃本次响应后重试
		if resp != nil {
			resp.Body.Close()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(nr.calculateDelay(attempt + 1)):
		}
	}
}

// classifyError 分类错误
func (nr *NetworkRetrier) classifyError(err error, resp *http.Response) ErrorType {
	if err != nil {
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

// isNetworkError 判断是否为网络错误
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	// 超过请求自身的超时不再重试，避免一个挂起的请求拖住整次翻译
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}

// shouldRetry 判断是否应该重试
func (nr *NetworkRetrier) shouldRetry(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeServerError, ErrorTypeRetryableHTTP:
		return true
	default:
		return false
	}
}

// calculateDelay 计算延迟时间
func (nr *NetworkRetrier) calculateDelay(retryCount int) time.Duration {
	delay := nr.config.InitialDelay

	// 指数退避
	if retryCount > 1 {
		backoffFactor := nr.config.BackoffFactor
		if backoffFactor <= 1.0 {
			backoffFactor = 2.0
		}
		delay = time.Duration(float64(delay) * math.Pow(backoffFactor, float64(retryCount-1)))
	}

	// 限制最大延迟
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
		// 克隆请求并重建 Body，避免重试时 Body 已被读完
		clonedReq := req.Clone(req.Context())
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			clonedReq.Body = body
		}
		return rc.client.Do(clonedReq)
	})
}

package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nerdneilsfield/page-translator/pkg/lang"
)

// SourceAuto 由服务端自动检测源语言
const SourceAuto = "auto"

// BaseConfig 基础配置
type BaseConfig struct {
	// API配置
	APIKey      string `json:"api_key,omitempty"`
	APIEndpoint string `json:"api_endpoint,omitempty"`

	// 超时和重试，每个请求都带有自己的超时
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`
	RetryDelay time.Duration `json:"retry_delay"`

	// 自定义头部
	Headers map[string]string `json:"headers,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() BaseConfig {
	return BaseConfig{
		Timeout:    10 * time.Second,
		MaxRetries: 1,
		RetryDelay: 200 * time.Millisecond,
		Headers:    make(map[string]string),
	}
}

// Translator 单文本翻译提供商
type Translator interface {
	// Translate 执行翻译
	Translate(ctx context.Context, req *Request) (*Response, error)

	// Name 获取提供商名称
	Name() string
}

// Request 提供商请求
type Request struct {
	Text           string    `json:"text"`
	SourceLanguage string    `json:"source_language,omitempty"` // 语言代码或 "auto"
	TargetLanguage lang.Code `json:"target_language"`
}

// Response 提供商响应
type Response struct {
	Text           string `json:"text"`
	Provider       string `json:"provider"`
	DetectedSource string `json:"detected_source,omitempty"`
}

// 错误代码
const (
	ErrCodeNetwork   = "network"
	ErrCodeTimeout   = "timeout"
	ErrCodeRateLimit = "rate_limit"
	ErrCodeServer    = "server_error"
	ErrCodeClient    = "client_error"
	ErrCodeMalformed = "malformed_response"
)

// ErrMalformedResponse 响应格式不符合预期
var ErrMalformedResponse = errors.New("malformed response")

// Error 提供商错误
type Error struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code,omitempty"`
	Cause      error  `json:"-"`
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("[%s] %s (status %d)", e.Code, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回原因错误
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable 判断错误是否可重试
func (e *Error) IsRetryable() bool {
	switch e.Code {
	case ErrCodeRateLimit, ErrCodeTimeout, ErrCodeServer, ErrCodeNetwork:
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

// Malformed 创建响应格式错误
func Malformed(format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeMalformed,
		Message: fmt.Sprintf(format, args...),
		Cause:   ErrMalformedResponse,
	}
}

// HTTPDoer 执行 HTTP 请求
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoJSON 执行请求并把 2xx 响应解码到 out，其他情况返回 *Error
func DoJSON(client HTTPDoer, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		code := ErrCodeNetwork
		if errors.Is(err, context.DeadlineExceeded) {
			code = ErrCodeTimeout
		}
		return &Error{Code: code, Message: err.Error(), Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Code: ErrCodeNetwork, Message: "failed to read response", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		code := ErrCodeClient
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			code = ErrCodeRateLimit
		case resp.StatusCode >= 500:
			code = ErrCodeServer
		}
		return &Error{Code: code, Message: http.StatusText(resp.StatusCode), StatusCode: resp.StatusCode}
	}

	if err := json.Unmarshal(body, out); err != nil {
		e := Malformed("failed to decode response: %v", err)
		e.StatusCode = resp.StatusCode
		return e
	}
	return nil
}

// Package primary 是主翻译 API（/translate 与 /translate_batch）的客户端
package primary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/nerdneilsfield/page-translator/pkg/lang"
	"github.com/nerdneilsfield/page-translator/pkg/providers"
	"github.com/nerdneilsfield/page-translator/pkg/providers/retry"
)

// DefaultEndpoint 默认的主翻译 API 地址
const DefaultEndpoint = "http://localhost:8001/api/translation"

// Config 主翻译 API 配置
type Config struct {
	providers.BaseConfig
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	config := Config{
		BaseConfig: providers.DefaultConfig(),
	}
	config.APIEndpoint = DefaultEndpoint
	return config
}

// Provider 主翻译 API 提供商
type Provider struct {
	config     Config
	httpClient providers.HTTPDoer
}

// New 创建主翻译 API 提供商
func New(config Config) *Provider {
	if config.APIEndpoint == "" {
		config.APIEndpoint = DefaultEndpoint
	}
	config.APIEndpoint = strings.TrimRight(config.APIEndpoint, "/")

	retrier := retry.NewNetworkRetrier(retry.RetryConfig{
		MaxRetries:    config.MaxRetries,
		InitialDelay:  config.RetryDelay,
		MaxDelay:      4 * config.RetryDelay,
		BackoffFactor: 2,
	})

	return &Provider{
		config:     config,
		httpClient: retrier.WrapHTTPClient(&http.Client{Timeout: config.Timeout}),
	}
}

// Name 获取提供商名称
func (p *Provider) Name() string {
	return "primary"
}

// Translate 单文本翻译
func (p *Provider) Translate(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	source := req.SourceLanguage
	if source == "" {
		source = providers.SourceAuto
	}

	var resp TranslateResponse
	err := p.post(ctx, "/translate", TranslateRequest{
		Text:       req.Text,
		TargetLang: req.TargetLanguage,
		SourceLang: source,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.TranslatedText == "" {
		return nil, providers.Malformed("primary returned empty translated_text")
	}

	return &providers.Response{
		Text:     resp.TranslatedText,
		Provider: p.Name(),
	}, nil
}

// TranslateBatch 一次请求翻译整批文本
func (p *Provider) TranslateBatch(ctx context.Context, texts []string, target lang.Code) ([]BatchResult, error) {
	var resp BatchResponse
	err := p.post(ctx, "/translate_batch", BatchRequest{
		Texts:      texts,
		TargetLang: target,
		SourceLang: providers.SourceAuto,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Results == nil {
		return nil, providers.Malformed("primary batch response has no results")
	}
	return resp.Results, nil
}

// post 发送 JSON 请求，每个请求都带有自己的超时
func (p *Provider) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.APIEndpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}
	for k, v := range p.config.Headers {
		httpReq.Header.Set(k, v)
	}

	return providers.DoJSON(p.httpClient, httpReq, out)
}

// TranslateRequest 单文本请求
type TranslateRequest struct {
	Text       string    `json:"text"`
	TargetLang lang.Code `json:"target_lang"`
	SourceLang string    `json:"source_lang"`
}

// TranslateResponse 单文本响应
type TranslateResponse struct {
	OriginalText   string `json:"original_text,omitempty"`
	TranslatedText string `json:"translated_text"`
	SourceLang     string `json:"source_lang,omitempty"`
	TargetLang     string `json:"target_lang,omitempty"`
}

// BatchRequest 批量请求
type BatchRequest struct {
	Texts      []string  `json:"texts"`
	TargetLang lang.Code `json:"target_lang"`
	SourceLang string    `json:"source_lang"`
}

// BatchResult 批量结果项
type BatchResult struct {
	OriginalText   string `json:"original_text"`
	TranslatedText string `json:"translated_text"`
}

// BatchResponse 批量响应
type BatchResponse struct {
	Results []BatchResult `json:"results"`
}

package libretranslate

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

// DefaultEndpoint 公共演示服务器
const DefaultEndpoint = "https://de.libretranslate.com"

// Config LibreTranslate配置
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

// Provider LibreTranslate提供商。
// 该服务不接受 "auto"，请求前必须给出明确的源语言。
type Provider struct {
	config     Config
	httpClient providers.HTTPDoer
}

// New 创建新的LibreTranslate提供商
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
	return "libretranslate"
}

// Translate 执行翻译
func (p *Provider) Translate(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	source := req.SourceLanguage
	if source == "" || source == providers.SourceAuto {
		source = string(lang.Detect(req.Text))
	}

	body, err := json.Marshal(TranslateRequest{
		Q:      req.Text,
		Source: source,
		Target: string(req.TargetLanguage),
		Format: "text",
		APIKey: p.config.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.APIEndpoint+"/translate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range p.config.Headers {
		httpReq.Header.Set(k, v)
	}

	var resp TranslateResponse
	if err := providers.DoJSON(p.httpClient, httpReq, &resp); err != nil {
		return nil, err
	}
	if resp.TranslatedText == "" {
		return nil, providers.Malformed("libretranslate returned empty translatedText")
	}

	out := &providers.Response{
		Text:     resp.TranslatedText,
		Provider: p.Name(),
	}
	if resp.DetectedLanguage != nil {
		out.DetectedSource = resp.DetectedLanguage.Language
	}
	return out, nil
}

// TranslateRequest 翻译请求
type TranslateRequest struct {
	Q      string `json:"q"`                 // 要翻译的文本
	Source string `json:"source"`            // 源语言（必须明确）
	Target string `json:"target"`            // 目标语言
	Format string `json:"format"`            // 文本格式
	APIKey string `json:"api_key,omitempty"` // API密钥（如果需要）
}

// TranslateResponse 翻译响应
type TranslateResponse struct {
	TranslatedText   string `json:"translatedText"`
	DetectedLanguage *struct {
		Confidence float64 `json:"confidence"`
		Language   string  `json:"language"`
	} `json:"detectedLanguage,omitempty"`
}

package google

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/nerdneilsfield/page-translator/pkg/providers"
	"github.com/nerdneilsfield/page-translator/pkg/providers/retry"
)

// DefaultEndpoint Google Translate 免费端点
const DefaultEndpoint = "https://translate.googleapis.com/translate_a/single"

// Config Google Translate配置
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

// Provider Google Translate提供商（client=gtx 免费接口）
type Provider struct {
	config     Config
	httpClient providers.HTTPDoer
}

// New 创建新的Google Translate提供商
func New(config Config) *Provider {
	if config.APIEndpoint == "" {
		config.APIEndpoint = DefaultEndpoint
	}

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
	return "google"
}

// Translate 执行翻译
func (p *Provider) Translate(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	source := req.SourceLanguage
	if source == "" {
		source = providers.SourceAuto
	}

	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", source)
	params.Set("tl", string(req.TargetLanguage))
	params.Set("dt", "t")
	params.Set("q", req.Text)

	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.APIEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range p.config.Headers {
		httpReq.Header.Set(k, v)
	}

	var raw []any
	if err := providers.DoJSON(p.httpClient, httpReq, &raw); err != nil {
		return nil, err
	}

	text, detected, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	return &providers.Response{
		Text:           text,
		Provider:       p.Name(),
		DetectedSource: detected,
	}, nil
}

// parseResponse 解析嵌套数组响应：[[["译文","原文",...],...],null,"源语言",...]
func parseResponse(raw []any) (string, string, error) {
	if len(raw) == 0 {
		return "", "", providers.Malformed("google returned empty payload")
	}
	segments, ok := raw[0].([]any)
	if !ok || len(segments) == 0 {
		return "", "", providers.Malformed("google returned no segments")
	}

	var sb strings.Builder
	for _, segment := range segments {
		parts, ok := segment.([]any)
		if !ok || len(parts) == 0 {
			continue
		}
		if s, ok := parts[0].(string); ok {
			sb.WriteString(s)
		}
	}
	if sb.Len() == 0 {
		return "", "", providers.Malformed("google returned empty translation")
	}

	detected := ""
	if len(raw) > 2 {
		if s, ok := raw[2].(string); ok {
			detected = s
		}
	}
	return sb.String(), detected, nil
}

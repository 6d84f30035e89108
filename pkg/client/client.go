// Package client 组合主翻译 API 与备用提供商，保证翻译调用总能返回可用的文本
package client

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/page-translator/pkg/lang"
	"github.com/nerdneilsfield/page-translator/pkg/providers"
	"github.com/nerdneilsfield/page-translator/pkg/providers/primary"
)

// ErrBatchFailed 批量翻译失败，调用方应逐条回退
var ErrBatchFailed = errors.New("batch translation failed")

// Primary 主翻译 API，支持批量和单文本
type Primary interface {
	providers.Translator
	TranslateBatch(ctx context.Context, texts []string, target lang.Code) ([]primary.BatchResult, error)
}

// Client 翻译客户端
type Client struct {
	primary   Primary
	secondary providers.Translator
	logger    *zap.Logger
}

// Option 客户端选项
type Option func(*Client)

// WithPrimary 设置主翻译 API
func WithPrimary(p Primary) Option {
	return func(c *Client) {
		c.primary = p
	}
}

// WithSecondary 设置备用提供商
func WithSecondary(p providers.Translator) Option {
	return func(c *Client) {
		c.secondary = p
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New 创建翻译客户端，未设置的提供商视为不可用
func New(opts ...Option) *Client {
	c := &Client{
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TranslateBatch 用一次主 API 请求翻译整批文本。
// 返回 原文→译文 映射，只包含请求过且有非空译文的条目；
// 任何失败都包装为 ErrBatchFailed 返回，由调用方回退到逐条翻译。
func (c *Client) TranslateBatch(ctx context.Context, texts []string, target lang.Code) (map[string]string, error) {
	if len(texts) == 0 {
		return map[string]string{}, nil
	}
	if c.primary == nil {
		return nil, fmt.Errorf("%w: primary provider not configured", ErrBatchFailed)
	}

	results, err := c.primary.TranslateBatch(ctx, texts, target)
	if err != nil {
		c.logger.Warn("batch translation failed",
			zap.Int("texts", len(texts)),
			zap.String("target", target.String()),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrBatchFailed, err)
	}

	requested := make(map[string]struct{}, len(texts))
	for _, t := range texts {
		requested[t] = struct{}{}
	}

	translations := make(map[string]string, len(results))
	for _, r := range results {
		if _, ok := requested[r.OriginalText]; !ok || r.TranslatedText == "" {
			continue
		}
		translations[r.OriginalText] = r.TranslatedText
	}

	c.logger.Debug("batch translation completed",
		zap.Int("requested", len(texts)),
		zap.Int("resolved", len(translations)))
	return translations, nil
}

// TranslateOne 翻译单条文本：主 API → 备用提供商（源语言本地检测）→ 原文。
// 不返回错误，失败时返回原文。
func (c *Client) TranslateOne(ctx context.Context, text string, target lang.Code) string {
	if c.primary != nil {
		resp, err := c.primary.Translate(ctx, &providers.Request{
			Text:           text,
			SourceLanguage: providers.SourceAuto,
			TargetLanguage: target,
		})
		if err == nil && resp.Text != "" {
			return resp.Text
		}
		c.logger.Debug("primary translation failed, trying secondary",
			zap.String("text", text),
			zap.Error(err))
	}

	if c.secondary != nil {
		resp, err := c.secondary.Translate(ctx, &providers.Request{
			Text:           text,
			SourceLanguage: string(lang.Detect(text)),
			TargetLanguage: target,
		})
		if err == nil && resp.Text != "" {
			return resp.Text
		}
		c.logger.Warn("secondary translation failed, keeping original",
			zap.String("provider", c.secondary.Name()),
			zap.String("text", text),
			zap.Error(err))
	}

	return text
}

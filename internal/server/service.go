package server

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/nerdneilsfield/page-translator/pkg/cache"
	"github.com/nerdneilsfield/page-translator/pkg/lang"
	"github.com/nerdneilsfield/page-translator/pkg/providers"
	providerstats "github.com/nerdneilsfield/page-translator/pkg/providers/stats"
)

const (
	// DefaultMaxConcurrent 同时进行的上游请求数
	DefaultMaxConcurrent = 10
	// DefaultMinInterval 两次上游请求的最小间隔
	DefaultMinInterval = 200 * time.Millisecond
)

// Service 按提供商链翻译文本，结果缓存在内存中
type Service struct {
	chain       []providers.Translator
	cache       *cache.Cache
	sem         *semaphore.Weighted
	minInterval time.Duration
	stats       *providerstats.StatsManager
	logger      *zap.Logger

	mu          sync.Mutex
	lastRequest time.Time
}

// ServiceOption 服务选项
type ServiceOption func(*Service)

// WithMaxConcurrent 设置上游并发上限
func WithMaxConcurrent(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithMinInterval 设置上游请求最小间隔
func WithMinInterval(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d >= 0 {
			s.minInterval = d
		}
	}
}

// WithCache 使用外部缓存
func WithCache(c *cache.Cache) ServiceOption {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithProviderStats 为提供商链加上请求统计
func WithProviderStats(m *providerstats.StatsManager) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.stats = m
		}
	}
}

// WithServiceLogger 设置日志记录器
func WithServiceLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService 创建翻译服务，chain 按顺序尝试
func NewService(chain []providers.Translator, opts ...ServiceOption) *Service {
	s := &Service{
		chain:       chain,
		cache:       cache.New(),
		sem:         semaphore.NewWeighted(DefaultMaxConcurrent),
		minInterval: DefaultMinInterval,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.stats != nil {
		s.chain = providerstats.Wrap(s.chain, s.stats)
	}
	return s
}

// Translate 翻译单条文本，所有提供商失败时返回原文
func (s *Service) Translate(ctx context.Context, text string, target lang.Code, source string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	if translated, ok := s.cache.Get(text, target); ok {
		return translated
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return text
	}
	defer s.sem.Release(1)

	if err := s.throttle(ctx); err != nil {
		return text
	}

	if source == "" {
		source = providers.SourceAuto
	}
	for _, p := range s.chain {
		resp, err := p.Translate(ctx, &providers.Request{
			Text:           text,
			SourceLanguage: source,
			TargetLanguage: target,
		})
		if err != nil {
			s.logger.Warn("翻译提供商失败", zap.String("provider", p.Name()), zap.Error(err))
			continue
		}
		if resp.Text == "" || resp.Text == text {
			continue
		}
		s.cache.Put(text, target, resp.Text)
		return resp.Text
	}

	s.logger.Error("所有翻译提供商都失败，返回原文", zap.String("text", text))
	return text
}

// TranslateBatch 翻译多条文本，结果与输入一一对应；重复文本只翻译一次
func (s *Service) TranslateBatch(ctx context.Context, texts []string, target lang.Code, source string) []string {
	unique := make([]string, 0, len(texts))
	index := make(map[string]int, len(texts))
	for _, text := range texts {
		if _, ok := index[text]; ok {
			continue
		}
		index[text] = len(unique)
		unique = append(unique, text)
	}

	translated := make([]string, len(unique))
	var g errgroup.Group
	for i, text := range unique {
		i, text := i, text
		g.Go(func() error {
			translated[i] = s.Translate(ctx, text, target, source)
			return nil
		})
	}
	_ = g.Wait()

	results := make([]string, len(texts))
	for i, text := range texts {
		results[i] = translated[index[text]]
	}
	return results
}

// TranslateForm 翻译表单中的非空字符串字段，其他字段原样保留
func (s *Service) TranslateForm(ctx context.Context, form map[string]any, target lang.Code) map[string]any {
	out := make(map[string]any, len(form))
	for key, value := range form {
		if text, ok := value.(string); ok && strings.TrimSpace(text) != "" {
			out[key] = s.Translate(ctx, text, target, providers.SourceAuto)
			continue
		}
		out[key] = value
	}
	return out
}

// Providers 返回提供商名称
func (s *Service) Providers() []string {
	names := make([]string, 0, len(s.chain))
	for _, p := range s.chain {
		names = append(names, p.Name())
	}
	return names
}

// ProviderStats 返回各提供商的统计指标，未启用统计时为 nil
func (s *Service) ProviderStats() map[string]map[string]interface{} {
	if s.stats == nil {
		return nil
	}
	all := s.stats.GetAllStats()
	metrics := make(map[string]map[string]interface{}, len(all))
	for name, ps := range all {
		metrics[name] = ps.CalculateMetrics()
	}
	return metrics
}

// CacheStats 返回缓存统计
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// throttle 保证相邻两次上游请求间隔不小于 minInterval
func (s *Service) throttle(ctx context.Context) error {
	if s.minInterval <= 0 {
		return nil
	}

	s.mu.Lock()
	now := time.Now()
	next := s.lastRequest.Add(s.minInterval)
	if next.Before(now) {
		next = now
	}
	s.lastRequest = next
	s.mu.Unlock()

	wait := time.Until(next)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

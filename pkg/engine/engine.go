// Package engine 整页翻译编排器：收集视图文本、查缓存、批量翻译、逐条回退、写回并切换语言
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/nerdneilsfield/page-translator/pkg/cache"
	"github.com/nerdneilsfield/page-translator/pkg/client"
	"github.com/nerdneilsfield/page-translator/pkg/lang"
	"github.com/nerdneilsfield/page-translator/pkg/textfilter"
	"github.com/nerdneilsfield/page-translator/pkg/view"
)

const (
	// DefaultConcurrency 回退阶段每组并发的请求数
	DefaultConcurrency = 10
	// DefaultGroupDelay 回退阶段相邻两组之间的间隔
	DefaultGroupDelay = 50 * time.Millisecond
)

// Translator 编排器依赖的翻译客户端
type Translator interface {
	TranslateBatch(ctx context.Context, texts []string, target lang.Code) (map[string]string, error)
	TranslateOne(ctx context.Context, text string, target lang.Code) string
}

// Report 一次翻译运行的统计
type Report struct {
	RunID       string
	Source      lang.Code
	Target      lang.Code
	Fragments   int
	Unique      int
	CacheHits   int
	Misses      int
	BatchFailed bool
	Resolved    int
	Rewritten   int
	Duration    time.Duration
}

// Engine 整页翻译编排器，同一时刻只允许一次运行
type Engine struct {
	client      Translator
	cache       *cache.Cache
	filter      *textfilter.Filter
	collector   *view.Collector
	source      func() lang.Code
	concurrency int
	groupDelay  time.Duration
	logger      *zap.Logger

	running atomic.Bool

	mu          sync.Mutex
	root        *html.Node
	doc         *view.Document
	last        *Report
	subscribers map[int]func(lang.Code)
	nextSubID   int
}

// Option 编排器选项
type Option func(*Engine)

// WithLogger 设置日志记录器
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithFilter 设置文本过滤器
func WithFilter(f *textfilter.Filter) Option {
	return func(e *Engine) {
		if f != nil {
			e.filter = f
		}
	}
}

// WithCollector 设置文本收集器
func WithCollector(c *view.Collector) Option {
	return func(e *Engine) {
		if c != nil {
			e.collector = c
		}
	}
}

// WithLanguageSource 设置当前显示语言的来源，翻译目标是它的另一种语言
func WithLanguageSource(fn func() lang.Code) Option {
	return func(e *Engine) {
		if fn != nil {
			e.source = fn
		}
	}
}

// WithDocument 绑定文档，运行结束后同步更新 <html lang>
func WithDocument(doc *view.Document) Option {
	return func(e *Engine) {
		e.doc = doc
		e.root = doc.Root()
	}
}

// WithConcurrency 设置回退阶段的并发数
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithGroupDelay 设置回退阶段组间间隔
func WithGroupDelay(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.groupDelay = d
		}
	}
}

// New 创建编排器，translator 为 nil 时使用未配置提供商的客户端（始终返回原文）
func New(translator Translator, c *cache.Cache, opts ...Option) *Engine {
	e := &Engine{
		client:      translator,
		cache:       c,
		filter:      textfilter.New(),
		collector:   view.NewCollector(),
		source:      func() lang.Code { return lang.Chinese },
		concurrency: DefaultConcurrency,
		groupDelay:  DefaultGroupDelay,
		logger:      zap.NewNop(),
		subscribers: make(map[int]func(lang.Code)),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = cache.New(cache.WithLogger(e.logger))
	}
	if e.client == nil {
		e.client = client.New(client.WithLogger(e.logger))
	}
	return e
}

// Attach 设置下一次运行遍历的视图树
func (e *Engine) Attach(root *html.Node) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.root = root
	e.doc = nil
}

// IsRunning 是否有运行正在进行
func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

// OnLanguageChanged 订阅语言切换事件，返回取消订阅函数
func (e *Engine) OnLanguageChanged(fn func(lang.Code)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextSubID
	e.nextSubID++
	e.subscribers[id] = fn

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subscribers, id)
	}
}

// LastReport 返回最近一次运行的统计
func (e *Engine) LastReport() *Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Trigger 执行一次整页翻译。
// 已有运行时直接返回 (nil, false)，不排队也不报错。
// 单条文本的任何失败都退化为保留原文，运行本身不会失败。
func (e *Engine) Trigger(ctx context.Context) (*Report, bool) {
	if !e.running.CompareAndSwap(false, true) {
		e.logger.Debug("translation already running, trigger ignored")
		return nil, false
	}

	report := e.run(ctx)

	e.mu.Lock()
	e.last = report
	subscribers := make([]func(lang.Code), 0, len(e.subscribers))
	for id := 0; id < e.nextSubID; id++ {
		if fn, ok := e.subscribers[id]; ok {
			subscribers = append(subscribers, fn)
		}
	}
	e.mu.Unlock()

	e.running.Store(false)
	for _, fn := range subscribers {
		fn(report.Target)
	}
	return report, true
}

func (e *Engine) run(ctx context.Context) *Report {
	start := time.Now()
	current := e.source()
	report := &Report{
		RunID:  uuid.NewString(),
		Source: current,
		Target: current.Other(),
	}
	logger := e.logger.With(zap.String("run_id", report.RunID), zap.String("target", report.Target.String()))

	e.mu.Lock()
	root, doc := e.root, e.doc
	e.mu.Unlock()

	// 1. 收集
	fragments := e.collector.Collect(root)
	report.Fragments = len(fragments)

	// 2. 去重并过滤
	texts := view.Unique(fragments, e.filter.ShouldTranslate)
	report.Unique = len(texts)

	// 3. 查缓存
	translations := make(map[string]string, len(texts))
	var misses []string
	for _, text := range texts {
		if translated, ok := e.cache.Get(text, report.Target); ok {
			translations[text] = translated
			continue
		}
		misses = append(misses, text)
	}
	report.CacheHits = len(texts) - len(misses)
	report.Misses = len(misses)

	logger.Info("开始整页翻译",
		zap.Int("fragments", report.Fragments),
		zap.Int("unique", report.Unique),
		zap.Int("cache_hits", report.CacheHits),
		zap.Int("misses", report.Misses))

	// 4. 批量翻译，失败时逐条回退
	resolved := map[string]string{}
	if len(misses) > 0 {
		batch, err := e.client.TranslateBatch(ctx, misses, report.Target)
		if err != nil {
			report.BatchFailed = true
			logger.Warn("批量翻译失败，回退到逐条翻译", zap.Error(err))
			resolved = e.translateEach(ctx, misses, report.Target)
		} else {
			resolved = batch
		}
	}
	for text, translated := range resolved {
		translations[text] = translated
	}

	// 5. 写回
	report.Rewritten = view.Apply(fragments, translations)
	if doc != nil {
		doc.SetLang(report.Target)
	}

	// 6. 写缓存，只保存与原文不同的结果
	for text, translated := range resolved {
		if translated == "" || translated == text {
			continue
		}
		e.cache.Put(text, report.Target, translated)
		report.Resolved++
	}
	if err := e.cache.Flush(ctx); err != nil {
		logger.Warn("缓存持久化失败", zap.Error(err))
	}

	report.Duration = time.Since(start)
	logger.Info("整页翻译完成",
		zap.Int("resolved", report.Resolved),
		zap.Int("rewritten", report.Rewritten),
		zap.Bool("batch_failed", report.BatchFailed),
		zap.Duration("duration", report.Duration))
	return report
}

// translateEach 按组并发逐条翻译，每组最多 concurrency 条，组间等待 groupDelay
func (e *Engine) translateEach(ctx context.Context, texts []string, target lang.Code) map[string]string {
	results := make([]string, len(texts))

	for start := 0; start < len(texts); start += e.concurrency {
		if start > 0 && e.groupDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(e.groupDelay):
			}
		}

		end := min(start+e.concurrency, len(texts))
		var g errgroup.Group
		g.SetLimit(e.concurrency)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				results[i] = e.client.TranslateOne(ctx, texts[i], target)
				return nil
			})
		}
		_ = g.Wait()
	}

	translations := make(map[string]string, len(texts))
	for i, text := range texts {
		translations[text] = results[i]
	}
	return translations
}

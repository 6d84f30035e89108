package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/page-translator/internal/config"
	"github.com/nerdneilsfield/page-translator/internal/logger"
	"github.com/nerdneilsfield/page-translator/internal/stats"
	"github.com/nerdneilsfield/page-translator/pkg/cache"
	"github.com/nerdneilsfield/page-translator/pkg/client"
	"github.com/nerdneilsfield/page-translator/pkg/engine"
	"github.com/nerdneilsfield/page-translator/pkg/langstate"
	"github.com/nerdneilsfield/page-translator/pkg/providers"
	"github.com/nerdneilsfield/page-translator/pkg/providers/google"
	"github.com/nerdneilsfield/page-translator/pkg/providers/libretranslate"
	"github.com/nerdneilsfield/page-translator/pkg/providers/primary"
	"github.com/nerdneilsfield/page-translator/pkg/textfilter"
	"github.com/nerdneilsfield/page-translator/pkg/view"
)

// app 子命令共享的配置与组件
type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

func newApp() (*app, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	if debugMode {
		cfg.Debug = true
	}
	return &app{
		cfg:    cfg,
		logger: logger.NewLogger(cfg.Debug),
	}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// openCache 按配置打开缓存并挂载预定义翻译。加载失败只记录日志，返回的 closer 释放存储。
// 预定义翻译只读，不会随缓存落盘；需要持久化时使用 cache import。
func (a *app) openCache(ctx context.Context) (*cache.Cache, func() error, error) {
	var (
		store  cache.Store
		closer = func() error { return nil }
	)

	switch a.cfg.CacheBackend {
	case config.CacheBackendJSON:
		store = cache.NewFileStore(a.cfg.CachePath)
	case config.CacheBackendSQLite:
		s, err := cache.OpenSQLite(a.cfg.CachePath)
		if err != nil {
			return nil, nil, err
		}
		store, closer = s, s.Close
	case config.CacheBackendMemory:
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", a.cfg.CacheBackend)
	}

	opts := []cache.Option{cache.WithLogger(logger.Named(a.logger, "cache"))}
	if store != nil {
		opts = append(opts, cache.WithStore(store))
	}
	c := cache.New(opts...)
	if err := c.Load(ctx); err != nil {
		a.logger.Warn("缓存加载失败，使用空缓存", zap.Error(err))
	}

	for _, path := range a.cfg.PredefinedTranslations {
		if err := presetPredefined(c, path); err != nil {
			a.logger.Warn("导入预定义翻译失败", zap.String("path", path), zap.Error(err))
		}
	}
	return c, closer, nil
}

func presetPredefined(c *cache.Cache, path string) error {
	p, err := config.LoadPredefinedTranslations(path)
	if err != nil {
		return err
	}
	entries, err := p.Entries()
	if err != nil {
		return err
	}
	c.Preset(entries)
	return nil
}

func (a *app) openLanguage(ctx context.Context) *langstate.Store {
	return langstate.Open(ctx,
		langstate.NewFilePersister(a.cfg.LanguagePath),
		a.cfg.DefaultLang(),
		langstate.WithLogger(logger.Named(a.logger, "langstate")))
}

func (a *app) baseConfig(endpoint, apiKey string) providers.BaseConfig {
	base := providers.DefaultConfig()
	base.APIEndpoint = endpoint
	base.APIKey = apiKey
	base.Timeout = a.cfg.Timeout()
	base.MaxRetries = a.cfg.MaxRetries
	return base
}

// newClient 主翻译 API + LibreTranslate 备用
func (a *app) newClient() *client.Client {
	return client.New(
		client.WithPrimary(primary.New(primary.Config{
			BaseConfig: a.baseConfig(a.cfg.PrimaryEndpoint, a.cfg.PrimaryAPIKey),
		})),
		client.WithSecondary(libretranslate.New(libretranslate.Config{
			BaseConfig: a.baseConfig(a.cfg.SecondaryEndpoint, a.cfg.SecondaryAPIKey),
		})),
		client.WithLogger(logger.Named(a.logger, "client")),
	)
}

// newRegistry 注册服务端使用的上游提供商
func (a *app) newRegistry() (*providers.Registry, error) {
	registry := providers.NewRegistry()
	for _, p := range []providers.Translator{
		google.New(google.Config{BaseConfig: a.baseConfig(a.cfg.GoogleEndpoint, "")}),
		libretranslate.New(libretranslate.Config{
			BaseConfig: a.baseConfig(a.cfg.SecondaryEndpoint, a.cfg.SecondaryAPIKey),
		}),
	} {
		if err := registry.Register(p); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (a *app) newFilter() *textfilter.Filter {
	return textfilter.New(
		textfilter.WithMinLength(a.cfg.MinTextLength),
		textfilter.WithLogger(logger.Named(a.logger, "filter")),
	)
}

func (a *app) newEngine(c *cache.Cache, store *langstate.Store, doc *view.Document) *engine.Engine {
	return engine.New(a.newClient(), c,
		engine.WithDocument(doc),
		engine.WithLanguageSource(store.Get),
		engine.WithFilter(a.newFilter()),
		engine.WithConcurrency(a.cfg.Concurrency),
		engine.WithGroupDelay(a.cfg.GroupDelay()),
		engine.WithLogger(logger.Named(a.logger, "engine")),
	)
}

func (a *app) openStats() (*stats.Database, error) {
	return stats.NewDatabase(a.cfg.StatsPath, logger.Named(a.logger, "stats"))
}

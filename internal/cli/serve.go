package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/page-translator/internal/logger"
	"github.com/nerdneilsfield/page-translator/internal/server"
	providerstats "github.com/nerdneilsfield/page-translator/pkg/providers/stats"
)

var (
	serveHost      string
	servePort      int
	serveProviders []string
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动主翻译 API 服务",
		Long: `启动供 translate 命令使用的主翻译 API（/api/translation/*）。

上游按顺序尝试 google、libretranslate，全部失败时返回原文。
只有与原文不同的翻译结果会写入缓存，服务退出时缓存落盘。`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().StringVar(&serveHost, "host", "", "监听地址 (默认取配置 server.host)")
	cmd.Flags().IntVar(&servePort, "port", 0, "监听端口 (默认取配置 server.port)")
	cmd.Flags().StringSliceVar(&serveProviders, "providers", []string{"google", "libretranslate"}, "上游提供商顺序")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := a.newRegistry()
	if err != nil {
		return err
	}
	chain, err := registry.Chain(serveProviders...)
	if err != nil {
		return fmt.Errorf("无效的提供商: %w", err)
	}

	c, closeCache, err := a.openCache(ctx)
	if err != nil {
		return fmt.Errorf("打开缓存失败: %w", err)
	}
	defer func() {
		if err := closeCache(); err != nil {
			a.logger.Warn("关闭缓存失败", zap.Error(err))
		}
	}()

	statsManager := providerstats.NewStatsManager(a.cfg.Server.StatsPath, logger.Named(a.logger, "provider-stats"))
	if err := statsManager.LoadFromDB(); err != nil {
		a.logger.Warn("加载提供商统计失败", zap.Error(err))
	}
	go statsManager.AutoSaveRoutine(ctx, time.Minute)

	service := server.NewService(chain,
		server.WithCache(c),
		server.WithProviderStats(statsManager),
		server.WithMaxConcurrent(a.cfg.Server.MaxConcurrent),
		server.WithMinInterval(time.Duration(a.cfg.Server.MinIntervalMs)*time.Millisecond),
		server.WithServiceLogger(logger.Named(a.logger, "service")),
	)

	opts := server.Options{Host: a.cfg.Server.Host, Port: a.cfg.Server.Port}
	if serveHost != "" {
		opts.Host = serveHost
	}
	if servePort > 0 {
		opts.Port = servePort
	}

	srv := server.NewServer(service, logger.Named(a.logger, "server"), opts)
	serveErr := srv.Start(ctx)

	// 退出前落盘
	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Flush(flushCtx); err != nil {
		a.logger.Warn("缓存持久化失败", zap.Error(err))
	}
	if err := statsManager.SaveToDB(); err != nil {
		a.logger.Warn("保存提供商统计失败", zap.Error(err))
	}
	statsManager.PrintStatsTable(cmd.ErrOrStderr())
	return serveErr
}

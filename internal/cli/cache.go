package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/page-translator/internal/config"
	"github.com/nerdneilsfield/page-translator/pkg/cache"
	"github.com/nerdneilsfield/page-translator/pkg/lang"
)

const cacheColumnWidth = 40

var (
	cacheLang  string
	cacheLimit int
	exportLang string
)

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "管理翻译缓存",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "列出缓存条目",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd, func(ctx context.Context, a *app, c *cache.Cache) error {
				filter, err := parseOptionalLang(cacheLang)
				if err != nil {
					return err
				}
				printCacheEntries(cmd, a, c.Entries(), filter, cacheLimit)
				return nil
			})
		},
	}
	listCmd.Flags().StringVar(&cacheLang, "lang", "", "只显示目标语言为 zh 或 en 的条目")
	listCmd.Flags().IntVar(&cacheLimit, "limit", 0, "最多显示的条目数 (0 表示全部)")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "清空缓存",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd, func(ctx context.Context, a *app, c *cache.Cache) error {
				n := c.Len()
				c.Clear()
				if err := c.Flush(ctx); err != nil {
					return err
				}
				color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✅ 已清除 %d 条缓存\n", n)
				return nil
			})
		},
	}

	importCmd := &cobra.Command{
		Use:   "import <translations.toml>",
		Short: "导入 TOML 预定义翻译表",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd, func(ctx context.Context, a *app, c *cache.Cache) error {
				p, err := config.LoadPredefinedTranslations(args[0])
				if err != nil {
					return err
				}
				entries, err := p.Entries()
				if err != nil {
					return err
				}
				c.Seed(entries)
				if err := c.Flush(ctx); err != nil {
					return err
				}
				color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✅ 已导入 %d 条翻译 (%s → %s)\n",
					len(entries), p.SourceLang, p.TargetLang)
				return nil
			})
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export <translations.toml>",
		Short: "把缓存导出为 TOML 预定义翻译表",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd, func(ctx context.Context, a *app, c *cache.Cache) error {
				target, err := lang.Parse(exportLang)
				if err != nil {
					return fmt.Errorf("--lang: %w", err)
				}
				p := config.FromCache(c.Entries(), target)
				if err := config.SavePredefinedTranslations(args[0], p); err != nil {
					return err
				}
				color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✅ 已导出 %d 条翻译到 %s\n",
					len(p.Translations), args[0])
				return nil
			})
		},
	}
	exportCmd.Flags().StringVar(&exportLang, "lang", string(lang.English), "导出的目标语言 (zh, en)")

	cmd.AddCommand(listCmd, clearCmd, importCmd, exportCmd)
	return cmd
}

func withCache(cmd *cobra.Command, fn func(ctx context.Context, a *app, c *cache.Cache) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
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

	return fn(ctx, a, c)
}

func parseOptionalLang(s string) (lang.Code, error) {
	if s == "" {
		return "", nil
	}
	code, err := lang.Parse(s)
	if err != nil {
		return "", fmt.Errorf("--lang: %w", err)
	}
	return code, nil
}

func printCacheEntries(cmd *cobra.Command, a *app, entries []cache.Entry, filter lang.Code, limit int) {
	out := cmd.OutOrStdout()

	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.AppendHeader(table.Row{"目标", "原文", "译文", "更新时间"})

	shown := 0
	for _, e := range entries {
		if filter != "" && e.Lang != filter {
			continue
		}
		if limit > 0 && shown >= limit {
			break
		}
		tw.AppendRow(table.Row{
			e.Lang,
			runewidth.Truncate(e.Text, cacheColumnWidth, "..."),
			runewidth.Truncate(e.Translated, cacheColumnWidth, "..."),
			e.UpdatedAt.Local().Format("2006-01-02 15:04"),
		})
		shown++
	}
	tw.AppendFooter(table.Row{"", "", "总计", fmt.Sprintf("%d / %d", shown, len(entries))})
	tw.SetStyle(table.StyleLight)
	tw.Render()

	color.New(color.FgCyan).Fprintf(out, "后端: %s  路径: %s\n", a.cfg.CacheBackend, a.cfg.CachePath)
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/page-translator/internal/stats"
	"github.com/nerdneilsfield/page-translator/pkg/lang"
	"github.com/nerdneilsfield/page-translator/pkg/langstate"
	"github.com/nerdneilsfield/page-translator/pkg/view"
)

const sourceAuto = "auto"

var (
	translateSource string
	skipStats       bool
	quietSummary    bool
)

func newTranslateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translate <input.html> [output.html]",
		Short: "把页面整体翻译为另一种语言",
		Long: `把 HTML 页面中的所有可见文本翻译为当前显示语言的另一种语言，
并把 <html lang> 切换为目标语言。未指定输出文件时写到标准输出。

--source 指定页面当前语言：
  zh / en  显式指定
  auto     取 <html lang>，缺失时按页面文本检测
  (空)     使用已保存的显示语言`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runTranslate,
	}

	cmd.Flags().StringVarP(&translateSource, "source", "s", "", "页面当前语言 (zh, en, auto)")
	cmd.Flags().BoolVar(&skipStats, "no-stats", false, "不记录运行统计")
	cmd.Flags().BoolVarP(&quietSummary, "quiet", "q", false, "不输出运行摘要")

	return cmd
}

func runTranslate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	inputFile := args[0]
	outputFile := ""
	if len(args) > 1 {
		outputFile = args[1]
	}

	doc, err := loadDocument(inputFile)
	if err != nil {
		return err
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

	store := a.openLanguage(ctx)
	if err := applySource(ctx, store, doc, translateSource); err != nil {
		return err
	}

	e := a.newEngine(c, store, doc)
	e.OnLanguageChanged(store.Follow(ctx))

	report, ok := e.Trigger(ctx)
	if !ok {
		return fmt.Errorf("translation already running")
	}

	if err := writeDocument(cmd.OutOrStdout(), doc, outputFile); err != nil {
		return err
	}

	record := stats.RecordFromReport(report, inputFile, outputFile)
	if !quietSummary {
		stats.PrintRun(cmd.ErrOrStderr(), record)
	}

	if !skipStats {
		db, err := a.openStats()
		if err != nil {
			a.logger.Warn("打开统计数据库失败", zap.Error(err))
			return nil
		}
		if err := db.AddRunRecord(record); err != nil {
			a.logger.Warn("记录运行统计失败", zap.Error(err))
		}
	}
	return nil
}

// applySource 按 --source 设置页面当前语言
func applySource(ctx context.Context, store *langstate.Store, doc *view.Document, source string) error {
	source = strings.TrimSpace(strings.ToLower(source))
	if source == "" {
		return nil
	}

	var code lang.Code
	if source == sourceAuto {
		code = detectDocument(doc)
	} else {
		parsed, err := lang.Parse(source)
		if err != nil {
			return fmt.Errorf("--source: %w", err)
		}
		code = parsed
	}

	if err := store.Set(ctx, code); err != nil && !errors.Is(err, langstate.ErrPersistence) {
		return err
	}
	return nil
}

// detectDocument 优先使用 <html lang>，否则检测页面文本
func detectDocument(doc *view.Document) lang.Code {
	if code, ok := doc.Lang(); ok {
		return code
	}
	var b strings.Builder
	for _, f := range view.Collect(doc.Root()) {
		b.WriteString(f.Text())
		b.WriteByte(' ')
	}
	return lang.Detect(b.String())
}

func loadDocument(path string) (*view.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("读取输入文件失败: %w", err)
	}
	defer f.Close()

	doc, err := view.Load(f)
	if err != nil {
		return nil, fmt.Errorf("解析 HTML 失败: %w", err)
	}
	return doc, nil
}

func writeDocument(stdout io.Writer, doc *view.Document, path string) error {
	if path == "" {
		return doc.Render(stdout)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建输出文件失败: %w", err)
	}
	if err := doc.Render(f); err != nil {
		f.Close()
		return fmt.Errorf("写入输出文件失败: %w", err)
	}
	return f.Close()
}

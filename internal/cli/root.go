package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// 命令行标志变量
	cfgFile   string
	debugMode bool
)

// NewRootCommand 创建根命令
func NewRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pagetrans",
		Short: "整页中英互译工具",
		Long: `pagetrans 把 HTML 页面中的可见文本整体翻译为另一种语言（中文 ⇄ English）。

翻译流程：收集文本 → 去重过滤 → 查询缓存 → 批量翻译（失败时逐条回退到备用提供商）→ 写回页面 → 切换语言。
任何单条文本翻译失败时保留原文，整次运行不会失败。

支持的翻译提供商:
  - primary: 主翻译 API（可由 pagetrans serve 提供）
  - libretranslate: LibreTranslate（备用）
  - google: Google Translate 免费接口（serve 的上游）`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径 (默认 $HOME/.pagetrans.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "启用调试日志")

	rootCmd.AddCommand(
		newTranslateCommand(),
		newLangCommand(),
		newCacheCommand(),
		newDetectCommand(),
		newServeCommand(),
		NewStatsCommand(),
	)

	return rootCmd
}

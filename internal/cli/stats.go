package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/page-translator/internal/stats"
)

var (
	// stats 命令的标志
	recentLimit   int
	exportPath    string
	resetStats    bool
	assumeYes     bool
	showDirection bool
)

// NewStatsCommand 创建 stats 命令
func NewStatsCommand() *cobra.Command {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "View page translation run history",
		Long: `View statistics about previous page translation runs, including:
- Overall run statistics
- Cache hit rate
- Per-direction statistics (zh → en, en → zh)
- Recent run history

Examples:
  # Show overview and recent runs
  pagetrans stats

  # Show the last 20 runs
  pagetrans stats --recent 20

  # Show per-direction statistics
  pagetrans stats --directions

  # Export statistics to JSON
  pagetrans stats --export stats.json

  # Reset all statistics
  pagetrans stats --reset --yes`,
		RunE: runStatsCommand,
	}

	statsCmd.Flags().IntVar(&recentLimit, "recent", 10, "Number of recent runs to show")
	statsCmd.Flags().StringVar(&exportPath, "export", "", "Export statistics to file (JSON format)")
	statsCmd.Flags().BoolVar(&resetStats, "reset", false, "Reset all statistics (requires confirmation)")
	statsCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
	statsCmd.Flags().BoolVar(&showDirection, "directions", false, "Show only per-direction statistics")

	return statsCmd
}

// runStatsCommand 执行 stats 命令
func runStatsCommand(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	db, err := a.openStats()
	if err != nil {
		return fmt.Errorf("failed to initialize statistics database: %w", err)
	}

	if resetStats {
		return handleStatsReset(cmd, db, a.logger)
	}

	if exportPath != "" {
		return handleStatsExport(cmd, db, exportPath)
	}

	visualizer := stats.NewVisualizer(db, cmd.OutOrStdout())
	if showDirection {
		visualizer.ShowDirections()
		return nil
	}

	visualizer.ShowOverview()
	fmt.Fprintln(cmd.OutOrStdout())
	visualizer.ShowRecentRuns(recentLimit)
	return nil
}

// handleStatsReset 处理统计重置
func handleStatsReset(cmd *cobra.Command, db *stats.Database, log *zap.Logger) error {
	if !assumeYes {
		fmt.Fprint(cmd.OutOrStdout(), "Are you sure you want to reset all statistics? This cannot be undone. (y/N): ")

		confirmation, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		switch strings.TrimSpace(confirmation) {
		case "y", "Y", "yes":
		default:
			fmt.Fprintln(cmd.OutOrStdout(), "Statistics reset cancelled.")
			return nil
		}
	}

	if err := db.Reset(); err != nil {
		return fmt.Errorf("failed to reset statistics: %w", err)
	}

	log.Info("statistics reset")
	color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "✅ Statistics have been reset.")
	return nil
}

// handleStatsExport 处理统计导出
func handleStatsExport(cmd *cobra.Command, db *stats.Database, path string) error {
	data, err := json.MarshalIndent(db.GetStats(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal statistics: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}

	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✅ Statistics exported to: %s\n", path)
	return nil
}

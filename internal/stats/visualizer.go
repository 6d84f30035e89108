package stats

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"
)

// Visualizer 统计数据可视化器
type Visualizer struct {
	db  *Database
	out io.Writer
}

// NewVisualizer 创建可视化器
func NewVisualizer(db *Database, out io.Writer) *Visualizer {
	return &Visualizer{db: db, out: out}
}

// ShowOverview 显示总览
func (v *Visualizer) ShowOverview() {
	stats := v.db.GetStats()

	title := color.New(color.FgCyan, color.Bold)
	title.Fprintln(v.out, "📊 Page Translation Statistics")
	title.Fprintln(v.out, strings.Repeat("=", 50))

	fmt.Fprintln(v.out)
	PrintSection(v.out, "🎯 Overall Statistics", [][]string{
		{"Total Runs", formatNumber(stats.TotalRuns)},
		{"Fragments Seen", formatNumber(stats.TotalFragments)},
		{"Fragments Rewritten", formatNumber(stats.TotalRewritten)},
		{"Batch Failures", formatNumber(stats.TotalBatchFailures)},
		{"Total Duration", formatDuration(stats.TotalDuration)},
		{"Database Created", formatTime(stats.CreatedAt)},
		{"Last Updated", formatTime(stats.LastUpdated)},
	})

	fmt.Fprintln(v.out)
	PrintSection(v.out, "💾 Cache Statistics", [][]string{
		{"Cache Hit Rate", fmt.Sprintf("%.1f%% (%d hits, %d misses)",
			stats.CacheStats.CacheHitRate*100, stats.CacheStats.CacheHits, stats.CacheStats.CacheMisses)},
		{"Newly Resolved", formatNumber(stats.CacheStats.Resolved)},
	})
}

// ShowDirections 显示翻译方向统计
func (v *Visualizer) ShowDirections() {
	stats := v.db.GetStats()

	title := color.New(color.FgMagenta, color.Bold)
	title.Fprintln(v.out, "🌍 Direction Statistics")
	title.Fprintln(v.out, strings.Repeat("=", 50))

	if len(stats.Directions) == 0 {
		fmt.Fprintln(v.out, "No direction data available.")
		return
	}

	dirs := make([]*DirectionStats, 0, len(stats.Directions))
	for _, d := range stats.Directions {
		dirs = append(dirs, d)
	}
	sort.Slice(dirs, func(i, j int) bool {
		return dirs[i].RunCount > dirs[j].RunCount
	})

	fmt.Fprintln(v.out)
	for i, d := range dirs {
		if i > 0 {
			fmt.Fprintln(v.out)
		}
		PrintSection(v.out, fmt.Sprintf("🔄 %s → %s", d.SourceLanguage, d.TargetLanguage), [][]string{
			{"Runs", formatNumber(d.RunCount)},
			{"Rewritten", formatNumber(d.RewrittenCount)},
			{"Batch Failures", formatNumber(d.BatchFailures)},
			{"Avg Duration", formatDuration(d.AverageDuration)},
			{"Last Used", formatTime(d.LastUsed)},
		})
	}
}

// ShowRecentRuns 以表格显示最近的运行
func (v *Visualizer) ShowRecentRuns(limit int) {
	records := v.db.GetRecentRuns(limit)

	title := color.New(color.FgBlue, color.Bold)
	title.Fprintf(v.out, "🕒 Recent Runs (Last %d)\n", len(records))

	if len(records) == 0 {
		fmt.Fprintln(v.out, "No recent runs found.")
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(v.out)
	tw.AppendHeader(table.Row{"时间", "文件", "方向", "片段", "命中", "改写", "批量", "耗时"})
	for _, r := range records {
		batch := "ok"
		if r.BatchFailed {
			batch = "fallback"
		}
		tw.AppendRow(table.Row{
			formatTime(r.Timestamp),
			runewidth.Truncate(filepath.Base(r.InputFile), 40, "..."),
			fmt.Sprintf("%s → %s", r.SourceLanguage, r.TargetLanguage),
			r.Fragments,
			r.CacheHits,
			r.Rewritten,
			batch,
			formatDuration(r.Duration),
		})
	}
	tw.SetStyle(table.StyleLight)
	tw.Render()
}

// PrintRun 打印单次运行的摘要
func PrintRun(w io.Writer, r *RunRecord) {
	status, batch := "✅", "ok"
	if r.BatchFailed {
		status, batch = "⚠️", "failed, fell back to single requests"
	}
	PrintSection(w, fmt.Sprintf("%s %s → %s", status, r.SourceLanguage, r.TargetLanguage), [][]string{
		{"Run ID", r.ID},
		{"Fragments", strconv.Itoa(r.Fragments)},
		{"Unique Texts", strconv.Itoa(r.Unique)},
		{"Cache Hits", strconv.Itoa(r.CacheHits)},
		{"Cache Misses", strconv.Itoa(r.Misses)},
		{"Batch", batch},
		{"Newly Cached", strconv.Itoa(r.Resolved)},
		{"Rewritten", strconv.Itoa(r.Rewritten)},
		{"Duration", formatDuration(r.Duration)},
	})
}

// PrintSection 打印一个统计部分，标签按显示宽度对齐
func PrintSection(w io.Writer, title string, data [][]string) {
	sectionColor := color.New(color.FgYellow, color.Bold)
	sectionColor.Fprintf(w, "%s\n", title)

	maxLabelWidth := 0
	for _, row := range data {
		if width := runewidth.StringWidth(row[0]); width > maxLabelWidth {
			maxLabelWidth = width
		}
	}

	labelColor := color.New(color.FgCyan)
	valueColor := color.New(color.FgWhite, color.Bold)
	for _, row := range data {
		label := "  " + runewidth.FillRight(row[0], maxLabelWidth)
		labelColor.Fprintf(w, "%s: ", label)
		valueColor.Fprintln(w, row[1])
	}
}

// 辅助函数

// formatNumber 格式化数字（添加千位分隔符）
func formatNumber(n int64) string {
	str := strconv.FormatInt(n, 10)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	for i, char := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(char)
	}
	return result.String()
}

// formatDuration 格式化持续时间
func formatDuration(d time.Duration) string {
	if d == 0 {
		return "0s"
	}

	if d < time.Second {
		return fmt.Sprintf("%.0fms", float64(d.Nanoseconds())/1e6)
	}

	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}

	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}

	return fmt.Sprintf("%.1fh", d.Hours())
}

// formatTime 格式化时间
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}

	now := time.Now()
	if t.Year() == now.Year() && t.Month() == now.Month() && t.Day() == now.Day() {
		return t.Format("15:04:05")
	}

	if t.Year() == now.Year() {
		return t.Format("Jan 02 15:04")
	}

	return t.Format("2006-01-02 15:04")
}

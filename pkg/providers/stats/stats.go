package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/zap"
)

// ProviderStats 提供商请求统计
type ProviderStats struct {
	ProviderName       string `json:"provider_name"`
	TotalRequests      int64  `json:"total_requests"`
	SuccessfulRequests int64  `json:"successful_requests"`
	FailedRequests     int64  `json:"failed_requests"`
	UnchangedResponses int64  `json:"unchanged_responses"` // 返回原文或空结果的次数

	// 性能指标
	AverageLatency time.Duration `json:"average_latency"`
	MinLatency     time.Duration `json:"min_latency"`
	MaxLatency     time.Duration `json:"max_latency"`
	TotalLatency   time.Duration `json:"total_latency"`

	// 按错误类型统计
	ErrorTypes map[string]int64 `json:"error_types"`

	FirstRequestTime time.Time `json:"first_request_time"`
	LastRequestTime  time.Time `json:"last_request_time"`

	mu sync.RWMutex `json:"-"`
}

// RequestResult 单次请求结果
type RequestResult struct {
	Success   bool
	Unchanged bool
	Latency   time.Duration
	ErrorType string
}

// StatsManager 统计管理器
type StatsManager struct {
	stats  map[string]*ProviderStats
	dbPath string
	logger *zap.Logger
	mu     sync.RWMutex
}

// NewStatsManager 创建统计管理器，dbPath 为空时不落盘
func NewStatsManager(dbPath string, logger *zap.Logger) *StatsManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsManager{
		stats:  make(map[string]*ProviderStats),
		dbPath: dbPath,
		logger: logger,
	}
}

func (sm *StatsManager) getOrCreateStats(provider string) *ProviderStats {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if stats, exists := sm.stats[provider]; exists {
		return stats
	}

	stats := &ProviderStats{
		ProviderName: provider,
		ErrorTypes:   make(map[string]int64),
	}
	sm.stats[provider] = stats
	return stats
}

// RecordRequest 记录请求结果
func (sm *StatsManager) RecordRequest(provider string, result RequestResult) {
	stats := sm.getOrCreateStats(provider)

	stats.mu.Lock()
	defer stats.mu.Unlock()

	now := time.Now()
	if stats.FirstRequestTime.IsZero() {
		stats.FirstRequestTime = now
	}
	stats.LastRequestTime = now

	stats.TotalRequests++
	if result.Success {
		stats.SuccessfulRequests++
		if result.Unchanged {
			stats.UnchangedResponses++
		}
	} else {
		stats.FailedRequests++
		if result.ErrorType != "" {
			stats.ErrorTypes[result.ErrorType]++
		}
	}

	stats.TotalLatency += result.Latency
	if stats.TotalRequests == 1 || result.Latency < stats.MinLatency {
		stats.MinLatency = result.Latency
	}
	if result.Latency > stats.MaxLatency {
		stats.MaxLatency = result.Latency
	}
	stats.AverageLatency = stats.TotalLatency / time.Duration(stats.TotalRequests)
}

func (ps *ProviderStats) clone() *ProviderStats {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	c := &ProviderStats{
		ProviderName:       ps.ProviderName,
		TotalRequests:      ps.TotalRequests,
		SuccessfulRequests: ps.SuccessfulRequests,
		FailedRequests:     ps.FailedRequests,
		UnchangedResponses: ps.UnchangedResponses,
		AverageLatency:     ps.AverageLatency,
		MinLatency:         ps.MinLatency,
		MaxLatency:         ps.MaxLatency,
		TotalLatency:       ps.TotalLatency,
		ErrorTypes:         make(map[string]int64, len(ps.ErrorTypes)),
		FirstRequestTime:   ps.FirstRequestTime,
		LastRequestTime:    ps.LastRequestTime,
	}
	for k, v := range ps.ErrorTypes {
		c.ErrorTypes[k] = v
	}
	return c
}

// GetStats 获取指定提供商的统计副本，没有记录时返回 nil
func (sm *StatsManager) GetStats(provider string) *ProviderStats {
	sm.mu.RLock()
	stats, exists := sm.stats[provider]
	sm.mu.RUnlock()

	if !exists {
		return nil
	}
	return stats.clone()
}

// GetAllStats 获取所有统计信息
func (sm *StatsManager) GetAllStats() map[string]*ProviderStats {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	result := make(map[string]*ProviderStats, len(sm.stats))
	for name, stats := range sm.stats {
		result[name] = stats.clone()
	}
	return result
}

// CalculateMetrics 计算成功率与延迟指标
func (ps *ProviderStats) CalculateMetrics() map[string]interface{} {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	metrics := make(map[string]interface{})
	metrics["total_requests"] = ps.TotalRequests

	if ps.TotalRequests > 0 {
		metrics["success_rate"] = float64(ps.SuccessfulRequests) / float64(ps.TotalRequests) * 100
		metrics["error_rate"] = float64(ps.FailedRequests) / float64(ps.TotalRequests) * 100
	}
	if ps.SuccessfulRequests > 0 {
		metrics["unchanged_rate"] = float64(ps.UnchangedResponses) / float64(ps.SuccessfulRequests) * 100
	}

	metrics["average_latency_ms"] = ps.AverageLatency.Milliseconds()
	metrics["min_latency_ms"] = ps.MinLatency.Milliseconds()
	metrics["max_latency_ms"] = ps.MaxLatency.Milliseconds()

	return metrics
}

// SaveToDB 保存统计数据
func (sm *StatsManager) SaveToDB() error {
	if sm.dbPath == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(sm.dbPath), 0o755); err != nil {
		return fmt.Errorf("failed to create stats directory: %w", err)
	}

	jsonData, err := json.MarshalIndent(sm.GetAllStats(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal stats data: %w", err)
	}

	tempPath := sm.dbPath + ".tmp"
	if err := os.WriteFile(tempPath, jsonData, 0o644); err != nil {
		return fmt.Errorf("failed to write stats file: %w", err)
	}
	if err := os.Rename(tempPath, sm.dbPath); err != nil {
		return fmt.Errorf("failed to rename stats file: %w", err)
	}

	sm.logger.Debug("provider stats saved", zap.String("path", sm.dbPath))
	return nil
}

// LoadFromDB 加载统计数据，文件不存在时从零开始
func (sm *StatsManager) LoadFromDB() error {
	if sm.dbPath == "" {
		return nil
	}

	data, err := os.ReadFile(sm.dbPath)
	if os.IsNotExist(err) {
		sm.logger.Info("provider stats not found, starting fresh", zap.String("path", sm.dbPath))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read stats file: %w", err)
	}

	var statsData map[string]*ProviderStats
	if err := json.Unmarshal(data, &statsData); err != nil {
		return fmt.Errorf("failed to unmarshal stats data: %w", err)
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	for name, stats := range statsData {
		if stats.ErrorTypes == nil {
			stats.ErrorTypes = make(map[string]int64)
		}
		stats.ProviderName = name
		sm.stats[name] = stats
	}

	sm.logger.Info("provider stats loaded",
		zap.String("path", sm.dbPath),
		zap.Int("providers", len(statsData)))
	return nil
}

// PrintStatsTable 打印统计表格
func (sm *StatsManager) PrintStatsTable(w io.Writer) {
	allStats := sm.GetAllStats()
	if len(allStats) == 0 {
		fmt.Fprintln(w, "No statistics available.")
		return
	}

	names := make([]string, 0, len(allStats))
	for name := range allStats {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle("📊 Provider Statistics")
	tw.AppendHeader(table.Row{"Provider", "Requests", "Success%", "Error%", "Unchanged%", "AvgLatency"})
	for _, name := range names {
		stats := allStats[name]
		metrics := stats.CalculateMetrics()
		tw.AppendRow(table.Row{
			name,
			stats.TotalRequests,
			fmt.Sprintf("%.1f%%", getFloat(metrics, "success_rate")),
			fmt.Sprintf("%.1f%%", getFloat(metrics, "error_rate")),
			fmt.Sprintf("%.1f%%", getFloat(metrics, "unchanged_rate")),
			fmt.Sprintf("%dms", getInt(metrics, "average_latency_ms")),
		})
	}
	tw.SetStyle(table.StyleLight)
	tw.Render()
}

func getFloat(m map[string]interface{}, key string) float64 {
	if val, ok := m[key]; ok {
		if f, ok := val.(float64); ok {
			return f
		}
	}
	return 0.0
}

func getInt(m map[string]interface{}, key string) int64 {
	if val, ok := m[key]; ok {
		if i, ok := val.(int64); ok {
			return i
		}
	}
	return 0
}

// AutoSaveRoutine 定期保存统计数据，ctx 结束时最后保存一次
func (sm *StatsManager) AutoSaveRoutine(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := sm.SaveToDB(); err != nil {
				sm.logger.Error("failed to save stats on shutdown", zap.Error(err))
			}
			return
		case <-ticker.C:
			if err := sm.SaveToDB(); err != nil {
				sm.logger.Error("failed to auto-save stats", zap.Error(err))
			}
		}
	}
}

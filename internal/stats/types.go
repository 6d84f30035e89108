package stats

import (
	"time"
)

// StatisticsDB 统计数据库结构
type StatisticsDB struct {
	Version     string    `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`

	// 总体统计
	TotalRuns          int64         `json:"total_runs"`
	TotalFragments     int64         `json:"total_fragments"`
	TotalRewritten     int64         `json:"total_rewritten"`
	TotalBatchFailures int64         `json:"total_batch_failures"`
	TotalDuration      time.Duration `json:"total_duration"`

	// 缓存统计
	CacheStats CacheStatistics `json:"cache_stats"`

	// 翻译方向统计，键为 "zh-en" 形式
	Directions map[string]*DirectionStats `json:"directions"`

	// 最近的运行记录
	RecentRuns []*RunRecord `json:"recent_runs"`
}

// CacheStatistics 缓存统计信息
type CacheStatistics struct {
	CacheHits    int64   `json:"cache_hits"`
	CacheMisses  int64   `json:"cache_misses"`
	CacheHitRate float64 `json:"cache_hit_rate"`
	Resolved     int64   `json:"resolved"`
}

// DirectionStats 翻译方向统计
type DirectionStats struct {
	SourceLanguage  string        `json:"source_language"`
	TargetLanguage  string        `json:"target_language"`
	RunCount        int64         `json:"run_count"`
	RewrittenCount  int64         `json:"rewritten_count"`
	BatchFailures   int64         `json:"batch_failures"`
	AverageDuration time.Duration `json:"average_duration"`
	LastUsed        time.Time     `json:"last_used"`
}

// RunRecord 一次整页翻译的记录
type RunRecord struct {
	ID             string        `json:"id"`
	Timestamp      time.Time     `json:"timestamp"`
	InputFile      string        `json:"input_file"`
	OutputFile     string        `json:"output_file"`
	SourceLanguage string        `json:"source_language"`
	TargetLanguage string        `json:"target_language"`
	Fragments      int           `json:"fragments"`
	Unique         int           `json:"unique"`
	CacheHits      int           `json:"cache_hits"`
	Misses         int           `json:"misses"`
	Resolved       int           `json:"resolved"`
	Rewritten      int           `json:"rewritten"`
	BatchFailed    bool          `json:"batch_failed"`
	Duration       time.Duration `json:"duration"`
}

package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/page-translator/pkg/engine"
)

const (
	StatsDBVersion   = "1.0.0"
	MaxRecentRecords = 100
)

// Database 统计数据库
type Database struct {
	filePath string
	data     *StatisticsDB
	mutex    sync.RWMutex
	logger   *zap.Logger
}

// NewDatabase 创建统计数据库
func NewDatabase(filePath string, logger *zap.Logger) (*Database, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db := &Database{
		filePath: filePath,
		logger:   logger,
	}

	// 确保目录存在
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create stats directory: %w", err)
	}

	if err := db.load(); err != nil {
		return nil, fmt.Errorf("failed to load stats database: %w", err)
	}

	return db, nil
}

func newStatisticsDB() *StatisticsDB {
	now := time.Now()
	return &StatisticsDB{
		Version:     StatsDBVersion,
		CreatedAt:   now,
		LastUpdated: now,
		Directions:  make(map[string]*DirectionStats),
		RecentRuns:  make([]*RunRecord, 0),
	}
}

// load 加载统计数据
func (db *Database) load() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	if _, err := os.Stat(db.filePath); os.IsNotExist(err) {
		db.data = newStatisticsDB()
		return nil
	}

	data, err := os.ReadFile(db.filePath)
	if err != nil {
		return fmt.Errorf("failed to read stats file: %w", err)
	}

	var statsDB StatisticsDB
	if err := json.Unmarshal(data, &statsDB); err != nil {
		return fmt.Errorf("failed to parse stats file: %w", err)
	}

	// 初始化可能为 nil 的字段
	if statsDB.Directions == nil {
		statsDB.Directions = make(map[string]*DirectionStats)
	}
	if statsDB.RecentRuns == nil {
		statsDB.RecentRuns = make([]*RunRecord, 0)
	}

	db.data = &statsDB
	db.logger.Debug("loaded statistics database",
		zap.String("version", statsDB.Version),
		zap.Time("created_at", statsDB.CreatedAt),
		zap.Int64("total_runs", statsDB.TotalRuns))

	return nil
}

// Save 保存统计数据
func (db *Database) Save() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	return db.saveUnsafe()
}

// saveUnsafe 不安全的保存（需要已持有锁）
func (db *Database) saveUnsafe() error {
	db.data.LastUpdated = time.Now()

	data, err := json.MarshalIndent(db.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal stats data: %w", err)
	}

	// 原子写入
	tempFile := db.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp stats file: %w", err)
	}

	if err := os.Rename(tempFile, db.filePath); err != nil {
		return fmt.Errorf("failed to rename stats file: %w", err)
	}

	return nil
}

// RecordFromReport 把编排器的运行统计转换为记录
func RecordFromReport(report *engine.Report, inputFile, outputFile string) *RunRecord {
	return &RunRecord{
		ID:             report.RunID,
		Timestamp:      time.Now(),
		InputFile:      inputFile,
		OutputFile:     outputFile,
		SourceLanguage: report.Source.String(),
		TargetLanguage: report.Target.String(),
		Fragments:      report.Fragments,
		Unique:         report.Unique,
		CacheHits:      report.CacheHits,
		Misses:         report.Misses,
		Resolved:       report.Resolved,
		Rewritten:      report.Rewritten,
		BatchFailed:    report.BatchFailed,
		Duration:       report.Duration,
	}
}

// AddRunRecord 添加运行记录
func (db *Database) AddRunRecord(record *RunRecord) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	// 更新总体统计
	db.data.TotalRuns++
	db.data.TotalFragments += int64(record.Fragments)
	db.data.TotalRewritten += int64(record.Rewritten)
	db.data.TotalDuration += record.Duration
	if record.BatchFailed {
		db.data.TotalBatchFailures++
	}

	// 更新缓存统计
	cs := &db.data.CacheStats
	cs.CacheHits += int64(record.CacheHits)
	cs.CacheMisses += int64(record.Misses)
	cs.Resolved += int64(record.Resolved)
	if total := cs.CacheHits + cs.CacheMisses; total > 0 {
		cs.CacheHitRate = float64(cs.CacheHits) / float64(total)
	}

	// 更新翻译方向统计
	key := fmt.Sprintf("%s-%s", record.SourceLanguage, record.TargetLanguage)
	dir, exists := db.data.Directions[key]
	if !exists {
		dir = &DirectionStats{
			SourceLanguage: record.SourceLanguage,
			TargetLanguage: record.TargetLanguage,
		}
		db.data.Directions[key] = dir
	}

	dir.RunCount++
	dir.RewrittenCount += int64(record.Rewritten)
	dir.LastUsed = record.Timestamp
	if record.BatchFailed {
		dir.BatchFailures++
	}

	// 计算平均持续时间
	totalDuration := time.Duration(int64(dir.AverageDuration) * (dir.RunCount - 1))
	dir.AverageDuration = (totalDuration + record.Duration) / time.Duration(dir.RunCount)

	// 添加到最近记录
	db.data.RecentRuns = append(db.data.RecentRuns, record)

	// 保持最近记录数量限制
	if len(db.data.RecentRuns) > MaxRecentRecords {
		sort.Slice(db.data.RecentRuns, func(i, j int) bool {
			return db.data.RecentRuns[i].Timestamp.After(db.data.RecentRuns[j].Timestamp)
		})
		db.data.RecentRuns = db.data.RecentRuns[:MaxRecentRecords]
	}

	return db.saveUnsafe()
}

// Reset 清空所有统计
func (db *Database) Reset() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	db.data = newStatisticsDB()
	return db.saveUnsafe()
}

// GetStats 获取统计数据（只读副本）
func (db *Database) GetStats() *StatisticsDB {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	// 创建深拷贝
	data, _ := json.Marshal(db.data)
	var copy StatisticsDB
	_ = json.Unmarshal(data, &copy)

	return &copy
}

// GetRecentRuns 获取最近的运行记录，最新的在前
func (db *Database) GetRecentRuns(limit int) []*RunRecord {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	if limit <= 0 || limit > len(db.data.RecentRuns) {
		limit = len(db.data.RecentRuns)
	}

	sorted := make([]*RunRecord, len(db.data.RecentRuns))
	copy(sorted, db.data.RecentRuns)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	return sorted[:limit]
}

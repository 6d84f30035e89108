// Package cache 提供按 (原文, 目标语言) 索引的翻译缓存及其持久化
package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/page-translator/pkg/lang"
)

// ErrPersistence 缓存持久化失败
var ErrPersistence = errors.New("cache persistence failed")

// Key 缓存键，(原文, 目标语言) 唯一
type Key struct {
	Text string
	Lang lang.Code
}

// Entry 缓存条目
type Entry struct {
	Text       string    `json:"text"`
	Lang       lang.Code `json:"lang"`
	Translated string    `json:"translated"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Key 返回条目的缓存键
func (e Entry) Key() Key {
	return Key{Text: e.Text, Lang: e.Lang}
}

// Stats 缓存统计信息
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int64 `json:"size"`
}

// Store 持久化后端
type Store interface {
	// Load 读取全部条目，数据不存在时返回空列表
	Load(ctx context.Context) ([]Entry, error)
	// Save 用给定条目整体替换已持久化的数据，只在显式清空后使用
	Save(ctx context.Context, entries []Entry) error
	// Upsert 合并写入条目，已持久化的其他条目保持不变
	Upsert(ctx context.Context, entries []Entry) error
}

// Cache 翻译缓存
type Cache struct {
	mu     sync.RWMutex
	data   map[Key]Entry
	store  Store
	logger *zap.Logger

	// presets 只读的预定义翻译，不会写回存储
	presets map[Key]Entry
	// dirty 自上次 Flush 以来新写入的键
	dirty map[Key]struct{}
	// cleared 调用过 Clear，下次 Flush 整体替换存储
	cleared    bool
	loadFailed bool

	hits   atomic.Int64
	misses atomic.Int64
}

// Option 缓存选项
type Option func(*Cache)

// WithStore 设置持久化后端
func WithStore(store Store) Option {
	return func(c *Cache) {
		c.store = store
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New 创建缓存，未设置存储时仅在内存中保存
func New(opts ...Option) *Cache {
	c := &Cache{
		data:    make(map[Key]Entry),
		presets: make(map[Key]Entry),
		dirty:   make(map[Key]struct{}),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get 获取翻译
func (c *Cache) Get(text string, target lang.Code) (string, bool) {
	key := Key{Text: text, Lang: target}
	c.mu.RLock()
	entry, ok := c.data[key]
	if !ok {
		entry, ok = c.presets[key]
	}
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return "", false
	}
	c.hits.Add(1)
	return entry.Translated, true
}

// Put 写入翻译，已存在时覆盖
func (c *Cache) Put(text string, target lang.Code, translated string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key{Text: text, Lang: target}
	c.data[key] = Entry{
		Text:       text,
		Lang:       target,
		Translated: translated,
		UpdatedAt:  time.Now().UTC(),
	}
	c.dirty[key] = struct{}{}
}

// Seed 批量写入条目（如导入的翻译表），下次 Flush 时持久化
func (c *Cache) Seed(entries []Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range mergeEntries(c.data, entries) {
		c.dirty[key] = struct{}{}
	}
}

// Preset 设置只读的预定义翻译。
// 查询时优先使用缓存条目，预定义翻译不计入 Len/Entries，也不会写回存储。
func (c *Cache) Preset(entries []Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	mergeEntries(c.presets, entries)
}

// mergeEntries 写入合法条目，返回写入的键
func mergeEntries(dst map[Key]Entry, entries []Entry) []Key {
	keys := make([]Key, 0, len(entries))
	for _, e := range entries {
		if e.Text == "" || !e.Lang.Valid() {
			continue
		}
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = time.Now().UTC()
		}
		dst[e.Key()] = e
		keys = append(keys, e.Key())
	}
	return keys
}

// Len 返回条目数量
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Entries 返回按语言和原文排序的条目快照
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	entries := make([]Entry, 0, len(c.data))
	for _, e := range c.data {
		entries = append(entries, e)
	}
	c.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Lang != entries[j].Lang {
			return entries[i].Lang < entries[j].Lang
		}
		return entries[i].Text < entries[j].Text
	})
	return entries
}

// Clear 清空内存中的条目，下次 Flush 时整体替换存储
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = make(map[Key]Entry)
	c.dirty = make(map[Key]struct{})
	c.cleared = true
	c.hits.Store(0)
	c.misses.Store(0)
}

// Stats 获取缓存统计信息
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   int64(c.Len()),
	}
}

// LoadFailed 报告最近一次 Load 是否失败
func (c *Cache) LoadFailed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadFailed
}

// Load 从存储加载条目。
// 读取失败或数据损坏时缓存保持为空并返回错误，调用方只需记录日志；
// 之后的 Flush 只合并写入新条目，不会覆盖存储中已有的数据。
func (c *Cache) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	entries, err := c.store.Load(ctx)
	if err != nil {
		c.mu.Lock()
		c.loadFailed = true
		c.mu.Unlock()
		c.logger.Warn("failed to load translation cache, starting empty", zap.Error(err))
		return fmt.Errorf("%w: load: %v", ErrPersistence, err)
	}

	c.mu.Lock()
	loaded := make(map[Key]Entry, len(entries))
	mergeEntries(loaded, entries)
	// 加载前写入的条目保留
	for key := range c.dirty {
		loaded[key] = c.data[key]
	}
	c.data = loaded
	c.loadFailed = false
	n := len(c.data)
	c.mu.Unlock()

	c.logger.Debug("translation cache loaded", zap.Int("entries", n))
	return nil
}

// Flush 把新写入的条目合并到存储；调用过 Clear 时整体替换
func (c *Cache) Flush(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	c.mu.Lock()
	replace := c.cleared
	pending := c.dirty
	entries := make([]Entry, 0, len(pending))
	if replace {
		for _, e := range c.data {
			entries = append(entries, e)
		}
	} else {
		for key := range pending {
			entries = append(entries, c.data[key])
		}
	}
	c.dirty = make(map[Key]struct{})
	c.cleared = false
	c.mu.Unlock()

	if !replace && len(entries) == 0 {
		return nil
	}

	var err error
	if replace {
		err = c.store.Save(ctx, entries)
	} else {
		err = c.store.Upsert(ctx, entries)
	}
	if err != nil {
		// 恢复待写入状态，下次 Flush 重试
		c.mu.Lock()
		for key := range pending {
			if _, ok := c.data[key]; ok {
				c.dirty[key] = struct{}{}
			}
		}
		c.cleared = c.cleared || replace
		c.mu.Unlock()
		return fmt.Errorf("%w: save: %v", ErrPersistence, err)
	}

	c.logger.Debug("translation cache flushed",
		zap.Int("entries", len(entries)), zap.Bool("replace", replace))
	return nil
}

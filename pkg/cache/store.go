package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// fileFormatVersion 缓存文件格式版本
const fileFormatVersion = 1

// fileRecord 缓存文件内容
type fileRecord struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

// FileStore 把全部条目序列化为一个 JSON 文件
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore 创建文件存储
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path 返回文件路径
func (s *FileStore) Path() string {
	return s.path
}

// Load 读取缓存文件，文件不存在时返回空列表
func (s *FileStore) Load(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) read() ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache file: %w", err)
	}

	var record fileRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode cache file: %w", err)
	}
	if record.Version != fileFormatVersion {
		return nil, fmt.Errorf("unsupported cache file version %d", record.Version)
	}
	return record.Entries, nil
}

// Save 原子地写入缓存文件（先写临时文件再重命名）
func (s *FileStore) Save(ctx context.Context, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(entries)
}

// Upsert 读取已有文件并按键合并后原子写回。
// 已有文件无法解析时返回错误，不覆盖原文件。
func (s *FileStore) Upsert(ctx context.Context, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.read()
	if err != nil {
		return err
	}
	return s.write(upsertEntries(existing, entries))
}

func (s *FileStore) write(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(fileRecord{Version: fileFormatVersion, Entries: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache file: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}

// MemoryStore 进程内存储，用于测试和禁用持久化的场景
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
	saves   int
	err     error
}

// NewMemoryStore 创建内存存储
func NewMemoryStore(entries ...Entry) *MemoryStore {
	return &MemoryStore{entries: append([]Entry(nil), entries...)}
}

// FailWith 让后续的 Load/Save 返回指定错误
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Load 返回已保存的条目
func (s *MemoryStore) Load(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]Entry(nil), s.entries...), nil
}

// Save 替换已保存的条目
func (s *MemoryStore) Save(ctx context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append([]Entry(nil), entries...)
	s.saves++
	return nil
}

// Upsert 按键合并条目
func (s *MemoryStore) Upsert(ctx context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = upsertEntries(s.entries, entries)
	s.saves++
	return nil
}

// Entries 返回已保存条目的副本
func (s *MemoryStore) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...)
}

// Saves 返回 Save/Upsert 成功的次数
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// upsertEntries 用 updates 覆盖 existing 中同键的条目，保持原有顺序
func upsertEntries(existing, updates []Entry) []Entry {
	index := make(map[Key]int, len(existing))
	merged := append([]Entry(nil), existing...)
	for i, e := range merged {
		index[e.Key()] = i
	}
	for _, e := range updates {
		if i, ok := index[e.Key()]; ok {
			merged[i] = e
			continue
		}
		index[e.Key()] = len(merged)
		merged = append(merged, e)
	}
	return merged
}

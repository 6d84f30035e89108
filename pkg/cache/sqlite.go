package cache

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nerdneilsfield/page-translator/pkg/lang"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS translation_cache (
	source_text     TEXT    NOT NULL,
	target_lang     TEXT    NOT NULL,
	translated_text TEXT    NOT NULL,
	updated_at      INTEGER NOT NULL,
	PRIMARY KEY (source_text, target_lang)
)`

// SQLiteStore 基于 SQLite 的缓存存储
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite 打开（必要时创建）SQLite 缓存数据库
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close 关闭数据库
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load 读取全部条目
func (s *SQLiteStore) Load(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_text, target_lang, translated_text, updated_at FROM translation_cache`)
	if err != nil {
		return nil, fmt.Errorf("query cache: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			target    string
			updatedAt int64
		)
		if err := rows.Scan(&e.Text, &target, &e.Translated, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan cache row: %w", err)
		}
		code, err := lang.Parse(target)
		if err != nil {
			continue
		}
		e.Lang = code
		e.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cache rows: %w", err)
	}
	return entries, nil
}

// Save 在一个事务中替换全部条目，只用于显式清空缓存
func (s *SQLiteStore) Save(ctx context.Context, entries []Entry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM translation_cache`); err != nil {
			return fmt.Errorf("clear cache table: %w", err)
		}
		return upsertRows(ctx, tx, entries)
	})
}

// Upsert 在一个事务中插入或更新条目，不删除其他行
func (s *SQLiteStore) Upsert(ctx context.Context, entries []Entry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return upsertRows(ctx, tx, entries)
	})
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func upsertRows(ctx context.Context, tx *sql.Tx, entries []Entry) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO translation_cache (source_text, target_lang, translated_text, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (source_text, target_lang)
		 DO UPDATE SET translated_text = excluded.translated_text, updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Text, string(e.Lang), e.Translated, e.UpdatedAt.UTC().UnixMilli()); err != nil {
			return fmt.Errorf("insert cache row: %w", err)
		}
	}
	return nil
}

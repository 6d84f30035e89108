package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/page-translator/pkg/lang"
)

func TestCacheGetPut(t *testing.T) {
	c := New()

	_, ok := c.Get("返回首页", lang.English)
	assert.False(t, ok)

	c.Put("返回首页", lang.English, "Back to Home")

	// 多次读取结果一致
	for i := 0; i < 5; i++ {
		got, ok := c.Get("返回首页", lang.English)
		require.True(t, ok)
		assert.Equal(t, "Back to Home", got)
	}

	// 不同目标语言是不同的键
	_, ok = c.Get("返回首页", lang.Chinese)
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(5), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, int64(1), stats.Size)
}

func TestCachePutOverwrites(t *testing.T) {
	c := New()
	c.Put("任务广场", lang.English, "Task Plaza")
	c.Put("任务广场", lang.English, "Task Square")

	got, ok := c.Get("任务广场", lang.English)
	require.True(t, ok)
	assert.Equal(t, "Task Square", got)
	assert.Equal(t, 1, c.Len())
}

func TestCacheEntriesSorted(t *testing.T) {
	c := New()
	c.Put("b", lang.English, "B")
	c.Put("a", lang.English, "A")
	c.Put("Hello", lang.Chinese, "你好")

	entries := c.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, lang.English, entries[0].Lang)
	assert.Equal(t, "a", entries[0].Text)
	assert.Equal(t, "b", entries[1].Text)
	assert.Equal(t, lang.Chinese, entries[2].Lang)
}

func TestCacheSeedSkipsInvalid(t *testing.T) {
	c := New()
	c.Seed([]Entry{
		{Text: "愿望", Lang: lang.English, Translated: "Wish"},
		{Text: "", Lang: lang.English, Translated: "empty"},
		{Text: "bonjour", Lang: lang.Code("fr"), Translated: "hello"},
	})

	assert.Equal(t, 1, c.Len())
	got, ok := c.Get("愿望", lang.English)
	require.True(t, ok)
	assert.Equal(t, "Wish", got)
}

func TestCacheLoadFlushMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(Entry{Text: "角色", Lang: lang.English, Translated: "Roles"})
	c := New(WithStore(store))

	require.NoError(t, c.Load(ctx))
	got, ok := c.Get("角色", lang.English)
	require.True(t, ok)
	assert.Equal(t, "Roles", got)

	c.Put("叙事", lang.English, "Narratives")
	require.NoError(t, c.Flush(ctx))
	assert.Equal(t, 1, store.Saves())

	reloaded := New(WithStore(store))
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, 2, reloaded.Len())
}

func TestCacheLoadFailureStartsEmpty(t *testing.T) {
	store := NewMemoryStore(Entry{Text: "角色", Lang: lang.English, Translated: "Roles"})
	store.FailWith(errors.New("disk on fire"))
	c := New(WithStore(store))

	err := c.Load(context.Background())
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, 0, c.Len())

	// 缓存仍然可用
	c.Put("角色", lang.English, "Roles")
	got, ok := c.Get("角色", lang.English)
	assert.True(t, ok)
	assert.Equal(t, "Roles", got)
}

func TestCacheFlushFailure(t *testing.T) {
	store := NewMemoryStore()
	c := New(WithStore(store))
	c.Put("代理", lang.English, "Agents")

	store.FailWith(errors.New("read-only"))
	assert.ErrorIs(t, c.Flush(context.Background()), ErrPersistence)
}

func TestCacheWithoutStore(t *testing.T) {
	c := New()
	assert.NoError(t, c.Load(context.Background()))
	assert.NoError(t, c.Flush(context.Background()))
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "cache.json")
	store := NewFileStore(path)

	entries, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	c := New(WithStore(store))
	c.Put("发布任务", lang.English, "Launch Mission")
	c.Put("Hello world", lang.Chinese, "你好世界")
	require.NoError(t, c.Flush(ctx))

	reloaded := New(WithStore(NewFileStore(path)))
	require.NoError(t, reloaded.Load(ctx))
	got, ok := reloaded.Get("Hello world", lang.Chinese)
	require.True(t, ok)
	assert.Equal(t, "你好世界", got)
	assert.Equal(t, 2, reloaded.Len())
}

func TestFileStoreCorruptData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	c := New(WithStore(NewFileStore(path)))
	err := c.Load(context.Background())
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, 0, c.Len())
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer store.Close()

	c := New(WithStore(store))
	c.Put("智能体", lang.English, "Agents")
	c.Put("Wishes", lang.Chinese, "愿望")
	require.NoError(t, c.Flush(ctx))

	// 覆盖后再次写入
	c.Put("智能体", lang.English, "AI Agents")
	require.NoError(t, c.Flush(ctx))

	reloaded := New(WithStore(store))
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, 2, reloaded.Len())
	got, ok := reloaded.Get("智能体", lang.English)
	require.True(t, ok)
	assert.Equal(t, "AI Agents", got)
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	_, err := OpenSQLite("  ")
	assert.Error(t, err)
}

func TestCacheFlushAfterFailedLoadKeepsStoredEntries(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(
		Entry{Text: "角色", Lang: lang.English, Translated: "Roles"},
		Entry{Text: "叙事", Lang: lang.English, Translated: "Narratives"},
	)
	store.FailWith(errors.New("database is locked"))
	c := New(WithStore(store))

	require.ErrorIs(t, c.Load(ctx), ErrPersistence)
	assert.True(t, c.LoadFailed())

	store.FailWith(nil)
	c.Put("代理", lang.English, "Agents")
	require.NoError(t, c.Flush(ctx))

	stored := store.Entries()
	require.Len(t, stored, 3)
	reloaded := New(WithStore(store))
	require.NoError(t, reloaded.Load(ctx))
	assert.False(t, reloaded.LoadFailed())
	for _, text := range []string{"角色", "叙事", "代理"} {
		_, ok := reloaded.Get(text, lang.English)
		assert.True(t, ok, text)
	}
}

func TestCacheFlushWritesOnlyNewEntries(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(Entry{Text: "角色", Lang: lang.English, Translated: "Roles"})
	c := New(WithStore(store))
	require.NoError(t, c.Load(ctx))

	// 没有新条目时不访问存储
	require.NoError(t, c.Flush(ctx))
	assert.Equal(t, 0, store.Saves())

	c.Put("角色", lang.English, "Characters")
	require.NoError(t, c.Flush(ctx))
	require.NoError(t, c.Flush(ctx))
	assert.Equal(t, 1, store.Saves())

	stored := store.Entries()
	require.Len(t, stored, 1)
	assert.Equal(t, "Characters", stored[0].Translated)
}

func TestCacheFlushRetriesAfterFailure(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	c := New(WithStore(store))
	c.Put("代理", lang.English, "Agents")

	store.FailWith(errors.New("read-only"))
	require.ErrorIs(t, c.Flush(ctx), ErrPersistence)

	store.FailWith(nil)
	require.NoError(t, c.Flush(ctx))
	assert.Len(t, store.Entries(), 1)
}

func TestCacheClearReplacesStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(
		Entry{Text: "角色", Lang: lang.English, Translated: "Roles"},
		Entry{Text: "叙事", Lang: lang.English, Translated: "Narratives"},
	)
	c := New(WithStore(store))
	require.NoError(t, c.Load(ctx))

	c.Clear()
	require.NoError(t, c.Flush(ctx))
	assert.Empty(t, store.Entries())

	c.Put("代理", lang.English, "Agents")
	require.NoError(t, c.Flush(ctx))
	assert.Len(t, store.Entries(), 1)
}

func TestCachePresetIsReadOnly(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	c := New(WithStore(store))
	c.Preset([]Entry{
		{Text: "返回首页", Lang: lang.English, Translated: "Back to Home"},
		{Text: "", Lang: lang.English, Translated: "empty"},
	})

	got, ok := c.Get("返回首页", lang.English)
	require.True(t, ok)
	assert.Equal(t, "Back to Home", got)
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Entries())

	c.Put("发布任务", lang.English, "Launch Mission")
	require.NoError(t, c.Flush(ctx))
	stored := store.Entries()
	require.Len(t, stored, 1)
	assert.Equal(t, "发布任务", stored[0].Text)

	// 缓存条目优先于预定义翻译
	c.Put("返回首页", lang.English, "Home")
	got, _ = c.Get("返回首页", lang.English)
	assert.Equal(t, "Home", got)
}

func TestFileStoreUpsertMergesExisting(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, NewFileStore(path).Save(ctx, []Entry{
		{Text: "角色", Lang: lang.English, Translated: "Roles"},
	}))

	// 未加载就写入的缓存也不能覆盖已有条目
	c := New(WithStore(NewFileStore(path)))
	c.Put("叙事", lang.English, "Narratives")
	require.NoError(t, c.Flush(ctx))

	entries, err := NewFileStore(path).Load(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestFileStoreFlushAfterCorruptLoadKeepsFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	c := New(WithStore(NewFileStore(path)))
	require.ErrorIs(t, c.Load(ctx), ErrPersistence)

	c.Put("代理", lang.English, "Agents")
	assert.ErrorIs(t, c.Flush(ctx), ErrPersistence)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(data))
}

func TestSQLiteStoreUpsertKeepsRows(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(ctx, []Entry{
		{Text: "角色", Lang: lang.English, Translated: "Roles", UpdatedAt: time.Now()},
		{Text: "Wishes", Lang: lang.Chinese, Translated: "愿望", UpdatedAt: time.Now()},
	}))

	c := New(WithStore(store))
	c.Put("代理", lang.English, "Agents")
	require.NoError(t, c.Flush(ctx))

	entries, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	c.Clear()
	require.NoError(t, c.Flush(ctx))
	entries, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

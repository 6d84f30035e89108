package cli_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/page-translator/internal/cli"
	"github.com/nerdneilsfield/page-translator/internal/server"
	"github.com/nerdneilsfield/page-translator/pkg/providers"
)

const wishPage = `<!DOCTYPE html>
<html><head><title>愿望清单</title></head>
<body>
  <h1>愿望清单</h1>
  <a href="/">返回首页</a>
  <span>42</span>
</body></html>`

// dictProvider 双向字典上游，未知文本原样返回
type dictProvider struct {
	dict map[string]string
}

func (d *dictProvider) Name() string { return "google" }

func (d *dictProvider) Translate(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	if translated, ok := d.dict[req.Text]; ok {
		return &providers.Response{Text: translated, Provider: d.Name()}, nil
	}
	return &providers.Response{Text: req.Text, Provider: d.Name()}, nil
}

type env struct {
	dir    string
	config string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	t.Setenv("LC_ALL", "C")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "")

	upstream := &dictProvider{dict: map[string]string{
		"愿望清单":      "Wish List",
		"返回首页":      "Back to Home",
		"Wish List":    "愿望清单",
		"Back to Home": "返回首页",
	}}
	svc := server.NewService([]providers.Translator{upstream}, server.WithMinInterval(0))
	ts := httptest.NewServer(server.NewServer(svc, nil, server.Options{}).Handler())
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	cfg := fmt.Sprintf(`primary_endpoint: %s/api/translation
secondary_endpoint: http://127.0.0.1:1
request_timeout: 2
max_retries: 0
group_delay_ms: 0
cache_backend: json
cache_path: %s
language_path: %s
stats_path: %s
`,
		ts.URL,
		filepath.Join(dir, "cache.json"),
		filepath.Join(dir, "language"),
		filepath.Join(dir, "stats.json"),
	)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))

	return &env{dir: dir, config: path}
}

func (e *env) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := cli.NewRootCommand("test", "none", "unknown")
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append(args, "--config", e.config))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func (e *env) path(name string) string {
	return filepath.Join(e.dir, name)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestTranslateRoundTrip(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.WriteFile(e.path("page.html"), []byte(wishPage), 0o644))

	_, summary, err := e.run(t, "translate", e.path("page.html"), e.path("page.en.html"), "--source", "zh")
	require.NoError(t, err)
	assert.Contains(t, summary, "zh → en")

	english := readFile(t, e.path("page.en.html"))
	assert.Contains(t, english, "<h1>Wish List</h1>")
	assert.Contains(t, english, "Back to Home")
	assert.Contains(t, english, "<span>42</span>")
	assert.Contains(t, english, `lang="en"`)

	out, _, err := e.run(t, "lang")
	require.NoError(t, err)
	assert.Equal(t, "en (English) [persisted]\n", out)

	// 不指定 --source 时使用保存的语言，切回中文
	_, _, err = e.run(t, "translate", e.path("page.en.html"), e.path("page.zh.html"))
	require.NoError(t, err)

	chinese := readFile(t, e.path("page.zh.html"))
	assert.Contains(t, chinese, "<h1>愿望清单</h1>")
	assert.Contains(t, chinese, `lang="zh"`)

	out, _, err = e.run(t, "stats", "--recent", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Total Runs")
	assert.Contains(t, out, "page.en.html")
}

func TestTranslateToStdout(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.WriteFile(e.path("page.html"), []byte(wishPage), 0o644))

	out, summary, err := e.run(t, "translate", e.path("page.html"), "--source", "auto", "--quiet", "--no-stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Wish List")
	assert.Empty(t, summary)

	_, err = os.Stat(e.path("stats.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestTranslateRejectsBadSource(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.WriteFile(e.path("page.html"), []byte(wishPage), 0o644))

	_, _, err := e.run(t, "translate", e.path("page.html"), "--source", "fr")
	assert.Error(t, err)

	_, _, err = e.run(t, "translate", e.path("missing.html"))
	assert.Error(t, err)
}

func TestLangCommands(t *testing.T) {
	e := newEnv(t)

	out, _, err := e.run(t, "lang")
	require.NoError(t, err)
	assert.Equal(t, "zh (中文) [default]\n", out)

	out, _, err = e.run(t, "lang", "toggle")
	require.NoError(t, err)
	assert.Equal(t, "en (English) [set]\n", out)

	out, _, err = e.run(t, "lang", "set", "zh")
	require.NoError(t, err)
	assert.Equal(t, "zh (中文) [set]\n", out)

	_, _, err = e.run(t, "lang", "set", "ja")
	assert.Error(t, err)
}

func TestCacheImportExport(t *testing.T) {
	e := newEnv(t)
	table := `source_lang = "zh"
target_lang = "en"

[translations]
"发布你的愿望" = "Post Your Wish"
`
	require.NoError(t, os.WriteFile(e.path("wish.toml"), []byte(table), 0o644))

	out, _, err := e.run(t, "cache", "import", e.path("wish.toml"))
	require.NoError(t, err)
	assert.Contains(t, out, "1")

	out, _, err = e.run(t, "cache", "list", "--lang", "en")
	require.NoError(t, err)
	assert.Contains(t, out, "发布你的愿望")
	assert.Contains(t, out, "Post Your Wish")

	_, _, err = e.run(t, "cache", "export", e.path("export.toml"), "--lang", "en")
	require.NoError(t, err)
	assert.Contains(t, readFile(t, e.path("export.toml")), "Post Your Wish")

	_, _, err = e.run(t, "cache", "clear")
	require.NoError(t, err)

	out, _, err = e.run(t, "cache", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "Post Your Wish")
}

func TestPredefinedTranslationsNotPersisted(t *testing.T) {
	e := newEnv(t)
	table := `source_lang = "zh"
target_lang = "en"

[translations]
"愿望清单" = "Wishlist"
`
	require.NoError(t, os.WriteFile(e.path("wish.toml"), []byte(table), 0o644))
	f, err := os.OpenFile(e.config, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = fmt.Fprintf(f, "predefined_translations:\n  - %s\n", e.path("wish.toml"))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, os.WriteFile(e.path("page.html"), []byte(wishPage), 0o644))

	_, _, err = e.run(t, "translate", e.path("page.html"), e.path("page.en.html"), "--source", "zh")
	require.NoError(t, err)
	english := readFile(t, e.path("page.en.html"))
	assert.Contains(t, english, "<h1>Wishlist</h1>")
	assert.Contains(t, english, "Back to Home")

	// 只有上游翻译结果写入缓存文件
	stored := readFile(t, e.path("cache.json"))
	assert.Contains(t, stored, "Back to Home")
	assert.NotContains(t, stored, "Wishlist")
}

func TestDetectCommand(t *testing.T) {
	e := newEnv(t)

	out, _, err := e.run(t, "detect", "愿望清单")
	require.NoError(t, err)
	assert.Contains(t, out, "zh (中文)")
	assert.Contains(t, out, "translate: yes")

	out, _, err = e.run(t, "detect", "2024-01-01")
	require.NoError(t, err)
	assert.Contains(t, out, "translate: no")
}

func TestStatsReset(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.WriteFile(e.path("page.html"), []byte(wishPage), 0o644))

	_, _, err := e.run(t, "translate", e.path("page.html"), e.path("out.html"), "--source", "zh")
	require.NoError(t, err)

	// 未确认时不重置
	out, _, err := e.run(t, "stats", "--reset")
	require.NoError(t, err)
	assert.Contains(t, out, "cancelled")

	out, _, err = e.run(t, "stats", "--reset", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "reset")

	require.NoError(t, os.MkdirAll(e.path("export"), 0o755))
	_, _, err = e.run(t, "stats", "--export", e.path("export/stats.json"))
	require.NoError(t, err)
	assert.Contains(t, readFile(t, e.path("export/stats.json")), `"total_runs": 0`)
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/page-translator/pkg/client"
	"github.com/nerdneilsfield/page-translator/pkg/lang"
	"github.com/nerdneilsfield/page-translator/pkg/providers"
	"github.com/nerdneilsfield/page-translator/pkg/providers/primary"
	providerstats "github.com/nerdneilsfield/page-translator/pkg/providers/stats"
)

// fakeProvider 按字典翻译的上游提供商
type fakeProvider struct {
	name string
	dict map[string]string
	err  error

	mu    sync.Mutex
	calls []string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Translate(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.Text)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if translated, ok := f.dict[req.Text]; ok {
		return &providers.Response{Text: translated, Provider: f.name}, nil
	}
	return &providers.Response{Text: req.Text, Provider: f.name}, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestServer(t *testing.T, chain ...providers.Translator) *httptest.Server {
	t.Helper()
	svc := NewService(chain, WithMinInterval(0))
	ts := httptest.NewServer(NewServer(svc, nil, Options{}).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body string, out any) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHandleTranslate(t *testing.T) {
	google := &fakeProvider{name: "google", err: errors.New("blocked")}
	libre := &fakeProvider{name: "libretranslate", dict: map[string]string{"返回首页": "Back to Home"}}
	ts := newTestServer(t, google, libre)

	var resp translateResponse
	status := postJSON(t, ts.URL+"/api/translation/translate", `{"text":"返回首页","target_lang":"en"}`, &resp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "返回首页", resp.OriginalText)
	assert.Equal(t, "Back to Home", resp.TranslatedText)
	assert.Equal(t, "auto", resp.SourceLang)
	assert.Equal(t, "en", resp.TargetLang)

	// 第二次命中缓存
	postJSON(t, ts.URL+"/api/translation/translate", `{"text":"返回首页","target_lang":"en"}`, &resp)
	assert.Equal(t, 1, libre.callCount())
}

func TestHandleTranslateRejectsUnsupportedTarget(t *testing.T) {
	ts := newTestServer(t)

	var resp errorResponse
	status := postJSON(t, ts.URL+"/api/translation/translate", `{"text":"hi","target_lang":"fr"}`, &resp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "fail", resp.Status)

	status = postJSON(t, ts.URL+"/api/translation/translate", `{not json`, &resp)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHandleTranslateBatchDedupes(t *testing.T) {
	upstream := &fakeProvider{name: "google", dict: map[string]string{
		"返回首页": "Back to Home",
		"愿望清单": "Wish List",
	}}
	ts := newTestServer(t, upstream)

	var resp batchResponse
	status := postJSON(t, ts.URL+"/api/translation/translate_batch",
		`{"texts":["返回首页","愿望清单","返回首页","未知"],"target_lang":"en","source_lang":"auto"}`, &resp)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp.Results, 4)

	assert.Equal(t, "Back to Home", resp.Results[0].TranslatedText)
	assert.Equal(t, "Wish List", resp.Results[1].TranslatedText)
	assert.Equal(t, "Back to Home", resp.Results[2].TranslatedText)
	// 翻译失败返回原文
	assert.Equal(t, "未知", resp.Results[3].TranslatedText)
	assert.Equal(t, 3, upstream.callCount())
}

func TestHandleTranslateForm(t *testing.T) {
	upstream := &fakeProvider{name: "google", dict: map[string]string{"发布你的愿望": "Post your wish"}}
	ts := newTestServer(t, upstream)

	var resp struct {
		TranslatedData map[string]any `json:"translated_data"`
	}
	status := postJSON(t, ts.URL+"/api/translation/translate_form",
		`{"form_data":{"title":"发布你的愿望","budget":100,"note":"  "},"target_lang":"en"}`, &resp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Post your wish", resp.TranslatedData["title"])
	assert.Equal(t, float64(100), resp.TranslatedData["budget"])
	assert.Equal(t, "  ", resp.TranslatedData["note"])
}

func TestHandleTranslateCard(t *testing.T) {
	upstream := &fakeProvider{name: "google", dict: map[string]string{
		"愿望清单":   "Wish List",
		"发布你的愿望": "Post your wish",
	}}
	ts := newTestServer(t, upstream)

	var resp cardResponse
	status := postJSON(t, ts.URL+"/api/translation/translate_card",
		`{"title":"愿望清单","description":"发布你的愿望","target_lang":"en"}`, &resp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Wish List", resp.TranslatedTitle)
	assert.Equal(t, "Post your wish", resp.TranslatedDescription)
}

func TestHandleDetectAndLanguages(t *testing.T) {
	ts := newTestServer(t)

	var detected map[string]string
	postJSON(t, ts.URL+"/api/translation/detect", `{"text":"你好世界 ok"}`, &detected)
	assert.Equal(t, "zh", detected["detected_language"])

	resp, err := http.Get(ts.URL + "/api/translation/languages")
	require.NoError(t, err)
	defer resp.Body.Close()
	var languages struct {
		Languages map[string]string `json:"languages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&languages))
	assert.Equal(t, map[string]string{"zh": "中文", "en": "English"}, languages.Languages)
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t, &fakeProvider{name: "google"})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, []any{"google"}, body["providers"])
}

func TestHandleHealthReportsProviderStats(t *testing.T) {
	upstream := &fakeProvider{name: "google", dict: map[string]string{"愿望清单": "Wish List"}}
	svc := NewService([]providers.Translator{upstream},
		WithMinInterval(0),
		WithProviderStats(providerstats.NewStatsManager("", nil)))
	ts := httptest.NewServer(NewServer(svc, nil, Options{}).Handler())
	t.Cleanup(ts.Close)

	var tr translateResponse
	require.Equal(t, http.StatusOK, postJSON(t, ts.URL+"/api/translation/translate",
		`{"text":"愿望清单","target_lang":"en"}`, &tr))

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Providers     []string                          `json:"providers"`
		ProviderStats map[string]map[string]interface{} `json:"provider_stats"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []string{"google"}, body.Providers)
	require.Contains(t, body.ProviderStats, "google")
	assert.EqualValues(t, 1, body.ProviderStats["google"]["total_requests"])
}

// 页面翻译客户端与服务端对接
func TestPrimaryClientAgainstServer(t *testing.T) {
	upstream := &fakeProvider{name: "google", dict: map[string]string{
		"返回首页": "Back to Home",
		"愿望清单": "Wish List",
	}}
	ts := newTestServer(t, upstream)

	cfg := primary.DefaultConfig()
	cfg.APIEndpoint = ts.URL + "/api/translation"
	c := client.New(client.WithPrimary(primary.New(cfg)))

	got, err := c.TranslateBatch(context.Background(), []string{"返回首页", "愿望清单"}, lang.English)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"返回首页": "Back to Home", "愿望清单": "Wish List"}, got)

	assert.Equal(t, "Wish List", c.TranslateOne(context.Background(), "愿望清单", lang.English))
}

func TestServiceMinInterval(t *testing.T) {
	upstream := &fakeProvider{name: "google"}
	svc := NewService([]providers.Translator{upstream}, WithMinInterval(20*time.Millisecond), WithMaxConcurrent(2))

	start := time.Now()
	svc.TranslateBatch(context.Background(), []string{"一", "二", "三", "四"}, lang.English, "auto")
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
	assert.Equal(t, 4, upstream.callCount())
}

func TestServiceCachesOnlyChangedResults(t *testing.T) {
	upstream := &fakeProvider{name: "google"}
	svc := NewService([]providers.Translator{upstream}, WithMinInterval(0))

	assert.Equal(t, "Hello", svc.Translate(context.Background(), "Hello", lang.English, "auto"))
	assert.Equal(t, "Hello", svc.Translate(context.Background(), "Hello", lang.English, "auto"))
	assert.Equal(t, 2, upstream.callCount())
	assert.Equal(t, int64(0), svc.CacheStats().Size)
}

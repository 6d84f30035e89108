package primary

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/page-translator/pkg/lang"
	"github.com/nerdneilsfield/page-translator/pkg/providers"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := DefaultConfig()
	config.APIEndpoint = server.URL + "/api/translation/"
	config.MaxRetries = 0
	return New(config)
}

func TestProviderTranslateBatch(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/translation/translate_batch", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req BatchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"返回首页", "任务广场"}, req.Texts)
		assert.Equal(t, lang.English, req.TargetLang)
		assert.Equal(t, "auto", req.SourceLang)

		json.NewEncoder(w).Encode(BatchResponse{Results: []BatchResult{
			{OriginalText: "返回首页", TranslatedText: "Back to Home"},
			{OriginalText: "任务广场", TranslatedText: "Task Square"},
		}})
	})

	results, err := provider.TranslateBatch(context.Background(), []string{"返回首页", "任务广场"}, lang.English)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Back to Home", results[0].TranslatedText)
	assert.Equal(t, "Task Square", results[1].TranslatedText)
}

func TestProviderTranslateBatchMalformed(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	})

	_, err := provider.TranslateBatch(context.Background(), []string{"返回首页"}, lang.English)
	assert.ErrorIs(t, err, providers.ErrMalformedResponse)
}

func TestProviderTranslate(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/translation/translate", r.URL.Path)

		var req TranslateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Hello world", req.Text)
		assert.Equal(t, lang.Chinese, req.TargetLang)
		assert.Equal(t, "auto", req.SourceLang)

		json.NewEncoder(w).Encode(TranslateResponse{TranslatedText: "你好世界"})
	})

	resp, err := provider.Translate(context.Background(), &providers.Request{
		Text:           "Hello world",
		TargetLanguage: lang.Chinese,
	})
	require.NoError(t, err)
	assert.Equal(t, "你好世界", resp.Text)
}

func TestProviderTranslateStatusError(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := provider.Translate(context.Background(), &providers.Request{
		Text:           "Hello world",
		TargetLanguage: lang.Chinese,
	})
	var perr *providers.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, providers.ErrCodeServer, perr.Code)
	assert.True(t, perr.IsRetryable())
}

package stats

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/page-translator/pkg/lang"
	"github.com/nerdneilsfield/page-translator/pkg/providers"
)

type stubProvider struct {
	results []func(req *providers.Request) (*providers.Response, error)
	calls   int
}

func (s *stubProvider) Name() string { return "google" }

func (s *stubProvider) Translate(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	fn := s.results[s.calls%len(s.results)]
	s.calls++
	return fn(req)
}

func translated(text string) func(*providers.Request) (*providers.Response, error) {
	return func(req *providers.Request) (*providers.Response, error) {
		return &providers.Response{Text: text, Provider: "google"}, nil
	}
}

func failing(err error) func(*providers.Request) (*providers.Response, error) {
	return func(req *providers.Request) (*providers.Response, error) {
		return nil, err
	}
}

func TestStatisticsMiddleware(t *testing.T) {
	manager := NewStatsManager("", nil)
	stub := &stubProvider{results: []func(*providers.Request) (*providers.Response, error){
		translated("Wish List"),
		translated("愿望清单"),
		failing(providers.NewError(providers.ErrCodeRateLimit, "too many requests")),
		failing(context.DeadlineExceeded),
	}}
	chain := Wrap([]providers.Translator{stub}, manager)
	require.Len(t, chain, 1)
	assert.Equal(t, "google", chain[0].Name())

	for i := 0; i < 4; i++ {
		_, _ = chain[0].Translate(context.Background(), &providers.Request{Text: "愿望清单", TargetLanguage: lang.English})
	}

	s := manager.GetStats("google")
	require.NotNil(t, s)
	assert.Equal(t, int64(4), s.TotalRequests)
	assert.Equal(t, int64(2), s.SuccessfulRequests)
	assert.Equal(t, int64(2), s.FailedRequests)
	assert.Equal(t, int64(1), s.UnchangedResponses)
	assert.Equal(t, int64(1), s.ErrorTypes[providers.ErrCodeRateLimit])
	assert.Equal(t, int64(1), s.ErrorTypes[providers.ErrCodeTimeout])

	metrics := s.CalculateMetrics()
	assert.InDelta(t, 50.0, metrics["success_rate"], 0.001)
	assert.InDelta(t, 50.0, metrics["unchanged_rate"], 0.001)

	assert.Nil(t, manager.GetStats("libretranslate"))
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, "canceled", classifyError(context.Canceled))
	assert.Equal(t, providers.ErrCodeMalformed, classifyError(providers.Malformed("empty")))
	assert.Equal(t, "unknown", classifyError(errors.New("boom")))
}

func TestStatsManagerPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers", "stats.json")
	manager := NewStatsManager(path, nil)
	require.NoError(t, manager.LoadFromDB())

	manager.RecordRequest("libretranslate", RequestResult{Success: true})
	manager.RecordRequest("libretranslate", RequestResult{ErrorType: providers.ErrCodeServer})
	require.NoError(t, manager.SaveToDB())

	reloaded := NewStatsManager(path, nil)
	require.NoError(t, reloaded.LoadFromDB())
	s := reloaded.GetStats("libretranslate")
	require.NotNil(t, s)
	assert.Equal(t, int64(2), s.TotalRequests)
	assert.Equal(t, int64(1), s.ErrorTypes[providers.ErrCodeServer])
}

func TestPrintStatsTable(t *testing.T) {
	var buf bytes.Buffer
	manager := NewStatsManager("", nil)
	manager.PrintStatsTable(&buf)
	assert.Contains(t, buf.String(), "No statistics available.")

	buf.Reset()
	manager.RecordRequest("google", RequestResult{Success: true})
	manager.PrintStatsTable(&buf)
	assert.Contains(t, buf.String(), "google")
	assert.Contains(t, buf.String(), "100.0%")
}

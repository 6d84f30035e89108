package client

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/page-translator/pkg/lang"
	"github.com/nerdneilsfield/page-translator/pkg/providers"
	"github.com/nerdneilsfield/page-translator/pkg/providers/primary"
)

// mockPrimary 模拟主翻译 API
type mockPrimary struct {
	mock.Mock
}

func (m *mockPrimary) Name() string { return "primary" }

func (m *mockPrimary) Translate(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	args := m.Called(req.Text, req.SourceLanguage, req.TargetLanguage)
	if resp := args.Get(0); resp != nil {
		return resp.(*providers.Response), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPrimary) TranslateBatch(ctx context.Context, texts []string, target lang.Code) ([]primary.BatchResult, error) {
	args := m.Called(texts, target)
	if results := args.Get(0); results != nil {
		return results.([]primary.BatchResult), args.Error(1)
	}
	return nil, args.Error(1)
}

// mockSecondary 模拟备用提供商
type mockSecondary struct {
	mock.Mock
}

func (m *mockSecondary) Name() string { return "libretranslate" }

func (m *mockSecondary) Translate(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	args := m.Called(req.Text, req.SourceLanguage, req.TargetLanguage)
	if resp := args.Get(0); resp != nil {
		return resp.(*providers.Response), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestTranslateBatch(t *testing.T) {
	p := new(mockPrimary)
	p.On("TranslateBatch", []string{"返回首页", "任务广场"}, lang.English).Return([]primary.BatchResult{
		{OriginalText: "返回首页", TranslatedText: "Back to Home"},
		{OriginalText: "任务广场", TranslatedText: ""},
		{OriginalText: "不请自来", TranslatedText: "Uninvited"},
	}, nil)

	c := New(WithPrimary(p))
	got, err := c.TranslateBatch(context.Background(), []string{"返回首页", "任务广场"}, lang.English)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"返回首页": "Back to Home"}, got)
	p.AssertExpectations(t)
}

func TestTranslateBatchFailureSignals(t *testing.T) {
	p := new(mockPrimary)
	p.On("TranslateBatch", mock.Anything, lang.English).Return(nil, providers.NewError(providers.ErrCodeServer, "boom"))

	c := New(WithPrimary(p))
	_, err := c.TranslateBatch(context.Background(), []string{"返回首页"}, lang.English)
	assert.ErrorIs(t, err, ErrBatchFailed)
}

func TestTranslateBatchWithoutPrimary(t *testing.T) {
	c := New()

	got, err := c.TranslateBatch(context.Background(), nil, lang.English)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = c.TranslateBatch(context.Background(), []string{"返回首页"}, lang.English)
	assert.ErrorIs(t, err, ErrBatchFailed)
}

func TestTranslateOnePrimary(t *testing.T) {
	p := new(mockPrimary)
	p.On("Translate", "你好世界", "auto", lang.English).Return(&providers.Response{Text: "Hello world"}, nil)
	s := new(mockSecondary)

	c := New(WithPrimary(p), WithSecondary(s))
	assert.Equal(t, "Hello world", c.TranslateOne(context.Background(), "你好世界", lang.English))
	s.AssertNotCalled(t, "Translate", mock.Anything, mock.Anything, mock.Anything)
}

func TestTranslateOneFallsBackToSecondary(t *testing.T) {
	p := new(mockPrimary)
	p.On("Translate", "Hello world", "auto", lang.Chinese).Return(nil, errors.New("connection refused"))
	s := new(mockSecondary)
	// 备用提供商需要明确的源语言
	s.On("Translate", "Hello world", "en", lang.Chinese).Return(&providers.Response{Text: "你好世界"}, nil)

	c := New(WithPrimary(p), WithSecondary(s))
	assert.Equal(t, "你好世界", c.TranslateOne(context.Background(), "Hello world", lang.Chinese))
	p.AssertExpectations(t)
	s.AssertExpectations(t)
}

func TestTranslateOneReturnsOriginalWhenAllFail(t *testing.T) {
	p := new(mockPrimary)
	p.On("Translate", "返回首页", "auto", lang.English).Return(nil, errors.New("timeout"))
	s := new(mockSecondary)
	s.On("Translate", "返回首页", "zh", lang.English).Return(nil, providers.NewError(providers.ErrCodeRateLimit, "slow down"))

	c := New(WithPrimary(p), WithSecondary(s))
	assert.Equal(t, "返回首页", c.TranslateOne(context.Background(), "返回首页", lang.English))
}

func TestTranslateOneWithoutProviders(t *testing.T) {
	c := New()
	assert.Equal(t, "返回首页", c.TranslateOne(context.Background(), "返回首页", lang.English))
}

// Package stats 统计上游翻译提供商的请求结果与延迟
package stats

import (
	"context"
	"errors"
	"time"

	"github.com/nerdneilsfield/page-translator/pkg/providers"
)

// StatisticsMiddleware 统计中间件
type StatisticsMiddleware struct {
	next         providers.Translator
	statsManager *StatsManager
}

// NewStatisticsMiddleware 创建统计中间件
func NewStatisticsMiddleware(next providers.Translator, statsManager *StatsManager) *StatisticsMiddleware {
	return &StatisticsMiddleware{
		next:         next,
		statsManager: statsManager,
	}
}

// Wrap 为提供商链中的每个提供商加上统计
func Wrap(chain []providers.Translator, statsManager *StatsManager) []providers.Translator {
	wrapped := make([]providers.Translator, len(chain))
	for i, p := range chain {
		wrapped[i] = NewStatisticsMiddleware(p, statsManager)
	}
	return wrapped
}

// Name 获取被包装提供商的名称
func (sm *StatisticsMiddleware) Name() string {
	return sm.next.Name()
}

// Translate 带统计的翻译方法
func (sm *StatisticsMiddleware) Translate(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	startTime := time.Now()
	resp, err := sm.next.Translate(ctx, req)

	result := RequestResult{
		Success: err == nil,
		Latency: time.Since(startTime),
	}
	if err != nil {
		result.ErrorType = classifyError(err)
	} else {
		result.Unchanged = resp == nil || resp.Text == "" || resp.Text == req.Text
	}
	sm.statsManager.RecordRequest(sm.next.Name(), result)

	return resp, err
}

// classifyError 按提供商错误代码归类
func classifyError(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return providers.ErrCodeTimeout
	}

	var perr *providers.Error
	if errors.As(err, &perr) && perr.Code != "" {
		return perr.Code
	}
	return "unknown"
}

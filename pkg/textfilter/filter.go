// Package textfilter 判断页面文本是否值得翻译
package textfilter

import (
	"strings"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/page-translator/pkg/lang"
)

// DefaultMinLength 默认最小文本长度（字符数）
const DefaultMinLength = 2

// rule 跳过规则
type rule struct {
	name    string
	pattern *regexp2.Regexp
}

// 规则按顺序匹配：标识符规则必须在最终的字母检查之前，否则用户名会被误翻译
var skipRules = []rule{
	{name: "numeric", pattern: regexp2.MustCompile(`^[0-9\s]+$`, regexp2.None)},
	{name: "iso-date", pattern: regexp2.MustCompile(`^\d{4}-\d{2}-\d{2}$`, regexp2.None)},
	{name: "symbols", pattern: regexp2.MustCompile(`^[^\p{L}\p{N}]+$`, regexp2.None)},
	{name: "identifier", pattern: regexp2.MustCompile(`^[A-Za-z0-9_]+$`, regexp2.None)},
}

// Filter 文本过滤器
type Filter struct {
	minLength int
	logger    *zap.Logger
}

// Option 过滤器选项
type Option func(*Filter)

// WithMinLength 设置最小文本长度
func WithMinLength(n int) Option {
	return func(f *Filter) {
		if n > 0 {
			f.minLength = n
		}
	}
}

// WithLogger 设置日志记录器，被跳过的文本以 debug 级别记录
func WithLogger(logger *zap.Logger) Option {
	return func(f *Filter) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New 创建文本过滤器
func New(opts ...Option) *Filter {
	f := &Filter{
		minLength: DefaultMinLength,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ShouldTranslate 判断文本是否需要翻译
func (f *Filter) ShouldTranslate(text string) bool {
	text = strings.TrimSpace(text)

	if utf8.RuneCountInString(text) < f.minLength {
		f.logger.Debug("skip text", zap.String("text", text), zap.String("rule", "too-short"))
		return false
	}

	for _, r := range skipRules {
		matched, err := r.pattern.MatchString(text)
		if err != nil {
			continue
		}
		if matched {
			f.logger.Debug("skip text", zap.String("text", text), zap.String("rule", r.name))
			return false
		}
	}

	for _, r := range text {
		if lang.IsHan(r) || lang.IsLatin(r) {
			return true
		}
	}

	f.logger.Debug("skip text", zap.String("text", text), zap.String("rule", "no-letters"))
	return false
}

var defaultFilter = New()

// ShouldTranslate 使用默认过滤器判断文本是否需要翻译
func ShouldTranslate(text string) bool {
	return defaultFilter.ShouldTranslate(text)
}

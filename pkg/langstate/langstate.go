// Package langstate 保存当前显示语言，并在进程重启后恢复
package langstate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/page-translator/pkg/lang"
)

// ErrPersistence 语言偏好读写失败
var ErrPersistence = errors.New("language preference persistence failed")

// Origin 当前语言的来源
type Origin string

const (
	OriginPersisted Origin = "persisted"
	OriginLocale    Origin = "locale"
	OriginDefault   Origin = "default"
	OriginSet       Origin = "set"
)

// Persister 语言偏好的持久化接口
type Persister interface {
	// Load 返回保存的语言，未保存过时 ok 为 false
	Load(ctx context.Context) (code lang.Code, ok bool, err error)
	Save(ctx context.Context, code lang.Code) error
}

// Store 当前语言状态
type Store struct {
	mu        sync.RWMutex
	current   lang.Code
	origin    Origin
	persister Persister
	logger    *zap.Logger
}

// Option 语言状态选项
type Option func(*openOptions)

type openOptions struct {
	logger *zap.Logger
	locale func() string
}

// WithLogger 设置日志记录器
func WithLogger(logger *zap.Logger) Option {
	return func(o *openOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLocale 替换系统 locale 的来源
func WithLocale(fn func() string) Option {
	return func(o *openOptions) {
		if fn != nil {
			o.locale = fn
		}
	}
}

// Open 创建语言状态。初始值依次取：已保存的偏好、系统 locale、fallback。
// 读取失败只记录日志。
func Open(ctx context.Context, p Persister, fallback lang.Code, opts ...Option) *Store {
	o := &openOptions{
		logger: zap.NewNop(),
		locale: lang.EnvLocale,
	}
	for _, opt := range opts {
		opt(o)
	}
	if !fallback.Valid() {
		fallback = lang.Chinese
	}

	s := &Store{
		current:   fallback,
		origin:    OriginDefault,
		persister: p,
		logger:    o.logger,
	}

	if p != nil {
		code, ok, err := p.Load(ctx)
		switch {
		case err != nil:
			o.logger.Warn("读取语言偏好失败", zap.Error(err))
		case ok && code.Valid():
			s.current, s.origin = code, OriginPersisted
			return s
		}
	}

	if code, ok := lang.FromLocale(o.locale()); ok {
		s.current, s.origin = code, OriginLocale
	}
	return s
}

// Get 返回当前语言
func (s *Store) Get() lang.Code {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Origin 返回当前语言的来源
func (s *Store) Origin() Origin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.origin
}

// Set 设置并保存当前语言。
// 不支持的语言返回 ErrUnsupportedLanguage 且不改变状态；
// 保存失败时内存中的值已更新，返回 ErrPersistence。
func (s *Store) Set(ctx context.Context, code lang.Code) error {
	if !code.Valid() {
		return fmt.Errorf("%w: %q", lang.ErrUnsupportedLanguage, code)
	}

	s.mu.Lock()
	s.current, s.origin = code, OriginSet
	s.mu.Unlock()

	if s.persister == nil {
		return nil
	}
	if err := s.persister.Save(ctx, code); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// Toggle 切换到另一种语言并返回新值
func (s *Store) Toggle(ctx context.Context) (lang.Code, error) {
	next := s.Get().Other()
	return next, s.Set(ctx, next)
}

// Follow 返回语言切换回调，出错只记录日志，可直接订阅编排器的语言切换事件
func (s *Store) Follow(ctx context.Context) func(lang.Code) {
	return func(code lang.Code) {
		if err := s.Set(ctx, code); err != nil {
			s.logger.Warn("更新语言偏好失败", zap.String("lang", code.String()), zap.Error(err))
		}
	}
}

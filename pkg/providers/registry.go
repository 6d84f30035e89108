package providers

import (
	"fmt"
	"sort"
	"sync"
)

// Registry 提供商注册表
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Translator
}

// NewRegistry 创建新的注册表
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Translator),
	}
}

// Register 注册提供商
func (r *Registry) Register(provider Translator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := provider.Name()
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}

	r.providers[name] = provider
	return nil
}

// Get 获取提供商
func (r *Registry) Get(name string) (Translator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[name]
	if !exists {
		return nil, fmt.Errorf("provider %s not found", name)
	}

	return provider, nil
}

// Chain 按给定顺序返回提供商列表
func (r *Registry) Chain(names ...string) ([]Translator, error) {
	chain := make([]Translator, 0, len(names))
	for _, name := range names {
		p, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		chain = append(chain, p)
	}
	return chain, nil
}

// List 列出所有提供商
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

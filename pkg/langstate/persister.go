package langstate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nerdneilsfield/page-translator/pkg/lang"
)

// FilePersister 把语言代码保存为单行文本文件
type FilePersister struct {
	path string
}

// NewFilePersister 创建文件持久化
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// Path 返回文件路径
func (p *FilePersister) Path() string {
	return p.path
}

// Load 读取保存的语言，文件不存在时返回 ok=false
func (p *FilePersister) Load(ctx context.Context) (lang.Code, bool, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read language file: %w", err)
	}

	code, err := lang.Parse(strings.TrimSpace(string(data)))
	if err != nil {
		return "", false, fmt.Errorf("language file %s: %w", p.path, err)
	}
	return code, true, nil
}

// Save 写入语言代码
func (p *FilePersister) Save(ctx context.Context, code lang.Code) error {
	if dir := filepath.Dir(p.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create language dir: %w", err)
		}
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(code.String()+"\n"), 0o644); err != nil {
		return fmt.Errorf("write language file: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace language file: %w", err)
	}
	return nil
}

// MemoryPersister 进程内持久化，用于测试
type MemoryPersister struct {
	mu    sync.Mutex
	code  lang.Code
	saved bool
	err   error
}

// NewMemoryPersister 创建内存持久化，code 为空表示未保存过
func NewMemoryPersister(code lang.Code) *MemoryPersister {
	return &MemoryPersister{code: code, saved: code != ""}
}

// FailWith 让后续的 Load/Save 返回指定错误
func (p *MemoryPersister) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Load 返回保存的语言
func (p *MemoryPersister) Load(ctx context.Context) (lang.Code, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", false, p.err
	}
	return p.code, p.saved, nil
}

// Save 保存语言
func (p *MemoryPersister) Save(ctx context.Context, code lang.Code) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.code, p.saved = code, true
	return nil
}

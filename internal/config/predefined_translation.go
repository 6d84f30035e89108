package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/nerdneilsfield/page-translator/pkg/cache"
	"github.com/nerdneilsfield/page-translator/pkg/lang"
)

// PredefinedTranslation 预定义翻译表，导入后作为缓存条目使用
type PredefinedTranslation struct {
	SourceLang   string            `toml:"source_lang"`
	TargetLang   string            `toml:"target_lang"`
	Translations map[string]string `toml:"translations"`
}

func NewPredefinedTranslation(sourceLang, targetLang string, translations map[string]string) *PredefinedTranslation {
	return &PredefinedTranslation{
		SourceLang:   sourceLang,
		TargetLang:   targetLang,
		Translations: translations,
	}
}

func LoadPredefinedTranslations(path string) (*PredefinedTranslation, error) {
	// check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("predefined translations file not found: %s", path)
	}

	translations := &PredefinedTranslation{}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read predefined translations file: %w", err)
	}
	if err := toml.Unmarshal(content, translations); err != nil {
		return nil, fmt.Errorf("failed to unmarshal predefined translations: %w", err)
	}
	if translations.SourceLang == "" || translations.TargetLang == "" {
		return nil, fmt.Errorf("predefined translations file is missing source_lang or target_lang")
	}
	if _, err := translations.Entries(); err != nil {
		return nil, err
	}
	return translations, nil
}

// SavePredefinedTranslations 写出 TOML 翻译表
func SavePredefinedTranslations(path string, p *PredefinedTranslation) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create predefined translations file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(p); err != nil {
		return fmt.Errorf("failed to encode predefined translations: %w", err)
	}
	return nil
}

// Entries 转换为缓存条目，跳过空白的键值
func (p *PredefinedTranslation) Entries() ([]cache.Entry, error) {
	if _, err := lang.Parse(p.SourceLang); err != nil {
		return nil, fmt.Errorf("source_lang: %w", err)
	}
	target, err := lang.Parse(p.TargetLang)
	if err != nil {
		return nil, fmt.Errorf("target_lang: %w", err)
	}

	entries := make([]cache.Entry, 0, len(p.Translations))
	for text, translated := range p.Translations {
		if text == "" || translated == "" {
			continue
		}
		entries = append(entries, cache.Entry{Text: text, Lang: target, Translated: translated})
	}
	return entries, nil
}

// FromCache 导出缓存中目标语言为 target 的条目
func FromCache(entries []cache.Entry, target lang.Code) *PredefinedTranslation {
	translations := make(map[string]string)
	for _, e := range entries {
		if e.Lang == target {
			translations[e.Text] = e.Translated
		}
	}
	return NewPredefinedTranslation(target.Other().String(), target.String(), translations)
}

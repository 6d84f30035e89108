package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nerdneilsfield/page-translator/pkg/lang"
)

// 缓存后端
const (
	CacheBackendJSON   = "json"
	CacheBackendSQLite = "sqlite"
	CacheBackendMemory = "memory"
)

// ServerConfig 主翻译 API 服务配置
type ServerConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	MaxConcurrent int    `mapstructure:"max_concurrent"`  // 同时进行的上游请求数
	MinIntervalMs int    `mapstructure:"min_interval_ms"` // 两次上游请求的最小间隔（毫秒）
	StatsPath     string `mapstructure:"stats_path"`      // 上游提供商统计
}

// Config 保存页面翻译器的所有配置
type Config struct {
	PrimaryEndpoint        string   `mapstructure:"primary_endpoint"`
	PrimaryAPIKey          string   `mapstructure:"primary_api_key"`
	SecondaryEndpoint      string   `mapstructure:"secondary_endpoint"` // LibreTranslate
	SecondaryAPIKey        string   `mapstructure:"secondary_api_key"`
	GoogleEndpoint         string   `mapstructure:"google_endpoint"`
	RequestTimeout         int      `mapstructure:"request_timeout"` // 单次请求超时（秒）
	MaxRetries             int      `mapstructure:"max_retries"`
	Concurrency            int      `mapstructure:"concurrency"`    // 回退阶段每组并发数
	GroupDelayMs           int      `mapstructure:"group_delay_ms"` // 回退阶段组间间隔（毫秒）
	MinTextLength          int      `mapstructure:"min_text_length"`
	CacheBackend           string   `mapstructure:"cache_backend"`
	CachePath              string   `mapstructure:"cache_path"`
	LanguagePath           string   `mapstructure:"language_path"`
	StatsPath              string   `mapstructure:"stats_path"`
	DefaultLanguage        string   `mapstructure:"default_language"`
	PredefinedTranslations []string `mapstructure:"predefined_translations"`

	Server ServerConfig `mapstructure:"server"`
	Debug  bool         `mapstructure:"debug"`
}

// LoadConfig 加载配置，未找到配置文件时使用默认值
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}

		v.AddConfigPath(home)
		v.AddConfigPath(".")
		v.SetConfigName(".pagetrans")
		v.SetConfigType("yaml")
	}

	// 读取环境变量，如 PAGETRANS_SERVER_PORT
	v.SetEnvPrefix("PAGETRANS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.CachePath == "" {
		config.CachePath = defaultCachePath(config.CacheBackend)
	}
	if config.LanguagePath == "" {
		config.LanguagePath = filepath.Join(getDefaultCacheDir(), "language")
	}
	if config.StatsPath == "" {
		config.StatsPath = filepath.Join(getDefaultCacheDir(), "stats.json")
	}
	if config.Server.StatsPath == "" {
		config.Server.StatsPath = filepath.Join(getDefaultCacheDir(), "provider_stats.json")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// SaveConfig 将配置保存到文件
func SaveConfig(config *Config, configPath string) error {
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		configPath = filepath.Join(home, ".pagetrans.yaml")
	}

	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.MergeConfigMap(structToMap(config)); err != nil {
		return err
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return v.WriteConfig()
}

// NewDefaultConfig 创建一个新的默认配置
func NewDefaultConfig() *Config {
	cacheDir := getDefaultCacheDir()

	return &Config{
		PrimaryEndpoint:   "http://localhost:8001/api/translation",
		SecondaryEndpoint: "https://de.libretranslate.com",
		GoogleEndpoint:    "https://translate.googleapis.com/translate_a/single",
		RequestTimeout:    10,
		MaxRetries:        1,
		Concurrency:       10,
		GroupDelayMs:      50,
		MinTextLength:     2,
		CacheBackend:      CacheBackendJSON,
		CachePath:         filepath.Join(cacheDir, "translations.json"),
		LanguagePath:      filepath.Join(cacheDir, "language"),
		StatsPath:         filepath.Join(cacheDir, "stats.json"),
		DefaultLanguage:   string(lang.Chinese),
		Server: ServerConfig{
			Host:          "127.0.0.1",
			Port:          8001,
			MaxConcurrent: 10,
			MinIntervalMs: 200,
			StatsPath:     filepath.Join(cacheDir, "provider_stats.json"),
		},
	}
}

// Validate 检查配置取值
func (c *Config) Validate() error {
	switch c.CacheBackend {
	case CacheBackendJSON, CacheBackendSQLite, CacheBackendMemory:
	default:
		return fmt.Errorf("unknown cache_backend %q (json, sqlite, memory)", c.CacheBackend)
	}
	if _, err := lang.Parse(c.DefaultLanguage); err != nil {
		return fmt.Errorf("default_language: %w", err)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %d", c.RequestTimeout)
	}
	return nil
}

// Timeout 单次请求超时
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// GroupDelay 回退阶段组间间隔
func (c *Config) GroupDelay() time.Duration {
	return time.Duration(c.GroupDelayMs) * time.Millisecond
}

// DefaultLang 默认显示语言，无效时为中文
func (c *Config) DefaultLang() lang.Code {
	code, err := lang.Parse(c.DefaultLanguage)
	if err != nil {
		return lang.Chinese
	}
	return code
}

// Addr 服务监听地址
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// getDefaultCacheDir 获取默认缓存目录
func getDefaultCacheDir() string {
	cacheDir, err := os.UserCacheDir()
	if err == nil {
		return filepath.Join(cacheDir, "pagetrans")
	}

	homeDir, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(homeDir, ".pagetrans", "cache")
	}

	return "./pagetrans-cache"
}

func defaultCachePath(backend string) string {
	if backend == CacheBackendSQLite {
		return filepath.Join(getDefaultCacheDir(), "translations.db")
	}
	return filepath.Join(getDefaultCacheDir(), "translations.json")
}

func setDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("primary_endpoint", d.PrimaryEndpoint)
	v.SetDefault("primary_api_key", "")
	v.SetDefault("secondary_endpoint", d.SecondaryEndpoint)
	v.SetDefault("secondary_api_key", "")
	v.SetDefault("google_endpoint", d.GoogleEndpoint)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("max_retries", d.MaxRetries)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("group_delay_ms", d.GroupDelayMs)
	v.SetDefault("min_text_length", d.MinTextLength)
	v.SetDefault("cache_backend", d.CacheBackend)
	v.SetDefault("cache_path", "")
	v.SetDefault("language_path", "")
	v.SetDefault("stats_path", "")
	v.SetDefault("default_language", d.DefaultLanguage)
	v.SetDefault("predefined_translations", []string{})
	v.SetDefault("debug", false)

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.max_concurrent", d.Server.MaxConcurrent)
	v.SetDefault("server.min_interval_ms", d.Server.MinIntervalMs)
	v.SetDefault("server.stats_path", "")
}

// structToMap 将结构体转换为map
func structToMap(config *Config) map[string]interface{} {
	return map[string]interface{}{
		"primary_endpoint":        config.PrimaryEndpoint,
		"primary_api_key":         config.PrimaryAPIKey,
		"secondary_endpoint":      config.SecondaryEndpoint,
		"secondary_api_key":       config.SecondaryAPIKey,
		"google_endpoint":         config.GoogleEndpoint,
		"request_timeout":         config.RequestTimeout,
		"max_retries":             config.MaxRetries,
		"concurrency":             config.Concurrency,
		"group_delay_ms":          config.GroupDelayMs,
		"min_text_length":         config.MinTextLength,
		"cache_backend":           config.CacheBackend,
		"cache_path":              config.CachePath,
		"language_path":           config.LanguagePath,
		"stats_path":              config.StatsPath,
		"default_language":        config.DefaultLanguage,
		"predefined_translations": config.PredefinedTranslations,
		"debug":                   config.Debug,
		"server": map[string]interface{}{
			"host":            config.Server.Host,
			"port":            config.Server.Port,
			"max_concurrent":  config.Server.MaxConcurrent,
			"min_interval_ms": config.Server.MinIntervalMs,
			"stats_path":      config.Server.StatsPath,
		},
	}
}

// Package config 加载 feedhub 的 YAML 配置。
// 所有配置项都有默认值，不提供配置文件也能直接运行。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config feedhub 的顶层配置结构。
type Config struct {
	DataDir  string         `yaml:"data_dir"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Lock     LockConfig     `yaml:"lock"`
	Enrich   EnrichConfig   `yaml:"enrich"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Log      LogConfig      `yaml:"log"`
}

// FetchConfig 抓取配置。
type FetchConfig struct {
	// TimeoutSeconds 单次 HTTP 请求超时（秒）。
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// MaxConcurrent 并发抓取的订阅源上限，最大 10。
	MaxConcurrent int `yaml:"max_concurrent"`
	// UserAgent 抓取时使用的 User-Agent。
	UserAgent string `yaml:"user_agent"`
}

// LockConfig 存储锁配置。
type LockConfig struct {
	// TimeoutSeconds 获取锁的等待上限（秒）。
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// CrossProcess 为 true 时启用锁文件，支持多进程同时写同一数据目录。
	CrossProcess bool `yaml:"cross_process"`
}

// EnrichConfig 正文抽取配置。
type EnrichConfig struct {
	Enabled        bool `yaml:"enabled"`
	TimeoutSeconds int  `yaml:"timeout_seconds"`
}

// ScheduleConfig 定时批量抓取配置。
type ScheduleConfig struct {
	// Cron robfig/cron 表达式，如 "@every 1h" 或 "0 */6 * * *"。
	Cron string `yaml:"cron"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

// FetchTimeout 返回抓取超时时长。
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// LockTimeout 返回锁等待时长。
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.Lock.TimeoutSeconds) * time.Second
}

// EnrichTimeout 返回正文抽取超时时长。
func (c *Config) EnrichTimeout() time.Duration {
	return time.Duration(c.Enrich.TimeoutSeconds) * time.Second
}

// Load 读取 YAML 配置文件并返回 Config。
// 支持 ${VAR_NAME} 形式的环境变量展开；文件不存在时返回默认配置。
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
		}
	} else {
		expanded := os.Expand(string(data), func(key string) string {
			return os.Getenv(key)
		})
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
		}
	}

	setDefaults(cfg)
	return cfg, nil
}

// setDefaults 为未设置的配置项填充默认值。
func setDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join("data", "raw", "rss")
	} else if strings.HasPrefix(cfg.DataDir, "~/") {
		// Go 不会自动展开 ~，需要手动替换为用户主目录
		home, _ := os.UserHomeDir()
		if home != "" {
			cfg.DataDir = home + cfg.DataDir[1:]
		}
	}
	if cfg.Fetch.TimeoutSeconds <= 0 {
		cfg.Fetch.TimeoutSeconds = 10
	}
	if cfg.Fetch.MaxConcurrent <= 0 {
		cfg.Fetch.MaxConcurrent = 5
	}
	if cfg.Fetch.MaxConcurrent > 10 {
		cfg.Fetch.MaxConcurrent = 10
	}
	if cfg.Fetch.UserAgent == "" {
		cfg.Fetch.UserAgent = "feedhub/1.0 RSS Reader"
	}
	if cfg.Lock.TimeoutSeconds <= 0 {
		cfg.Lock.TimeoutSeconds = 10
	}
	if cfg.Enrich.TimeoutSeconds <= 0 {
		cfg.Enrich.TimeoutSeconds = 15
	}
	if cfg.Schedule.Cron == "" {
		cfg.Schedule.Cron = "@every 1h"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

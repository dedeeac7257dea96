package config

import (
	"fmt"
	"log"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Manager 配置管理器，缓存已加载的配置并可监控文件变化
type Manager struct {
	mu           sync.RWMutex
	config       *Config
	viper        *viper.Viper
	configPath   string
	watchEnabled bool
	onChange     []func(*Config)
}

// ManagerOption 配置管理器选项
type ManagerOption func(*Manager)

// WithConfigPath 设置配置文件路径
func WithConfigPath(path string) ManagerOption {
	return func(m *Manager) {
		m.configPath = path
	}
}

// WithWatchEnabled 启用配置文件监控
func WithWatchEnabled(enabled bool) ManagerOption {
	return func(m *Manager) {
		m.watchEnabled = enabled
	}
}

// WithOnChange 配置文件变化并重新加载成功后调用
func WithOnChange(fn func(*Config)) ManagerOption {
	return func(m *Manager) {
		m.onChange = append(m.onChange, fn)
	}
}

// NewManager 创建配置管理器
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load 加载配置，已加载时直接返回缓存
func (m *Manager) Load() (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config != nil {
		return m.config, nil
	}

	cfg, v, err := load(m.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	m.config = cfg
	m.viper = v

	if m.watchEnabled {
		m.watch()
	}
	return cfg, nil
}

// Get 获取配置（如果未加载则自动加载）
func (m *Manager) Get() (*Config, error) {
	m.mu.RLock()
	if m.config != nil {
		defer m.mu.RUnlock()
		return m.config, nil
	}
	m.mu.RUnlock()

	return m.Load()
}

// Instance 获取指定实例，name为空时使用默认实例
func (m *Manager) Instance(name string) (*Instance, error) {
	cfg, err := m.Get()
	if err != nil {
		return nil, err
	}
	return cfg.Instance(name)
}

// Reload 重新加载配置，失败时保留原配置
func (m *Manager) Reload() error {
	cfg, _, err := load(m.configPath)
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}

	m.mu.Lock()
	m.config = cfg
	callbacks := append(([]func(*Config))(nil), m.onChange...)
	m.mu.Unlock()

	for _, fn := range callbacks {
		fn(cfg)
	}
	return nil
}

// watch 监控配置文件变化，调用方持有锁
func (m *Manager) watch() {
	// 没有读到配置文件时无从监控
	if m.viper == nil || m.viper.ConfigFileUsed() == "" {
		return
	}

	m.viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		if err := m.Reload(); err != nil {
			log.Printf("Config reload failed (%s): %v", e.Name, err)
			return
		}
		log.Printf("Config reloaded from %s", e.Name)
	})
	m.viper.WatchConfig()
}

package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"GoTM1Monitor/internal/rest"
)

// EnvPrefix 环境变量前缀，例如 TM1MON_DEFAULT_INSTANCE
const EnvPrefix = "TM1MON"

// ErrInstanceNotFound 配置中没有指定的实例
var ErrInstanceNotFound = errors.New("instance not found")

// MetaConfig 元数据配置
type MetaConfig struct {
	Project       string `yaml:"project" mapstructure:"project"`
	ConfigVersion string `yaml:"config_version" mapstructure:"config_version"`
}

// ConnectConfig 建立连接时的重试配置
type ConnectConfig struct {
	MaxRetries      int           `yaml:"max_retries" mapstructure:"max_retries"`
	InitialInterval time.Duration `yaml:"initial_interval" mapstructure:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval" mapstructure:"max_interval"`
}

// RateLimitConfig 客户端限流，requests_per_second为0时不限流
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// Instance 一个TM1服务器实例
type Instance struct {
	Name           string          `yaml:"-" mapstructure:"-"`
	Address        string          `yaml:"address" mapstructure:"address"`
	Port           int             `yaml:"port" mapstructure:"port"`
	SSL            bool            `yaml:"ssl" mapstructure:"ssl"`
	BaseURL        string          `yaml:"base_url" mapstructure:"base_url"`
	User           string          `yaml:"user" mapstructure:"user"`
	Password       string          `yaml:"password" mapstructure:"password"`
	Namespace      string          `yaml:"namespace" mapstructure:"namespace"`
	SessionContext string          `yaml:"session_context" mapstructure:"session_context"`
	Timeout        time.Duration   `yaml:"timeout" mapstructure:"timeout"`
	VerifyTLS      bool            `yaml:"verify_tls" mapstructure:"verify_tls"`
	Connect        ConnectConfig   `yaml:"connect" mapstructure:"connect"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// LoggingConfig 日志配置，file为空时只输出到控制台
type LoggingConfig struct {
	Console    bool   `yaml:"console" mapstructure:"console"`
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
}

// AuditConfig 审计记录配置
type AuditConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	DSN     string `yaml:"dsn" mapstructure:"dsn"`
}

// Config 完整配置
type Config struct {
	Meta            MetaConfig          `yaml:"meta" mapstructure:"meta"`
	DefaultInstance string              `yaml:"default_instance" mapstructure:"default_instance"`
	Instances       map[string]Instance `yaml:"instances" mapstructure:"instances"`
	Logging         LoggingConfig       `yaml:"logging" mapstructure:"logging"`
	Audit           AuditConfig         `yaml:"audit" mapstructure:"audit"`
}

// LoadConfig 从文件加载配置（使用viper），configPath为空时按默认路径搜索tm1monitor.yaml
func LoadConfig(configPath string) (*Config, error) {
	cfg, _, err := load(configPath)
	return cfg, err
}

func load(configPath string) (*Config, *viper.Viper, error) {
	v := viper.New()

	// 配置文件路径和类型
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("tm1monitor")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath(".")
	}

	// 设置环境变量前缀，嵌套键中的.替换为_
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// 读取配置文件，未指定路径且文件不存在时只使用默认值
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("read config file: %w", err)
		}
	}

	// 实例的默认值要在知道实例名之后才能设置
	for name := range v.GetStringMap("instances") {
		setInstanceDefaults(v, "instances."+name)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("parse config: %w", err)
	}
	for name, inst := range cfg.Instances {
		inst.Name = name
		cfg.Instances[name] = inst
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, v, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	v.SetDefault("meta.project", "GoTM1Monitor")
	v.SetDefault("meta.config_version", "1.0.0")
	v.SetDefault("default_instance", "")

	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.dsn", "")
}

func setInstanceDefaults(v *viper.Viper, prefix string) {
	v.SetDefault(prefix+".ssl", true)
	v.SetDefault(prefix+".verify_tls", true)
	v.SetDefault(prefix+".session_context", "GoTM1Monitor")
	v.SetDefault(prefix+".timeout", "60s")
	v.SetDefault(prefix+".connect.max_retries", 3)
	v.SetDefault(prefix+".connect.initial_interval", "500ms")
	v.SetDefault(prefix+".connect.max_interval", "5s")
	v.SetDefault(prefix+".rate_limit.requests_per_second", 0)
	v.SetDefault(prefix+".rate_limit.burst", 1)
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.DefaultInstance != "" {
		if _, ok := c.Instances[strings.ToLower(c.DefaultInstance)]; !ok {
			return fmt.Errorf("default instance %q: %w", c.DefaultInstance, ErrInstanceNotFound)
		}
	}

	for name, inst := range c.Instances {
		if err := inst.Validate(); err != nil {
			return fmt.Errorf("instance %s: %w", name, err)
		}
	}

	if c.Audit.Enabled && c.Audit.DSN == "" {
		return fmt.Errorf("audit.dsn is required when audit is enabled")
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 {
		return fmt.Errorf("logging limits must not be negative")
	}
	return nil
}

// Validate 验证实例配置
func (i *Instance) Validate() error {
	if i.BaseURL == "" {
		if i.Address == "" {
			return fmt.Errorf("address or base_url is required")
		}
		if i.Port <= 0 || i.Port > 65535 {
			return fmt.Errorf("invalid port: %d", i.Port)
		}
	}
	if i.User == "" {
		return fmt.Errorf("user is required")
	}
	if i.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if i.Connect.MaxRetries < 0 {
		return fmt.Errorf("connect.max_retries must not be negative")
	}
	if i.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("rate_limit.requests_per_second must not be negative")
	}
	return nil
}

// Instance 按名称查找实例，名称为空时使用默认实例；只有一个实例时它就是默认实例
func (c *Config) Instance(name string) (*Instance, error) {
	if name == "" {
		name = c.DefaultInstance
	}
	if name == "" && len(c.Instances) == 1 {
		for _, inst := range c.Instances {
			return &inst, nil
		}
	}
	if name == "" {
		return nil, fmt.Errorf("no instance selected, configured: %s: %w",
			strings.Join(c.InstanceNames(), ", "), ErrInstanceNotFound)
	}

	// viper会把map的键转成小写
	inst, ok := c.Instances[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrInstanceNotFound)
	}
	return &inst, nil
}

// InstanceNames 返回排序后的实例名称
func (c *Config) InstanceNames() []string {
	names := make([]string, 0, len(c.Instances))
	for name := range c.Instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RestConfig 转换成REST客户端配置
func (i *Instance) RestConfig() *rest.Config {
	cfg := rest.DefaultConfig(i.Address, i.Port, i.User, i.Password)
	cfg.BaseURL = i.BaseURL
	cfg.SSL = i.SSL
	cfg.Namespace = i.Namespace
	if i.SessionContext != "" {
		cfg.SessionContext = i.SessionContext
	}
	if i.Timeout > 0 {
		cfg.Timeout = i.Timeout
	}
	cfg.VerifyTLS = i.VerifyTLS
	cfg.Connect = rest.RetryConfig{
		MaxRetries:      i.Connect.MaxRetries,
		InitialInterval: i.Connect.InitialInterval,
		MaxInterval:     i.Connect.MaxInterval,
	}
	cfg.RequestsPerSecond = i.RateLimit.RequestsPerSecond
	cfg.Burst = i.RateLimit.Burst
	return cfg
}

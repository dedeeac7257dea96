package rest

import (
	"fmt"
	"strings"
	"time"
)

// RetryConfig 建立连接时的重试配置
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Config REST客户端配置
type Config struct {
	// BaseURL 非空时直接使用，否则由Address/Port/SSL拼出 http[s]://address:port/api/v1
	BaseURL string
	Address string
	Port    int
	SSL     bool

	// 认证配置，Namespace非空时使用CAM认证
	User      string
	Password  string
	Namespace string

	SessionContext string
	Timeout        time.Duration
	VerifyTLS      bool
	Connect        RetryConfig

	// 客户端限流，RequestsPerSecond为0时不限流
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig 返回默认配置
func DefaultConfig(address string, port int, user, password string) *Config {
	return &Config{
		Address:        address,
		Port:           port,
		SSL:            true,
		User:           user,
		Password:       password,
		SessionContext: "GoTM1Monitor",
		Timeout:        60 * time.Second,
		VerifyTLS:      true,
		Connect: RetryConfig{
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
	}
}

// ServiceRoot 返回REST服务根地址
func (c *Config) ServiceRoot() (string, error) {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/"), nil
	}
	if c.Address == "" {
		return "", fmt.Errorf("address is required when base url is empty")
	}
	if c.Port <= 0 {
		return "", fmt.Errorf("invalid port: %d", c.Port)
	}

	scheme := "http"
	if c.SSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d/api/v1", scheme, c.Address, c.Port), nil
}

package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"GoTM1Monitor/internal/rest"
	"GoTM1Monitor/internal/testserver"
)

// StartServer 在随机端口启动模拟TM1服务器，测试结束时自动关闭
func StartServer(t *testing.T, customize func(*testserver.ServerConfig)) *testserver.Server {
	t.Helper()

	cfg := testserver.DefaultServerConfig("127.0.0.1:0")
	if customize != nil {
		customize(cfg)
	}
	server := testserver.New(cfg, nil)
	require.NoError(t, server.Start(), "Failed to start mock TM1 server")

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	})
	return server
}

// RestConfig 返回指向模拟服务器的客户端配置，重试间隔缩短以加快测试
func RestConfig(server *testserver.Server, user, password string) *rest.Config {
	cfg := rest.DefaultConfig("", 0, user, password)
	cfg.BaseURL = server.BaseURL()
	cfg.SSL = false
	cfg.Timeout = 5 * time.Second
	cfg.Connect.InitialInterval = 10 * time.Millisecond
	cfg.Connect.MaxInterval = 20 * time.Millisecond
	return cfg
}

// NewService 创建未连接的REST客户端
func NewService(t *testing.T, server *testserver.Server, user, password string) *rest.Service {
	t.Helper()
	svc, err := rest.New(RestConfig(server, user, password))
	require.NoError(t, err)
	return svc
}

// Connect 创建REST客户端并登录
func Connect(t *testing.T, server *testserver.Server, user, password string) *rest.Service {
	t.Helper()
	svc := NewService(t, server, user, password)
	require.NoError(t, svc.Connect(context.Background()), "Failed to connect as %s", user)
	return svc
}

// WriteConfig 写入一个配置文件，包含以管理员登录的mock实例和以普通用户登录的bob实例
func WriteConfig(t *testing.T, server *testserver.Server) string {
	t.Helper()
	content := fmt.Sprintf(`
default_instance: mock
instances:
  mock:
    base_url: %[1]s
    user: Admin
    password: apple
    ssl: false
  bob:
    base_url: %[1]s
    user: Bob
    password: bob
    ssl: false
logging:
  console: false
`, server.BaseURL())

	path := filepath.Join(t.TempDir(), "tm1monitor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
meta:
  project: ops
default_instance: prod
instances:
  prod:
    address: tm1.example.com
    port: 8010
    user: admin
    password: apple
    timeout: 30s
    connect:
      max_retries: 5
    rate_limit:
      requests_per_second: 10
      burst: 2
  dev:
    base_url: http://localhost:5001/api/v1
    user: Admin
    ssl: false
    verify_tls: false
    namespace: LDAP
logging:
  file: /tmp/tm1monitor.log
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tm1monitor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "ops", cfg.Meta.Project)
	assert.Equal(t, "1.0.0", cfg.Meta.ConfigVersion)
	assert.Equal(t, []string{"dev", "prod"}, cfg.InstanceNames())

	prod, err := cfg.Instance("")
	require.NoError(t, err)
	assert.Equal(t, "prod", prod.Name)
	assert.Equal(t, "tm1.example.com", prod.Address)
	assert.Equal(t, 8010, prod.Port)
	assert.True(t, prod.SSL)
	assert.True(t, prod.VerifyTLS)
	assert.Equal(t, 30*time.Second, prod.Timeout)
	assert.Equal(t, 5, prod.Connect.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, prod.Connect.InitialInterval)
	assert.Equal(t, "GoTM1Monitor", prod.SessionContext)

	dev, err := cfg.Instance("DEV")
	require.NoError(t, err)
	assert.False(t, dev.SSL)
	assert.False(t, dev.VerifyTLS)
	assert.Equal(t, 60*time.Second, dev.Timeout)

	assert.True(t, cfg.Logging.Console)
	assert.Equal(t, "/tmp/tm1monitor.log", cfg.Logging.File)
	assert.Equal(t, 10, cfg.Logging.MaxSizeMB)
	assert.False(t, cfg.Audit.Enabled)
}

func TestInstanceRestConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	prod, err := cfg.Instance("prod")
	require.NoError(t, err)
	rc := prod.RestConfig()

	root, err := rc.ServiceRoot()
	require.NoError(t, err)
	assert.Equal(t, "https://tm1.example.com:8010/api/v1", root)
	assert.Equal(t, "admin", rc.User)
	assert.Equal(t, "apple", rc.Password)
	assert.Equal(t, 30*time.Second, rc.Timeout)
	assert.Equal(t, 5, rc.Connect.MaxRetries)
	assert.Equal(t, 10.0, rc.RequestsPerSecond)
	assert.Equal(t, 2, rc.Burst)

	dev, err := cfg.Instance("dev")
	require.NoError(t, err)
	rc = dev.RestConfig()
	root, err = rc.ServiceRoot()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5001/api/v1", root)
	assert.Equal(t, "LDAP", rc.Namespace)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("TM1MON_DEFAULT_INSTANCE", "dev")
	t.Setenv("TM1MON_INSTANCES_PROD_PASSWORD", "from-env")

	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.DefaultInstance)
	assert.Equal(t, "from-env", cfg.Instances["prod"].Password)
}

func TestInstanceLookup(t *testing.T) {
	cfg := &Config{Instances: map[string]Instance{"only": {Name: "only", Address: "x", Port: 1, User: "u"}}}
	inst, err := cfg.Instance("")
	require.NoError(t, err)
	assert.Equal(t, "only", inst.Name)

	_, err = cfg.Instance("other")
	assert.ErrorIs(t, err, ErrInstanceNotFound)

	cfg.Instances["second"] = Instance{Name: "second", Address: "y", Port: 1, User: "u"}
	_, err = cfg.Instance("")
	assert.ErrorIs(t, err, ErrInstanceNotFound)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing default", "default_instance: nope\ninstances:\n  a:\n    address: h\n    port: 1\n    user: u\n"},
		{"missing address", "instances:\n  a:\n    port: 1\n    user: u\n"},
		{"bad port", "instances:\n  a:\n    address: h\n    port: 70000\n    user: u\n"},
		{"missing user", "instances:\n  a:\n    address: h\n    port: 1\n"},
		{"audit without dsn", "audit:\n  enabled: true\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestManagerCachesAndReloads(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	var changes atomic.Int32
	m := NewManager(WithConfigPath(path), WithOnChange(func(*Config) { changes.Add(1) }))

	first, err := m.Get()
	require.NoError(t, err)
	second, err := m.Get()
	require.NoError(t, err)
	assert.Same(t, first, second)

	updated := sampleConfig + "audit:\n  enabled: true\n  dsn: postgres://localhost/audit\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	require.NoError(t, m.Reload())

	cfg, err := m.Get()
	require.NoError(t, err)
	assert.True(t, cfg.Audit.Enabled)
	assert.Equal(t, int32(1), changes.Load())

	// 无效的配置不会替换当前配置
	require.NoError(t, os.WriteFile(path, []byte("default_instance: nope\n"), 0o644))
	assert.Error(t, m.Reload())
	cfg, err = m.Get()
	require.NoError(t, err)
	assert.True(t, cfg.Audit.Enabled)

	inst, err := m.Instance("prod")
	require.NoError(t, err)
	assert.Equal(t, 8010, inst.Port)
}

func TestManagerWatchesFile(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	reloaded := make(chan *Config, 4)
	m := NewManager(WithConfigPath(path), WithWatchEnabled(true), WithOnChange(func(c *Config) {
		select {
		case reloaded <- c:
		default:
		}
	}))
	_, err := m.Load()
	require.NoError(t, err)

	updated := sampleConfig + "audit:\n  enabled: true\n  dsn: postgres://localhost/audit\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case cfg := <-reloaded:
		assert.True(t, cfg.Audit.Enabled)
	case <-time.After(5 * time.Second):
		t.Fatal("config change was not picked up")
	}
}

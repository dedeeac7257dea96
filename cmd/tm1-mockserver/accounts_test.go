package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GoTM1Monitor/internal/rest"
	"GoTM1Monitor/internal/testserver"
	"GoTM1Monitor/internal/testutil"
)

const accountsConfig = `
default_instance: ops
logging:
  console: false
instances:
  ops:
    address: localhost
    port: 5001
    user: Carol
    password: %s
`

func writeAccounts(t *testing.T, path, password string) {
	t.Helper()
	content := fmt.Sprintf(accountsConfig, password)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func login(server *testserver.Server, user, password string) error {
	svc, err := rest.New(testutil.RestConfig(server, user, password))
	if err != nil {
		return err
	}
	return svc.Connect(context.Background())
}

func TestWatchAccountsSyncsOnChange(t *testing.T) {
	server := testutil.StartServer(t, nil)
	path := filepath.Join(t.TempDir(), "tm1monitor.yaml")
	writeAccounts(t, path, "first")

	_, err := watchAccounts(server.State(), path)
	require.NoError(t, err)
	require.NoError(t, login(server, "Carol", "first"))

	writeAccounts(t, path, "second")
	assert.Eventually(t, func() bool {
		return login(server, "carol", "second") == nil
	}, 5*time.Second, 50*time.Millisecond)

	err = login(server, "Carol", "first")
	assert.Equal(t, http.StatusUnauthorized, rest.StatusCode(err))
}

func TestWatchAccountsMissingFile(t *testing.T) {
	server := testutil.StartServer(t, nil)
	_, err := watchAccounts(server.State(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

package service_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GoTM1Monitor/internal/model"
	"GoTM1Monitor/internal/rest"
	"GoTM1Monitor/internal/service"
	"GoTM1Monitor/internal/testserver"
	"GoTM1Monitor/internal/testutil"
)

// connect 启动模拟服务器并以指定用户登录
func connect(t *testing.T, user, password string) (*testserver.Server, *service.MonitoringService) {
	t.Helper()
	server := testutil.StartServer(t, nil)
	svc := testutil.Connect(t, server, user, password)
	return server, service.NewMonitoringService(svc, svc)
}

func TestIntegrationCloseAllSessions(t *testing.T) {
	server, m := connect(t, "Admin", "apple")
	ctx := context.Background()

	own := server.State().SessionIDs()
	server.ResetRequests()

	closed, err := m.CloseAllSessions(ctx, nil)
	require.NoError(t, err)

	sessions, err := model.DecodeSessions(closed)
	require.NoError(t, err)
	names := make([]string, 0, len(sessions))
	for _, s := range sessions {
		names = append(names, s.UserName())
	}
	assert.Equal(t, []string{"Bob", "Alice"}, names)

	assert.False(t, server.State().HasSession(101))
	assert.False(t, server.State().HasSession(102))
	// 没有User的会话和自己的会话保留
	assert.True(t, server.State().HasSession(103))
	assert.True(t, server.State().HasSession(own[len(own)-1]))

	assert.Equal(t, 2, server.CountRequests(http.MethodPost, "/Sessions("))
}

func TestIntegrationNonAdminIsRejectedWithoutRequests(t *testing.T) {
	server, m := connect(t, "Bob", "bob")
	server.ResetRequests()

	_, err := m.CloseAllSessions(context.Background(), nil)
	assert.ErrorIs(t, err, service.ErrNotAdmin)

	_, err = m.DisconnectAllUsers(context.Background(), nil)
	assert.ErrorIs(t, err, service.ErrNotAdmin)

	assert.Empty(t, server.Requests())
}

func TestIntegrationDisconnectAllUsers(t *testing.T) {
	server, m := connect(t, "Admin", "apple")

	names, err := m.DisconnectAllUsers(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob", "Alice"}, names)

	active, err := m.UserIsActive(context.Background(), "Bob", nil)
	require.NoError(t, err)
	assert.False(t, active)

	active, err = m.UserIsActive(context.Background(), "admin", nil)
	require.NoError(t, err)
	assert.True(t, active)

	assert.Equal(t, 2, server.CountRequests(http.MethodPost, "/Users("))
}

func TestIntegrationThreads(t *testing.T) {
	server, m := connect(t, "Admin", "apple")
	ctx := context.Background()

	all, err := m.GetThreads(ctx, nil)
	require.NoError(t, err)
	// 预置的4个线程加上查询本身
	assert.Len(t, all, 5)

	active, err := m.GetActiveThreads(ctx, nil)
	require.NoError(t, err)
	threads, err := model.DecodeThreads(active)
	require.NoError(t, err)
	for _, th := range threads {
		assert.False(t, th.IsIdle())
		assert.NotEqual(t, "GET /Threads", th.Function)
	}

	cancelled, err := m.CancelAllRunningThreads(ctx, nil)
	require.NoError(t, err)
	ids := make([]string, 0, len(cancelled))
	for _, rec := range cancelled {
		id, _ := rec.ID()
		ids = append(ids, id)
	}
	assert.Equal(t, []string{"1001", "1003"}, ids)
	assert.Equal(t, []int64{1001, 1003}, server.State().CancelledThreads())

	_, err = m.CancelThread(ctx, 1001, nil)
	assert.Equal(t, http.StatusNotFound, rest.StatusCode(err))
}

func TestIntegrationActiveSessionThreads(t *testing.T) {
	_, m := connect(t, "Admin", "apple")
	ctx := context.Background()

	threads, err := m.GetActiveSessionThreads(ctx, true, nil)
	require.NoError(t, err)
	assert.Empty(t, threads, "the monitoring request itself must be filtered out")

	threads, err = m.GetActiveSessionThreads(ctx, false, nil)
	require.NoError(t, err)
	assert.Empty(t, threads)
}

func TestIntegrationSessionsExpand(t *testing.T) {
	server, m := connect(t, "Admin", "apple")
	ctx := context.Background()

	plain, err := m.GetSessions(ctx, service.SessionQuery{}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, plain)
	_, hasUser := plain[0]["User"]
	assert.False(t, hasUser)

	expanded, err := m.GetSessions(ctx, service.SessionQuery{IncludeUser: true}, nil)
	require.NoError(t, err)
	name, ok := expanded[0].String("User", "Name")
	assert.True(t, ok)
	assert.Equal(t, "Bob", name)
	_, hasThreads := expanded[0]["Threads"]
	assert.False(t, hasThreads)

	reqs := server.Requests()
	assert.Equal(t, "User", reqs[len(reqs)-1].Expand)
}

func TestIntegrationUsers(t *testing.T) {
	_, m := connect(t, "Admin", "apple")
	ctx := context.Background()

	users, err := m.GetActiveUsers(ctx, nil)
	require.NoError(t, err)
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Name)
	}
	assert.Equal(t, []string{"Admin", "Bob", "Alice"}, names)

	me, err := m.GetCurrentUser(ctx, nil)
	require.NoError(t, err)
	assert.True(t, me.IsAdmin())

	active, err := m.DisconnectUser(ctx, "Alice", nil)
	require.NoError(t, err)
	assert.True(t, active)
	// 该操作只做检查，Alice依然在线
	active, err = m.UserIsActive(ctx, "Alice", nil)
	require.NoError(t, err)
	assert.True(t, active)

	_, err = m.UserIsActive(ctx, "Nobody", nil)
	assert.Equal(t, http.StatusNotFound, rest.StatusCode(err))
}

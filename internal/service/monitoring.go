package service

import (
	"context"
	"fmt"

	"GoTM1Monitor/internal/model"
	"GoTM1Monitor/internal/odata"
	"GoTM1Monitor/internal/rest"
	"GoTM1Monitor/internal/textutil"
)

const activeSessionThreadsFunction = "GET /ActiveSession/Threads"

// UserLookup 用户相关的协作者，由UserService实现
type UserLookup interface {
	GetActive(ctx context.Context, opts *rest.RequestOptions) ([]model.User, error)
	IsActive(ctx context.Context, userName string, opts *rest.RequestOptions) (bool, error)
	GetCurrent(ctx context.Context, opts *rest.RequestOptions) (*model.User, error)
	DisconnectAll(ctx context.Context, opts *rest.RequestOptions) ([]string, error)
}

// ThreadLookup 线程相关的协作者，由ThreadService实现
type ThreadLookup interface {
	Get(ctx context.Context, opts *rest.RequestOptions) ([]model.Record, error)
	GetActive(ctx context.Context, opts *rest.RequestOptions) ([]model.Record, error)
	Cancel(ctx context.Context, threadID int64, opts *rest.RequestOptions) (*rest.Response, error)
	CancelAllRunning(ctx context.Context, opts *rest.RequestOptions) ([]model.Record, error)
}

var (
	_ UserLookup   = (*UserService)(nil)
	_ ThreadLookup = (*ThreadService)(nil)
)

// SessionQuery 控制GetSessions展开哪些子资源
type SessionQuery struct {
	IncludeUser    bool
	IncludeThreads bool
}

// DefaultSessionQuery 同时展开User和Threads
func DefaultSessionQuery() SessionQuery {
	return SessionQuery{IncludeUser: true, IncludeThreads: true}
}

// MonitoringService 线程、用户和会话监控的门面
// 每个操作对应一次HTTP请求，批量操作按服务器返回顺序串行执行，不做重试
type MonitoringService struct {
	rest    Transport
	auth    Authorizer
	users   UserLookup
	threads ThreadLookup
}

// NewMonitoringService 使用默认的用户和线程服务创建门面
func NewMonitoringService(transport Transport, auth Authorizer) *MonitoringService {
	return NewMonitoringServiceWith(transport, auth, NewUserService(transport, auth), NewThreadService(transport))
}

// NewMonitoringServiceWith 使用指定的协作者创建门面
func NewMonitoringServiceWith(transport Transport, auth Authorizer, users UserLookup, threads ThreadLookup) *MonitoringService {
	return &MonitoringService{
		rest:    transport,
		auth:    auth,
		users:   users,
		threads: threads,
	}
}

// GetThreads 返回服务器上所有线程
func (m *MonitoringService) GetThreads(ctx context.Context, opts *rest.RequestOptions) ([]model.Record, error) {
	return m.threads.Get(ctx, opts)
}

// GetActiveThreads 返回非空闲线程
func (m *MonitoringService) GetActiveThreads(ctx context.Context, opts *rest.RequestOptions) ([]model.Record, error) {
	return m.threads.GetActive(ctx, opts)
}

// CancelThread 取消一个线程，返回原始响应
func (m *MonitoringService) CancelThread(ctx context.Context, threadID int64, opts *rest.RequestOptions) (*rest.Response, error) {
	return m.threads.Cancel(ctx, threadID, opts)
}

// CancelAllRunningThreads 取消所有运行中的线程
func (m *MonitoringService) CancelAllRunningThreads(ctx context.Context, opts *rest.RequestOptions) ([]model.Record, error) {
	return m.threads.CancelAllRunning(ctx, opts)
}

// GetActiveUsers 返回活动用户
func (m *MonitoringService) GetActiveUsers(ctx context.Context, opts *rest.RequestOptions) ([]model.User, error) {
	return m.users.GetActive(ctx, opts)
}

// UserIsActive 用户是否在线
func (m *MonitoringService) UserIsActive(ctx context.Context, userName string, opts *rest.RequestOptions) (bool, error) {
	return m.users.IsActive(ctx, userName, opts)
}

// DisconnectUser 只检查用户是否在线，并不会断开连接。
// 这与方法名不符，在确认预期行为之前保持现状；真正断开请使用UserService.Disconnect。
func (m *MonitoringService) DisconnectUser(ctx context.Context, userName string, opts *rest.RequestOptions) (bool, error) {
	return m.users.IsActive(ctx, userName, opts)
}

// GetActiveSessionThreads 返回当前会话的线程，排除查询本身，excludeIdle为true时排除空闲线程
func (m *MonitoringService) GetActiveSessionThreads(ctx context.Context, excludeIdle bool, opts *rest.RequestOptions) ([]model.Record, error) {
	filter := odata.NewFilter().
		Ne("Function", activeSessionThreadsFunction).
		NeIf(excludeIdle, "State", model.ThreadStateIdle)
	return getRecords(ctx, m.rest, odata.WithQuery("/ActiveSession/Threads", "$filter", filter.String()), opts)
}

// GetSessions 返回所有会话，按query展开User和Threads
func (m *MonitoringService) GetSessions(ctx context.Context, query SessionQuery, opts *rest.RequestOptions) ([]model.Record, error) {
	return getRecords(ctx, m.rest, sessionsPath(query), opts)
}

func sessionsPath(query SessionQuery) string {
	var expands []string
	if query.IncludeUser {
		expands = append(expands, "User")
	}
	if query.IncludeThreads {
		expands = append(expands, "Threads")
	}
	if len(expands) == 0 {
		return "/Sessions"
	}
	return odata.WithQuery("/Sessions", "$expand", odata.Expand(expands...))
}

// DisconnectAllUsers 断开除自己以外的所有用户，需要管理员权限
func (m *MonitoringService) DisconnectAllUsers(ctx context.Context, opts *rest.RequestOptions) ([]string, error) {
	if err := RequireAdmin(ctx, m.auth, "disconnect all users"); err != nil {
		return nil, err
	}
	return m.users.DisconnectAll(ctx, opts)
}

// CloseSession 关闭一个会话
func (m *MonitoringService) CloseSession(ctx context.Context, sessionID string, opts *rest.RequestOptions) (*rest.Response, error) {
	url := odata.FormatURL("/Sessions('{}')/tm1.Close", sessionID)
	return m.rest.POST(ctx, url, nil, opts)
}

// CloseAllSessions 关闭除当前用户外的所有会话，需要管理员权限
// 缺少User、User为null或缺少User.Name的会话被跳过；返回已关闭的会话
// 其余会话缺少ID或User.Name不是字符串时返回ErrMalformedRecord以及此前已关闭的会话
func (m *MonitoringService) CloseAllSessions(ctx context.Context, opts *rest.RequestOptions) ([]model.Record, error) {
	if err := RequireAdmin(ctx, m.auth, "close all sessions"); err != nil {
		return nil, err
	}

	current, err := m.GetCurrentUser(ctx, opts)
	if err != nil {
		return nil, err
	}
	sessions, err := m.GetSessions(ctx, DefaultSessionQuery(), opts)
	if err != nil {
		return nil, err
	}

	closed := make([]model.Record, 0, len(sessions))
	for i, session := range sessions {
		userName, ok, err := sessionUserName(session)
		if err != nil {
			return closed, fmt.Errorf("session %d: %w", i, err)
		}
		if !ok {
			continue
		}
		if textutil.CaseAndSpaceInsensitiveEquals(current.Name, userName) {
			continue
		}
		id, ok := session.ID()
		if !ok {
			return closed, fmt.Errorf("session %d has no ID: %w", i, model.ErrMalformedRecord)
		}
		if _, err := m.CloseSession(ctx, id, opts); err != nil {
			return closed, fmt.Errorf("close session %s: %w", id, err)
		}
		closed = append(closed, session)
	}
	return closed, nil
}

// sessionUserName 取会话所属用户名，ok为false表示会话没有用户信息
func sessionUserName(session model.Record) (string, bool, error) {
	user, ok := session.Lookup("User")
	if !ok {
		return "", false, nil
	}
	switch user.(type) {
	case map[string]interface{}, model.Record:
	default:
		return "", false, fmt.Errorf("User is %T: %w", user, model.ErrMalformedRecord)
	}
	name, ok := session.Lookup("User", "Name")
	if !ok {
		return "", false, nil
	}
	s, ok := name.(string)
	if !ok {
		return "", false, fmt.Errorf("User.Name is %T: %w", name, model.ErrMalformedRecord)
	}
	return s, true, nil
}

// GetCurrentUser 返回当前身份
func (m *MonitoringService) GetCurrentUser(ctx context.Context, opts *rest.RequestOptions) (*model.User, error) {
	return m.users.GetCurrent(ctx, opts)
}

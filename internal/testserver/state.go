package testserver

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"GoTM1Monitor/internal/model"
	"GoTM1Monitor/internal/textutil"
)

// UserFixture 预置用户及其密码
type UserFixture struct {
	User     model.User
	Password string
}

// SessionFixture 预置会话，Threads中的线程归属该会话
type SessionFixture struct {
	ID       int64
	UserName string
	Context  string
	Threads  []model.Thread
}

// Fixtures 服务器初始数据
type Fixtures struct {
	Users    []UserFixture
	Sessions []SessionFixture
}

// DefaultFixtures 返回默认数据：管理员Admin/apple，普通用户Bob和Alice各有一个会话
func DefaultFixtures() *Fixtures {
	enabled := true
	return &Fixtures{
		Users: []UserFixture{
			{User: model.User{Name: "Admin", FriendlyName: "Admin", Enabled: &enabled, Groups: []string{"ADMIN"}}, Password: "apple"},
			{User: model.User{Name: "Bob", FriendlyName: "Bob", Enabled: &enabled, Groups: []string{"Sales"}}, Password: "bob"},
			{User: model.User{Name: "Alice", FriendlyName: "Alice", Enabled: &enabled, Groups: []string{"Finance"}}, Password: "alice"},
		},
		Sessions: []SessionFixture{
			{
				ID: 101, UserName: "Bob", Context: "Excel",
				Threads: []model.Thread{
					{ID: 1001, Type: model.ThreadTypeUser, Name: "Bob", State: model.ThreadStateRun, Function: "POST /ExecuteMDX", ObjectType: "Cube", ObjectName: "Sales"},
					{ID: 1002, Type: model.ThreadTypeUser, Name: "Bob", State: model.ThreadStateIdle},
				},
			},
			{
				ID: 102, UserName: "Alice", Context: "PAW",
				Threads: []model.Thread{
					{ID: 1003, Type: model.ThreadTypeUser, Name: "Alice", State: model.ThreadStateWait, Function: "POST /Processes('Load')/tm1.ExecuteWithReturn", ObjectType: "Process", ObjectName: "Load"},
				},
			},
			{
				ID: 103, Context: "Pseudo",
				Threads: []model.Thread{
					{ID: 1, Type: model.ThreadTypeSystem, Name: model.ThreadNamePseudo, State: model.ThreadStateRun, Function: "Chore"},
				},
			},
		},
	}
}

type sessionState struct {
	id       int64
	userName string
	context  string
	threads  []model.Thread
}

// State 服务器的内存数据
type State struct {
	mu        sync.RWMutex
	users     map[string]*UserFixture
	order     []string
	sessions  map[int64]*sessionState
	cookies   map[string]int64
	nextID    int64
	nextTID   int64
	cancelled []int64
}

func newState(f *Fixtures) *State {
	st := &State{
		users:    make(map[string]*UserFixture),
		sessions: make(map[int64]*sessionState),
		cookies:  make(map[string]int64),
		nextID:   1000,
		nextTID:  5000,
	}
	for i := range f.Users {
		u := f.Users[i]
		key := textutil.LowerAndDropSpaces(u.User.Name)
		st.users[key] = &u
		st.order = append(st.order, key)
	}
	for _, sf := range f.Sessions {
		threads := append([]model.Thread(nil), sf.Threads...)
		st.sessions[sf.ID] = &sessionState{id: sf.ID, userName: sf.UserName, context: sf.Context, threads: threads}
		if sf.ID >= st.nextID {
			st.nextID = sf.ID + 1
		}
	}
	return st
}

// State 返回服务器数据，测试中用于断言
func (s *Server) State() *State {
	return s.state
}

// authenticate 校验用户名密码
func (st *State) authenticate(name, password string) (*UserFixture, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	u, ok := st.users[textutil.LowerAndDropSpaces(name)]
	if !ok || u.Password != password {
		return nil, false
	}
	return u, true
}

// login 为用户创建新会话并返回cookie值
func (st *State) login(userName, context string) (string, int64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	id := st.nextID
	st.nextID++
	st.sessions[id] = &sessionState{id: id, userName: userName, context: context}
	cookie := uuid.NewString()
	st.cookies[cookie] = id
	return cookie, id
}

// sessionByCookie 根据cookie查找会话
func (st *State) sessionByCookie(cookie string) (*sessionState, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	id, ok := st.cookies[cookie]
	if !ok {
		return nil, false
	}
	sess, ok := st.sessions[id]
	return sess, ok
}

func (st *State) user(name string) (*UserFixture, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	u, ok := st.users[textutil.LowerAndDropSpaces(name)]
	return u, ok
}

// SetAccount 设置用户密码，用户不存在时新建一个非管理员用户
func (st *State) SetAccount(name, password string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	key := textutil.LowerAndDropSpaces(name)
	if u, ok := st.users[key]; ok {
		u.Password = password
		return
	}
	enabled := true
	st.users[key] = &UserFixture{
		User:     model.User{Name: name, FriendlyName: name, Enabled: &enabled},
		Password: password,
	}
	st.order = append(st.order, key)
}

// AddSession 添加一个会话，返回会话ID
func (st *State) AddSession(userName, context string, threads ...model.Thread) int64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	id := st.nextID
	st.nextID++
	st.sessions[id] = &sessionState{id: id, userName: userName, context: context, threads: threads}
	return id
}

// SessionIDs 返回现存会话ID（升序）
func (st *State) SessionIDs() []int64 {
	st.mu.RLock()
	defer st.mu.RUnlock()
	ids := make([]int64, 0, len(st.sessions))
	for id := range st.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// HasSession 会话是否存在
func (st *State) HasSession(id int64) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	_, ok := st.sessions[id]
	return ok
}

// CancelledThreads 返回被取消的线程ID（按取消顺序）
func (st *State) CancelledThreads() []int64 {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return append([]int64(nil), st.cancelled...)
}

// isActive 用户是否有会话
func (st *State) isActive(userName string) bool {
	for _, sess := range st.sessions {
		if textutil.CaseAndSpaceInsensitiveEquals(sess.userName, userName) {
			return true
		}
	}
	return false
}

// listUsers 按预置顺序返回用户
func (st *State) listUsers() []model.User {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]model.User, 0, len(st.order))
	for _, key := range st.order {
		u := st.users[key].User
		u.IsActive = st.isActive(u.Name)
		u.Type = model.UserTypeFromGroups(u.Groups)
		out = append(out, u)
	}
	return out
}

// listSessions 按ID升序返回会话快照
func (st *State) listSessions() []*sessionState {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]*sessionState, 0, len(st.sessions))
	for _, sess := range st.sessions {
		cp := *sess
		cp.threads = append([]model.Thread(nil), sess.threads...)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// listThreads 返回所有会话的线程，按会话ID和线程顺序
func (st *State) listThreads() []model.Thread {
	var out []model.Thread
	for _, sess := range st.listSessions() {
		out = append(out, sess.threads...)
	}
	return out
}

// nextThreadID 为请求自身生成线程ID
func (st *State) nextThreadID() int64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.nextTID++
	return st.nextTID
}

// cancelThread 取消线程，线程被移除
func (st *State) cancelThread(id int64) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, sess := range st.sessions {
		for i, th := range sess.threads {
			if th.ID == id {
				sess.threads = append(sess.threads[:i], sess.threads[i+1:]...)
				st.cancelled = append(st.cancelled, id)
				return true
			}
		}
	}
	return false
}

// closeSession 关闭会话及其cookie
func (st *State) closeSession(id int64) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return false
	}
	delete(st.sessions, id)
	for cookie, sid := range st.cookies {
		if sid == id {
			delete(st.cookies, cookie)
		}
	}
	return true
}

// closeUserSessions 关闭用户的所有会话，返回关闭数量
func (st *State) closeUserSessions(userName string) int {
	st.mu.Lock()
	ids := make([]int64, 0)
	for id, sess := range st.sessions {
		if textutil.CaseAndSpaceInsensitiveEquals(sess.userName, userName) {
			ids = append(ids, id)
		}
	}
	st.mu.Unlock()

	for _, id := range ids {
		st.closeSession(id)
	}
	return len(ids)
}

package testserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"GoTM1Monitor/internal/model"
)

type ctxKey int

const callerKey ctxKey = iota

// caller 当前请求的调用者
type caller struct {
	user    *UserFixture
	session *sessionState
}

func callerFrom(r *http.Request) *caller {
	c, _ := r.Context().Value(callerKey).(*caller)
	return c
}

// authMiddleware 优先使用会话cookie，否则校验Basic认证并创建新会话
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie("TM1SessionId"); err == nil {
			if sess, ok := s.state.sessionByCookie(cookie.Value); ok {
				if u, ok := s.state.user(sess.userName); ok {
					ctx := context.WithValue(r.Context(), callerKey, &caller{user: u, session: sess})
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}
		}

		name, password, ok := r.BasicAuth()
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		u, ok := s.state.authenticate(name, password)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		cookieValue, id := s.state.login(u.User.Name, r.Header.Get("TM1-SessionContext"))
		http.SetCookie(w, &http.Cookie{Name: "TM1SessionId", Value: cookieValue, Path: "/", HttpOnly: true})
		sess, _ := s.state.sessionByCookie(cookieValue)
		if sess == nil {
			sess = &sessionState{id: id, userName: u.User.Name}
		}

		ctx := context.WithValue(r.Context(), callerKey, &caller{user: u, session: sess})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (c *caller) isAdmin() bool {
	u := c.user.User
	return u.IsAdmin()
}

// activeUserHandler GET /ActiveUser
func (s *Server) activeUserHandler(w http.ResponseWriter, r *http.Request) {
	c := callerFrom(r)
	u := c.user.User
	u.IsActive = true
	u.Type = model.UserTypeFromGroups(u.Groups)
	writeJSON(w, http.StatusOK, u)
}

// logoutHandler POST /ActiveSession/tm1.Close
func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	c := callerFrom(r)
	s.state.closeSession(c.session.id)
	http.SetCookie(w, &http.Cookie{Name: "TM1SessionId", Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

// activeSessionThreadsHandler GET /ActiveSession/Threads
// 返回调用者会话的线程，并包含代表本次请求的线程
func (s *Server) activeSessionThreadsHandler(w http.ResponseWriter, r *http.Request) {
	c := callerFrom(r)

	var threads []model.Thread
	for _, sess := range s.state.listSessions() {
		if sess.id == c.session.id {
			threads = append(threads, sess.threads...)
		}
	}
	threads = append(threads, model.Thread{
		ID:       s.state.nextThreadID(),
		Type:     model.ThreadTypeUser,
		Name:     c.user.User.Name,
		Context:  c.session.context,
		State:    model.ThreadStateRun,
		Function: "GET /ActiveSession/Threads",
	})

	s.writeFiltered(w, r, threads)
}

// threadsHandler GET /Threads，本次请求也作为一个线程出现
func (s *Server) threadsHandler(w http.ResponseWriter, r *http.Request) {
	c := callerFrom(r)
	threads := s.state.listThreads()
	threads = append(threads, model.Thread{
		ID:       s.state.nextThreadID(),
		Type:     model.ThreadTypeUser,
		Name:     c.user.User.Name,
		Context:  c.session.context,
		State:    model.ThreadStateRun,
		Function: "GET /Threads",
	})
	s.writeFiltered(w, r, threads)
}

// cancelThreadHandler POST /Threads('{id}')/tm1.CancelOperation
func (s *Server) cancelThreadHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(unquote(mux.Vars(r)["id"]), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid thread id")
		return
	}
	if !s.state.cancelThread(id) {
		writeError(w, http.StatusNotFound, "thread not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// usersHandler GET /Users
func (s *Server) usersHandler(w http.ResponseWriter, r *http.Request) {
	users := s.state.listUsers()
	s.writeFiltered(w, r, users)
}

// userIsActiveHandler GET /Users('{name}')/IsActive
func (s *Server) userIsActiveHandler(w http.ResponseWriter, r *http.Request) {
	name := unquote(mux.Vars(r)["name"])
	if _, ok := s.state.user(name); !ok {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	s.state.mu.RLock()
	active := s.state.isActive(name)
	s.state.mu.RUnlock()

	writeValue(w, active)
}

// disconnectUserHandler POST /Users('{name}')/tm1.Disconnect
func (s *Server) disconnectUserHandler(w http.ResponseWriter, r *http.Request) {
	if !callerFrom(r).isAdmin() {
		writeError(w, http.StatusForbidden, "admin privilege required")
		return
	}
	name := unquote(mux.Vars(r)["name"])
	if _, ok := s.state.user(name); !ok {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	s.state.closeUserSessions(name)
	w.WriteHeader(http.StatusNoContent)
}

// sessionsHandler GET /Sessions，支持$expand=User,Threads
func (s *Server) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	expand := map[string]bool{}
	for _, item := range strings.Split(r.URL.Query().Get("$expand"), ",") {
		if item = strings.TrimSpace(item); item != "" {
			expand[item] = true
		}
	}

	out := make([]map[string]interface{}, 0)
	for _, sess := range s.state.listSessions() {
		rec := map[string]interface{}{
			"ID":      sess.id,
			"Context": sess.context,
			"Active":  len(sess.threads) > 0,
		}
		if expand["User"] {
			if u, ok := s.state.user(sess.userName); ok {
				user := u.User
				user.IsActive = true
				user.Type = model.UserTypeFromGroups(user.Groups)
				rec["User"] = user
			} else {
				rec["User"] = nil
			}
		}
		if expand["Threads"] {
			threads := sess.threads
			if threads == nil {
				threads = []model.Thread{}
			}
			rec["Threads"] = threads
		}
		out = append(out, rec)
	}
	writeValue(w, out)
}

// closeSessionHandler POST /Sessions('{id}')/tm1.Close
func (s *Server) closeSessionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(unquote(mux.Vars(r)["id"]), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	c := callerFrom(r)
	if id != c.session.id && !c.isAdmin() {
		writeError(w, http.StatusForbidden, "admin privilege required")
		return
	}
	if !s.state.closeSession(id) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeFiltered 按$filter过滤后输出value数组
func (s *Server) writeFiltered(w http.ResponseWriter, r *http.Request, items interface{}) {
	filter, err := parseFilter(r.URL.Query().Get("$filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := json.Marshal(items)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var records []map[string]interface{}
	if err := json.Unmarshal(data, &records); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]map[string]interface{}, 0, len(records))
	for _, rec := range records {
		if filter.match(rec) {
			out = append(out, rec)
		}
	}
	writeValue(w, out)
}

// unquote 还原OData字面量中加倍的单引号
func unquote(s string) string {
	return strings.ReplaceAll(s, "''", "'")
}

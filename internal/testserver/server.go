package testserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// APIPrefix 模拟的TM1 REST根路径
const APIPrefix = "/api/v1"

// ServerConfig 模拟服务器配置
type ServerConfig struct {
	Addr           string
	EnableCORS     bool
	AllowedOrigins []string
	// FailFirstRequests 前N个请求直接返回503，用于测试客户端重连
	FailFirstRequests int
	// Verbose 是否打印每个请求
	Verbose bool
}

// DefaultServerConfig 返回默认配置
func DefaultServerConfig(addr string) *ServerConfig {
	return &ServerConfig{
		Addr:           addr,
		EnableCORS:     true,
		AllowedOrigins: []string{"*"},
	}
}

// RecordedRequest 服务器收到的请求
type RecordedRequest struct {
	Method   string
	Path     string
	RawQuery string
	Filter   string
	Expand   string
	User     string
	At       time.Time
}

// Server 模拟TM1 REST服务器，数据保存在内存中
type Server struct {
	config   *ServerConfig
	router   *mux.Router
	server   *http.Server
	listener net.Listener

	isRunning atomic.Bool
	failLeft  atomic.Int32

	mu       sync.RWMutex
	state    *State
	requests []RecordedRequest
}

// New 创建模拟服务器，fixtures为nil时使用DefaultFixtures
func New(config *ServerConfig, fixtures *Fixtures) *Server {
	if config == nil {
		config = DefaultServerConfig("127.0.0.1:0")
	}
	if fixtures == nil {
		fixtures = DefaultFixtures()
	}

	s := &Server{
		config: config,
		router: mux.NewRouter(),
		state:  newState(fixtures),
	}
	s.failLeft.Store(int32(config.FailFirstRequests))
	s.setupRoutes()

	var handler http.Handler = s.router
	if config.EnableCORS {
		c := cors.New(cors.Options{
			AllowedOrigins:   config.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		})
		handler = c.Handler(s.router)
	}

	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler 返回完整的HTTP处理器，可直接交给httptest使用
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	s.router.Use(s.recordMiddleware)
	s.router.Use(s.failMiddleware)

	api := s.router.PathPrefix(APIPrefix).Subrouter()
	api.Use(s.authMiddleware)

	api.HandleFunc("/ActiveUser", s.activeUserHandler).Methods("GET")
	api.HandleFunc("/ActiveSession/Threads", s.activeSessionThreadsHandler).Methods("GET")
	api.HandleFunc("/ActiveSession/tm1.Close", s.logoutHandler).Methods("POST")

	api.HandleFunc("/Threads", s.threadsHandler).Methods("GET")
	api.HandleFunc("/Threads('{id}')/tm1.CancelOperation", s.cancelThreadHandler).Methods("POST")

	api.HandleFunc("/Users", s.usersHandler).Methods("GET")
	api.HandleFunc("/Users('{name}')/IsActive", s.userIsActiveHandler).Methods("GET")
	api.HandleFunc("/Users('{name}')/tm1.Disconnect", s.disconnectUserHandler).Methods("POST")

	api.HandleFunc("/Sessions", s.sessionsHandler).Methods("GET")
	api.HandleFunc("/Sessions('{id}')/tm1.Close", s.closeSessionHandler).Methods("POST")
}

// Start 在配置的地址上启动服务器，地址端口为0时自动分配
func (s *Server) Start() error {
	if !s.isRunning.CompareAndSwap(false, true) {
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		s.isRunning.Store(false)
		return fmt.Errorf("listen on %s: %w", s.config.Addr, err)
	}
	s.listener = ln

	log.Printf("Starting mock TM1 server on %s", ln.Addr())

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()
	return nil
}

// Shutdown 关闭服务器
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.isRunning.CompareAndSwap(true, false) {
		return nil
	}
	log.Printf("Shutting down mock TM1 server...")
	return s.server.Shutdown(ctx)
}

// Addr 返回实际监听地址
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.config.Addr
	}
	return s.listener.Addr().String()
}

// BaseURL 返回REST根地址
func (s *Server) BaseURL() string {
	return "http://" + s.Addr() + APIPrefix
}

// Requests 返回已记录请求的副本
func (s *Server) Requests() []RecordedRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// ResetRequests 清空请求记录
func (s *Server) ResetRequests() {
	s.mu.Lock()
	s.requests = nil
	s.mu.Unlock()
}

// CountRequests 统计方法和路径前缀匹配的请求数，method为空时匹配所有方法
func (s *Server) CountRequests(method, pathPrefix string) int {
	n := 0
	for _, r := range s.Requests() {
		if method != "" && r.Method != method {
			continue
		}
		if strings.HasPrefix(r.Path, pathPrefix) {
			n++
		}
	}
	return n
}

// recordMiddleware 记录每个请求
func (s *Server) recordMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		rec := RecordedRequest{
			Method:   r.Method,
			Path:     strings.TrimPrefix(r.URL.Path, APIPrefix),
			RawQuery: r.URL.RawQuery,
			Filter:   q.Get("$filter"),
			Expand:   q.Get("$expand"),
			At:       time.Now(),
		}
		if user, _, ok := r.BasicAuth(); ok {
			rec.User = user
		}

		s.mu.Lock()
		s.requests = append(s.requests, rec)
		s.mu.Unlock()

		if s.config.Verbose {
			log.Printf("%s %s", r.Method, r.URL.RequestURI())
		}
		next.ServeHTTP(w, r)
	})
}

// failMiddleware 按配置拒绝前N个请求
func (s *Server) failMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.failLeft.Load() > 0 && s.failLeft.Add(-1) >= 0 {
			writeError(w, http.StatusServiceUnavailable, "server is starting")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	var body errorBody
	body.Error.Code = fmt.Sprint(status)
	body.Error.Message = message
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Write response failed: %v", err)
	}
}

func writeValue(w http.ResponseWriter, v interface{}) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"value": v})
}

package rest

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"GoTM1Monitor/internal/model"
	"GoTM1Monitor/internal/odata"
)

const (
	// SessionCookie TM1会话cookie名称
	SessionCookie = "TM1SessionId"

	activeUserPath = "/ActiveUser?$select=Name,FriendlyName,Type,Enabled&$expand=Groups"
	logoutPath     = "/ActiveSession/tm1.Close"
)

// Service TM1 REST传输层，负责认证、会话cookie和请求发送
// 可并发使用
type Service struct {
	config  *Config
	root    string
	rootURL *url.URL
	client  *http.Client
	jar     *sessionJar
	limiter *rate.Limiter

	mu       sync.RWMutex
	identity *model.User
}

// New 创建REST服务
func New(config *Config) (*Service, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}

	root, err := config.ServiceRoot()
	if err != nil {
		return nil, fmt.Errorf("invalid rest config: %w", err)
	}
	rootURL, err := url.Parse(root)
	if err != nil {
		return nil, fmt.Errorf("invalid service root %q: %w", root, err)
	}

	jar, err := newSessionJar()
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !config.VerifyTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	s := &Service{
		config:  config,
		root:    root,
		rootURL: rootURL,
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
			Jar:       jar,
		},
		jar: jar,
	}

	if config.RequestsPerSecond > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}

	return s, nil
}

// ServiceRoot 返回服务根地址
func (s *Service) ServiceRoot() string {
	return s.root
}

// Connect 登录并解析当前用户身份，网络错误按指数退避重试，认证失败立即返回
func (s *Service) Connect(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	if s.config.Connect.InitialInterval > 0 {
		bo.InitialInterval = s.config.Connect.InitialInterval
	}
	if s.config.Connect.MaxInterval > 0 {
		bo.MaxInterval = s.config.Connect.MaxInterval
	}
	bo.MaxElapsedTime = 0

	var policy backoff.BackOff = backoff.WithMaxRetries(bo, uint64(max(s.config.Connect.MaxRetries, 0)))
	policy = backoff.WithContext(policy, ctx)

	attempt := 0
	var user model.User
	err := backoff.Retry(func() error {
		attempt++
		resp, err := s.GET(ctx, activeUserPath, nil)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && se.StatusCode != http.StatusServiceUnavailable {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			log.Printf("Connect to %s failed (attempt %d): %v", s.root, attempt, err)
			return err
		}
		if err := resp.JSON(&user); err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, policy)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", s.root, err)
	}

	s.mu.Lock()
	s.identity = &user
	s.mu.Unlock()

	log.Printf("Connected to %s as %s (type %s)", s.root, user.Name, user.Type)
	return nil
}

// CurrentUser 返回Connect时解析的身份
func (s *Service) CurrentUser() (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil, ErrNotConnected
	}
	u := *s.identity
	return &u, nil
}

// IsAdmin 当前身份是否为管理员，不发起请求
func (s *Service) IsAdmin(ctx context.Context) (bool, error) {
	u, err := s.CurrentUser()
	if err != nil {
		return false, err
	}
	return u.IsAdmin(), nil
}

// Logout 关闭服务器端会话，未连接时直接返回
// 请求失败时保留身份信息，可以重试
func (s *Service) Logout(ctx context.Context) error {
	s.mu.RLock()
	connected := s.identity != nil
	s.mu.RUnlock()

	if !connected {
		return nil
	}

	if _, err := s.POST(ctx, logoutPath, nil, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	s.mu.Lock()
	s.identity = nil
	s.mu.Unlock()

	if err := s.jar.Reset(); err != nil {
		return err
	}

	log.Printf("Logged out from %s", s.root)
	return nil
}

// GET 发送GET请求
func (s *Service) GET(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return s.do(ctx, http.MethodGet, path, nil, opts)
}

// POST 发送POST请求，body为nil时不带请求体
func (s *Service) POST(ctx context.Context, path string, body interface{}, opts *RequestOptions) (*Response, error) {
	return s.do(ctx, http.MethodPost, path, body, opts)
}

// PATCH 发送PATCH请求
func (s *Service) PATCH(ctx context.Context, path string, body interface{}, opts *RequestOptions) (*Response, error) {
	return s.do(ctx, http.MethodPatch, path, body, opts)
}

// DELETE 发送DELETE请求
func (s *Service) DELETE(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return s.do(ctx, http.MethodDelete, path, nil, opts)
}

// do 执行请求并读取完整响应，状态码>=400时返回StatusError
func (s *Service) do(ctx context.Context, method, path string, body interface{}, opts *RequestOptions) (*Response, error) {
	if opts != nil && opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	fullURL := s.root + odata.Encode(ensureLeadingSlash(path))

	var reader io.Reader
	if body != nil {
		switch v := body.(type) {
		case []byte:
			reader = bytes.NewReader(v)
		case string:
			reader = strings.NewReader(v)
		default:
			data, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("encode request body: %w", err)
			}
			reader = bytes.NewReader(data)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	s.setRequestHeaders(req, opts)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response failed: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &StatusError{
			Method:     method,
			URL:        fullURL,
			StatusCode: resp.StatusCode,
			Reason:     http.StatusText(resp.StatusCode),
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	if elapsed := time.Since(start); s.config.Timeout > 0 && elapsed > s.config.Timeout/2 {
		log.Printf("Slow request: %s %s took %v", method, path, elapsed)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

// setRequestHeaders 设置请求头，会话cookie存在时不再发送认证信息
func (s *Service) setRequestHeaders(req *http.Request, opts *RequestOptions) {
	req.Header.Set("Accept", "application/json;odata.metadata=none")
	req.Header.Set("TM1-SessionContext", s.config.SessionContext)
	if req.Body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	if !s.hasSessionCookie() {
		switch {
		case s.config.Namespace != "":
			token := base64.StdEncoding.EncodeToString(
				[]byte(s.config.User + ":" + s.config.Password + ":" + s.config.Namespace))
			req.Header.Set("Authorization", "CAMNamespace "+token)
		case s.config.User != "":
			req.SetBasicAuth(s.config.User, s.config.Password)
		}
	}

	if opts != nil {
		for k, v := range opts.Headers {
			req.Header.Set(k, v)
		}
	}
}

func (s *Service) hasSessionCookie() bool {
	for _, c := range s.jar.Cookies(s.rootURL) {
		if c.Name == SessionCookie && c.Value != "" {
			return true
		}
	}
	return false
}

func ensureLeadingSlash(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return "/" + path
}

// sessionJar 可重置的cookie jar，Logout后丢弃旧会话cookie
type sessionJar struct {
	mu  sync.RWMutex
	jar *cookiejar.Jar
}

func newSessionJar() (*sessionJar, error) {
	j := &sessionJar{}
	if err := j.Reset(); err != nil {
		return nil, err
	}
	return j, nil
}

// Reset 丢弃所有cookie
func (j *sessionJar) Reset() error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("create cookie jar: %w", err)
	}
	j.mu.Lock()
	j.jar = jar
	j.mu.Unlock()
	return nil
}

func (j *sessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	j.jar.SetCookies(u, cookies)
}

func (j *sessionJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.jar.Cookies(u)
}

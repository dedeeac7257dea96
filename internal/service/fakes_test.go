package service

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"GoTM1Monitor/internal/rest"
)

// call 记录一次传输层调用
type call struct {
	Method string
	Path   string
}

// fakeTransport 按路径返回预设响应并记录调用顺序
type fakeTransport struct {
	mu        sync.Mutex
	calls     []call
	responses map[string]string
	errs      map[string]error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		responses: make(map[string]string),
		errs:      make(map[string]error),
	}
}

func (f *fakeTransport) on(method, path, body string) *fakeTransport {
	f.responses[method+" "+path] = body
	return f
}

func (f *fakeTransport) fail(method, path string, err error) *fakeTransport {
	f.errs[method+" "+path] = err
	return f
}

func (f *fakeTransport) GET(ctx context.Context, path string, opts *rest.RequestOptions) (*rest.Response, error) {
	return f.handle(http.MethodGet, path)
}

func (f *fakeTransport) POST(ctx context.Context, path string, body interface{}, opts *rest.RequestOptions) (*rest.Response, error) {
	return f.handle(http.MethodPost, path)
}

func (f *fakeTransport) handle(method, path string) (*rest.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{Method: method, Path: path})

	key := method + " " + path
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	if body, ok := f.responses[key]; ok {
		return &rest.Response{StatusCode: http.StatusOK, Body: []byte(body)}, nil
	}
	if method == http.MethodPost {
		return &rest.Response{StatusCode: http.StatusNoContent}, nil
	}
	return nil, fmt.Errorf("unexpected request: %s", key)
}

func (f *fakeTransport) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

// posts 返回所有POST路径，保持调用顺序
func (f *fakeTransport) posts() []string {
	var out []string
	for _, c := range f.Calls() {
		if c.Method == http.MethodPost {
			out = append(out, c.Path)
		}
	}
	return out
}

// fakeAuth 固定返回管理员标志
type fakeAuth struct {
	admin bool
	err   error
}

func (a fakeAuth) IsAdmin(ctx context.Context) (bool, error) {
	return a.admin, a.err
}

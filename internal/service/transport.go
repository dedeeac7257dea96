package service

import (
	"context"

	"GoTM1Monitor/internal/rest"
)

// Transport 服务依赖的REST传输层，由rest.Service实现
type Transport interface {
	GET(ctx context.Context, path string, opts *rest.RequestOptions) (*rest.Response, error)
	POST(ctx context.Context, path string, body interface{}, opts *rest.RequestOptions) (*rest.Response, error)
}

var _ Transport = (*rest.Service)(nil)
var _ Authorizer = (*rest.Service)(nil)

package service

import (
	"context"
	"fmt"

	"GoTM1Monitor/internal/model"
	"GoTM1Monitor/internal/odata"
	"GoTM1Monitor/internal/rest"
	"GoTM1Monitor/internal/textutil"
)

const currentUserPath = "/ActiveUser?$select=Name,FriendlyName,Type,Enabled&$expand=Groups"

// UserService 查询活动用户和断开用户连接
type UserService struct {
	rest Transport
	auth Authorizer
}

// NewUserService 创建用户服务，auth用于保护DisconnectAll
func NewUserService(transport Transport, auth Authorizer) *UserService {
	return &UserService{rest: transport, auth: auth}
}

// GetActive 返回当前活动的用户
func (s *UserService) GetActive(ctx context.Context, opts *rest.RequestOptions) ([]model.User, error) {
	filter := odata.NewFilter().EqRaw("IsActive", "true")
	path := odata.WithQuery(odata.WithQuery("/Users", "$filter", filter.String()), "$expand", "Groups")

	resp, err := s.rest.GET(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	var users []model.User
	if err := resp.Value(&users); err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}

// IsActive 用户当前是否在线
func (s *UserService) IsActive(ctx context.Context, userName string, opts *rest.RequestOptions) (bool, error) {
	path := odata.FormatURL("/Users('{}')/IsActive", userName)
	resp, err := s.rest.GET(ctx, path, opts)
	if err != nil {
		return false, err
	}
	var active bool
	if err := resp.Value(&active); err != nil {
		return false, fmt.Errorf("GET %s: %w", path, err)
	}
	return active, nil
}

// GetCurrent 返回当前登录的用户
func (s *UserService) GetCurrent(ctx context.Context, opts *rest.RequestOptions) (*model.User, error) {
	resp, err := s.rest.GET(ctx, currentUserPath, opts)
	if err != nil {
		return nil, err
	}
	var user model.User
	if err := resp.JSON(&user); err != nil {
		return nil, fmt.Errorf("GET /ActiveUser: %w", err)
	}
	return &user, nil
}

// Disconnect 断开指定用户的所有会话
func (s *UserService) Disconnect(ctx context.Context, userName string, opts *rest.RequestOptions) (*rest.Response, error) {
	path := odata.FormatURL("/Users('{}')/tm1.Disconnect", userName)
	return s.rest.POST(ctx, path, nil, opts)
}

// DisconnectAll 断开除当前用户外的所有活动用户，返回被断开的用户名
func (s *UserService) DisconnectAll(ctx context.Context, opts *rest.RequestOptions) ([]string, error) {
	if err := RequireAdmin(ctx, s.auth, "disconnect all users"); err != nil {
		return nil, err
	}

	current, err := s.GetCurrent(ctx, opts)
	if err != nil {
		return nil, err
	}
	active, err := s.GetActive(ctx, opts)
	if err != nil {
		return nil, err
	}

	disconnected := make([]string, 0, len(active))
	for _, user := range active {
		if textutil.CaseAndSpaceInsensitiveEquals(current.Name, user.Name) {
			continue
		}
		if _, err := s.Disconnect(ctx, user.Name, opts); err != nil {
			return disconnected, fmt.Errorf("disconnect user %s: %w", user.Name, err)
		}
		disconnected = append(disconnected, user.Name)
	}
	return disconnected, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotAdmin 调用者不具备管理员权限
var ErrNotAdmin = errors.New("admin privilege required")

// NotAdminError 特权操作被非管理员调用
type NotAdminError struct {
	Operation string
}

func (e *NotAdminError) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, ErrNotAdmin)
}

// Is 使errors.Is(err, ErrNotAdmin)成立
func (e *NotAdminError) Is(target error) bool {
	return target == ErrNotAdmin
}

// Authorizer 判断当前身份是否为管理员，实现方不得为此发起请求
type Authorizer interface {
	IsAdmin(ctx context.Context) (bool, error)
}

// RequireAdmin 特权操作前的权限检查
func RequireAdmin(ctx context.Context, auth Authorizer, operation string) error {
	if auth == nil {
		return &NotAdminError{Operation: operation}
	}
	ok, err := auth.IsAdmin(ctx)
	if err != nil {
		return fmt.Errorf("%s: check admin privilege: %w", operation, err)
	}
	if !ok {
		return &NotAdminError{Operation: operation}
	}
	return nil
}

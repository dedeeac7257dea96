package rest

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotConnected 在Connect之前查询身份信息时返回
	ErrNotConnected = errors.New("rest service is not connected")
	// ErrMissingValue 响应体中没有value字段
	ErrMissingValue = errors.New("response has no value field")
)

// StatusError 服务器返回了错误状态码
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Reason     string
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s failed: %d %s", e.Method, e.URL, e.StatusCode, e.Reason)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// IsUnauthorized 是否为认证失败
func (e *StatusError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// StatusCode 从错误链中取出HTTP状态码，不是StatusError时返回0
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

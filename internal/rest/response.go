package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"GoTM1Monitor/internal/model"
)

// RequestOptions 单次请求的透传选项，nil表示使用默认值
type RequestOptions struct {
	// Timeout 单次请求超时，0表示使用客户端默认超时
	Timeout time.Duration
	// Headers 额外的请求头，覆盖默认值
	Headers map[string]string
}

// Response 已完整读取的HTTP响应
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// OK 状态码是否为2xx
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON 解码响应体，数字保留为json.Number
func (r *Response) JSON(v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(r.Body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Value 解码响应体中的value字段
func (r *Response) Value(v interface{}) error {
	var envelope struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(r.Body, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Value == nil {
		return ErrMissingValue
	}

	dec := json.NewDecoder(bytes.NewReader(envelope.Value))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	return nil
}

// Records 把value数组解码为原始记录
func (r *Response) Records() ([]model.Record, error) {
	var records []model.Record
	if err := r.Value(&records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []model.Record{}
	}
	return records, nil
}

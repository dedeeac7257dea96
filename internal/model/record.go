package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedRecord 记录缺少必需字段或字段类型不符
var ErrMalformedRecord = errors.New("malformed record")

// Record 服务器返回的原始JSON对象，数字保持为json.Number
type Record map[string]interface{}

// Lookup 按路径逐层取值，路径上任意一层缺失或为null时ok为false
func (r Record) Lookup(path ...string) (interface{}, bool) {
	var cur interface{} = map[string]interface{}(r)
	for _, key := range path {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		v, exists := m[key]
		if !exists || v == nil {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// String 按路径取字符串值
func (r Record) String(path ...string) (string, bool) {
	v, ok := r.Lookup(path...)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// ID 返回ID字段的文本形式，用于拼接资源URL
func (r Record) ID() (string, bool) {
	v, ok := r.Lookup("ID")
	if !ok {
		return "", false
	}
	switch id := v.(type) {
	case json.Number:
		return id.String(), true
	case string:
		return id, true
	case float64:
		return fmt.Sprintf("%.0f", id), true
	default:
		return fmt.Sprint(id), true
	}
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case Record:
		return m, true
	default:
		return nil, false
	}
}

// DecodeRecords 把原始记录转换为强类型对象
func DecodeRecords[T any](records []Record) ([]T, error) {
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}
	out := make([]T, 0, len(records))
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return out, nil
}

// DecodeSessions 把会话记录转换为Session
func DecodeSessions(records []Record) ([]Session, error) {
	return DecodeRecords[Session](records)
}

// DecodeThreads 把线程记录转换为Thread
func DecodeThreads(records []Record) ([]Thread, error) {
	return DecodeRecords[Thread](records)
}

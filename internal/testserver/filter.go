package testserver

import (
	"fmt"
	"regexp"
	"strings"
)

// 只支持本客户端会发出的表达式：field eq|ne 'literal'|true|false|数字，用and连接
var clausePattern = regexp.MustCompile(`^(\w+)\s+(eq|ne)\s+('(?:[^']|'')*'|true|false|-?\d+)$`)

type clause struct {
	field string
	op    string
	value string
}

type filterExpr []clause

// parseFilter 解析$filter表达式
func parseFilter(raw string) (filterExpr, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var expr filterExpr
	for _, part := range splitAnd(raw) {
		m := clausePattern.FindStringSubmatch(strings.TrimSpace(part))
		if m == nil {
			return nil, fmt.Errorf("unsupported filter clause: %q", part)
		}
		value := m[3]
		if strings.HasPrefix(value, "'") {
			value = strings.ReplaceAll(value[1:len(value)-1], "''", "'")
		}
		expr = append(expr, clause{field: m[1], op: m[2], value: value})
	}
	return expr, nil
}

// splitAnd 按 and 切分，忽略引号内的内容
func splitAnd(raw string) []string {
	var parts []string
	inQuote := false
	start := 0
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\'' {
			inQuote = !inQuote
			continue
		}
		if !inQuote && strings.HasPrefix(raw[i:], " and ") {
			parts = append(parts, raw[start:i])
			start = i + len(" and ")
			i += len(" and ") - 1
		}
	}
	return append(parts, raw[start:])
}

// match 记录是否满足所有条件，字段缺失时按空串比较
func (f filterExpr) match(rec map[string]interface{}) bool {
	for _, c := range f {
		actual := ""
		if v, ok := rec[c.field]; ok && v != nil {
			actual = fmt.Sprint(v)
		}
		equal := actual == c.value
		if (c.op == "eq") != equal {
			return false
		}
	}
	return true
}

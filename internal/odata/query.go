package odata

import (
	"strings"
)

// Filter $filter表达式构建器，条件之间用and连接
type Filter struct {
	clauses []string
}

// NewFilter 创建空的过滤器
func NewFilter() *Filter {
	return &Filter{}
}

// Ne 追加 field ne 'value' 条件
func (f *Filter) Ne(field, value string) *Filter {
	return f.add(field, "ne", value)
}

// Eq 追加 field eq 'value' 条件
func (f *Filter) Eq(field, value string) *Filter {
	return f.add(field, "eq", value)
}

// EqRaw 追加 field eq value 条件，value不加引号（用于布尔值和数字）
func (f *Filter) EqRaw(field, value string) *Filter {
	f.clauses = append(f.clauses, field+" eq "+value)
	return f
}

// NeIf 仅当cond为true时追加ne条件
func (f *Filter) NeIf(cond bool, field, value string) *Filter {
	if !cond {
		return f
	}
	return f.Ne(field, value)
}

func (f *Filter) add(field, op, value string) *Filter {
	literal := "'" + strings.ReplaceAll(value, "'", "''") + "'"
	f.clauses = append(f.clauses, field+" "+op+" "+literal)
	return f
}

// Empty 是否没有任何条件
func (f *Filter) Empty() bool {
	return len(f.clauses) == 0
}

// String 返回完整的过滤表达式
func (f *Filter) String() string {
	return strings.Join(f.clauses, " and ")
}

// Expand 把需要展开的子资源用逗号连接，空输入返回空串
func Expand(items ...string) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if item != "" {
			parts = append(parts, item)
		}
	}
	return strings.Join(parts, ",")
}

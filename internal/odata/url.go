package odata

import (
	"fmt"
	"strings"
)

// FormatURL 用args替换format中的{}占位符
// 每个参数先按OData字面量规则把单引号加倍，再做百分号编码，
// 因此参数既可以出现在路径中也可以出现在查询条件中
func FormatURL(format string, args ...interface{}) string {
	var b strings.Builder
	b.Grow(len(format))

	rest := format
	for _, arg := range args {
		idx := strings.Index(rest, "{}")
		if idx < 0 {
			break
		}
		b.WriteString(rest[:idx])
		b.WriteString(escapeArg(arg))
		rest = rest[idx+2:]
	}
	b.WriteString(rest)
	return b.String()
}

func escapeArg(arg interface{}) string {
	s, ok := arg.(string)
	if !ok {
		return fmt.Sprint(arg)
	}
	s = strings.ReplaceAll(s, "'", "''")

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) || c == '\'' {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return c == '-' || c == '_' || c == '.' || c == '~'
}

// Encode 对路径和查询串中不允许出现的字符做百分号编码
// 已有的%XX序列原样保留，OData用到的 $ ' ( ) , = & 也保留
func Encode(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if keep(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func keep(c byte) bool {
	return isUnreserved(c) || strings.IndexByte("$&=,'()/:;@!*?%", c) >= 0
}

// WithQuery 向path追加一个查询参数，值保持OData原始形式
func WithQuery(path, key, value string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + key + "=" + value
}

package textutil

import (
	"strings"
	"unicode"
)

// LowerAndDropSpaces 转小写并去掉所有空白字符
func LowerAndDropSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// CaseAndSpaceInsensitiveEquals 忽略大小写和空白比较两个名称
func CaseAndSpaceInsensitiveEquals(a, b string) bool {
	return LowerAndDropSpaces(a) == LowerAndDropSpaces(b)
}

// ContainsName 判断names中是否存在与name等价的名称
func ContainsName(names []string, name string) bool {
	target := LowerAndDropSpaces(name)
	for _, n := range names {
		if LowerAndDropSpaces(n) == target {
			return true
		}
	}
	return false
}

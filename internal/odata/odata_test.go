package odata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatURL(t *testing.T) {
	assert.Equal(t, "/Sessions('42')/tm1.Close", FormatURL("/Sessions('{}')/tm1.Close", int64(42)))
	assert.Equal(t, "/Users('O''Brien')/IsActive", FormatURL("/Users('{}')/IsActive", "O'Brien"))
	assert.Equal(t, "/Users('John%20Doe')/IsActive", FormatURL("/Users('{}')/IsActive", "John Doe"))
	assert.Equal(t, "/Users('a%26b')", FormatURL("/Users('{}')", "a&b"))
	// 多余的参数被忽略，缺少的占位符原样保留
	assert.Equal(t, "/Threads('1')", FormatURL("/Threads('{}')", 1, 2))
	assert.Equal(t, "/Threads('{}')", FormatURL("/Threads('{}')"))
}

func TestEncode(t *testing.T) {
	raw := "/ActiveSession/Threads?$filter=Function ne 'GET /ActiveSession/Threads' and State ne 'Idle'"
	want := "/ActiveSession/Threads?$filter=Function%20ne%20'GET%20/ActiveSession/Threads'%20and%20State%20ne%20'Idle'"
	assert.Equal(t, want, Encode(raw))

	// 已编码的序列不会被重复编码
	assert.Equal(t, "/Users('John%20Doe')", Encode("/Users('John%20Doe')"))
	assert.Equal(t, "/Sessions?$expand=User,Threads", Encode("/Sessions?$expand=User,Threads"))
	assert.Equal(t, "a%23b%2Bc", Encode("a#b+c"))
}

func TestFilter(t *testing.T) {
	f := NewFilter().Ne("Function", "GET /ActiveSession/Threads")
	assert.Equal(t, "Function ne 'GET /ActiveSession/Threads'", f.String())

	f.NeIf(true, "State", "Idle")
	assert.Equal(t, "Function ne 'GET /ActiveSession/Threads' and State ne 'Idle'", f.String())

	g := NewFilter().Ne("Function", "GET /Threads").NeIf(false, "State", "Idle")
	assert.Equal(t, "Function ne 'GET /Threads'", g.String())

	assert.True(t, NewFilter().Empty())
	assert.Equal(t, "IsActive eq true", NewFilter().EqRaw("IsActive", "true").String())
	assert.Equal(t, "Name eq 'O''Brien'", NewFilter().Eq("Name", "O'Brien").String())
}

func TestExpandAndWithQuery(t *testing.T) {
	assert.Equal(t, "User,Threads", Expand("User", "Threads"))
	assert.Equal(t, "User", Expand("User", ""))
	assert.Equal(t, "", Expand())

	assert.Equal(t, "/Sessions?$expand=User", WithQuery("/Sessions", "$expand", "User"))
	assert.Equal(t, "/Users?$filter=IsActive eq true&$expand=Groups",
		WithQuery("/Users?$filter=IsActive eq true", "$expand", "Groups"))
}

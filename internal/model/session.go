package model

// Session 服务器上的一个连接，可选展开User和Threads
type Session struct {
	ID      int64    `json:"ID" yaml:"id"`
	Context string   `json:"Context,omitempty" yaml:"context,omitempty"`
	Active  bool     `json:"Active" yaml:"active"`
	User    *User    `json:"User,omitempty" yaml:"user,omitempty"`
	Threads []Thread `json:"Threads,omitempty" yaml:"threads,omitempty"`
}

// UserName 返回会话所属用户名，未展开时返回空串
func (s *Session) UserName() string {
	if s.User == nil {
		return ""
	}
	return s.User.Name
}

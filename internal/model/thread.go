package model

// 线程状态和类型
const (
	ThreadStateIdle  = "Idle"
	ThreadStateRun   = "Run"
	ThreadStateWait  = "Wait"
	ThreadTypeSystem = "System"
	ThreadTypeUser   = "User"
	ThreadNamePseudo = "Pseudo"
)

// Thread 服务器上正在运行的操作
type Thread struct {
	ID          int64  `json:"ID" yaml:"id"`
	Type        string `json:"Type,omitempty" yaml:"type,omitempty"`
	Name        string `json:"Name,omitempty" yaml:"name,omitempty"`
	Context     string `json:"Context,omitempty" yaml:"context,omitempty"`
	State       string `json:"State,omitempty" yaml:"state,omitempty"`
	Function    string `json:"Function,omitempty" yaml:"function,omitempty"`
	ObjectType  string `json:"ObjectType,omitempty" yaml:"object_type,omitempty"`
	ObjectName  string `json:"ObjectName,omitempty" yaml:"object_name,omitempty"`
	RLocks      int    `json:"RLocks" yaml:"r_locks"`
	IXLocks     int    `json:"IXLocks" yaml:"ix_locks"`
	WLocks      int    `json:"WLocks" yaml:"w_locks"`
	ElapsedTime string `json:"ElapsedTime,omitempty" yaml:"elapsed_time,omitempty"`
	WaitTime    string `json:"WaitTime,omitempty" yaml:"wait_time,omitempty"`
	Info        string `json:"Info,omitempty" yaml:"info,omitempty"`
}

// IsIdle 线程是否空闲
func (t *Thread) IsIdle() bool {
	return t.State == ThreadStateIdle
}

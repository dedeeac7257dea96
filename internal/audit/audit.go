package audit

import (
	"context"
	"sync"
	"time"
)

// 审计动作
const (
	ActionCloseSession   = "close_session"
	ActionCancelThread   = "cancel_thread"
	ActionDisconnectUser = "disconnect_user"
)

// Event 一次对服务器有副作用的操作
type Event struct {
	Action   string    `json:"action" yaml:"action"`
	Target   string    `json:"target" yaml:"target"`
	Actor    string    `json:"actor" yaml:"actor"`
	Instance string    `json:"instance" yaml:"instance"`
	At       time.Time `json:"at" yaml:"at"`
}

// Recorder 记录审计事件
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// Nop 丢弃所有事件
type Nop struct{}

// Record 实现Recorder
func (Nop) Record(context.Context, Event) error { return nil }

// Memory 把事件保存在内存中
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// Record 实现Recorder
func (m *Memory) Record(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events 返回已记录事件的副本
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

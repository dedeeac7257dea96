package service

import (
	"context"
	"fmt"

	"GoTM1Monitor/internal/model"
	"GoTM1Monitor/internal/odata"
	"GoTM1Monitor/internal/rest"
)

// 线程列表请求本身对应的Function，取消时需要跳过
const (
	threadsFunction       = "GET /Threads"
	threadsFunctionPrefix = "GET /api/v1/Threads"
)

// ThreadService 查询和取消服务器线程
type ThreadService struct {
	rest Transport
}

// NewThreadService 创建线程服务
func NewThreadService(transport Transport) *ThreadService {
	return &ThreadService{rest: transport}
}

// Get 返回所有线程
func (s *ThreadService) Get(ctx context.Context, opts *rest.RequestOptions) ([]model.Record, error) {
	return getRecords(ctx, s.rest, "/Threads", opts)
}

// GetActive 返回非空闲线程，不包含查询本身
func (s *ThreadService) GetActive(ctx context.Context, opts *rest.RequestOptions) ([]model.Record, error) {
	filter := odata.NewFilter().
		Ne("Function", threadsFunction).
		Ne("State", model.ThreadStateIdle)
	return getRecords(ctx, s.rest, odata.WithQuery("/Threads", "$filter", filter.String()), opts)
}

// Cancel 取消一个线程，返回原始响应
func (s *ThreadService) Cancel(ctx context.Context, threadID int64, opts *rest.RequestOptions) (*rest.Response, error) {
	url := odata.FormatURL("/Threads('{}')/tm1.CancelOperation", threadID)
	return s.rest.POST(ctx, url, nil, opts)
}

// CancelAllRunning 依次取消所有运行中的用户线程，返回被取消的线程
// 跳过空闲线程、系统线程、Pseudo线程以及线程查询本身
func (s *ThreadService) CancelAllRunning(ctx context.Context, opts *rest.RequestOptions) ([]model.Record, error) {
	running, err := s.GetActive(ctx, opts)
	if err != nil {
		return nil, err
	}

	cancelled := make([]model.Record, 0, len(running))
	for i, thread := range running {
		if skipOnCancel(thread) {
			continue
		}
		id, ok := thread.ID()
		if !ok {
			return cancelled, fmt.Errorf("thread %d has no ID: %w", i, model.ErrMalformedRecord)
		}
		if _, err := s.rest.POST(ctx, odata.FormatURL("/Threads('{}')/tm1.CancelOperation", id), nil, opts); err != nil {
			return cancelled, fmt.Errorf("cancel thread %s: %w", id, err)
		}
		cancelled = append(cancelled, thread)
	}
	return cancelled, nil
}

func skipOnCancel(thread model.Record) bool {
	state, _ := thread.String("State")
	typ, _ := thread.String("Type")
	name, _ := thread.String("Name")
	function, _ := thread.String("Function")

	return state == model.ThreadStateIdle ||
		typ == model.ThreadTypeSystem ||
		name == model.ThreadNamePseudo ||
		function == threadsFunction ||
		function == threadsFunctionPrefix
}

// getRecords GET请求并返回value数组
func getRecords(ctx context.Context, transport Transport, path string, opts *rest.RequestOptions) ([]model.Record, error) {
	resp, err := transport.GET(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	records, err := resp.Records()
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return records, nil
}

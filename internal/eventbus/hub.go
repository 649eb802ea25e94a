package eventbus

import (
	"context"
	"sync"
	"time"
)

// 事件类型
const (
	TypePipelineState  = "pipeline.state"  // 建议/寄语生成流水线状态变化
	TypeRecordsChanged = "records.changed" // 同步写入了新数据
)

type Event struct {
	Type      string         `json:"type"`
	Timestamp int64          `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Hub 进程内广播，订阅者通过 SSE 转发给前端
type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	if evt.Timestamp == 0 {
		evt.Timestamp = time.Now().UnixMilli()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs {
		select {
		case ch <- evt:
		default:
			// 慢消费者直接丢弃，不阻塞生成与同步
		}
	}
}

// PublishPipelineState 发布一次流水线状态迁移
func (h *Hub) PublishPipelineState(runID, kind, state string, extra map[string]any) {
	data := map[string]any{"run_id": runID, "kind": kind, "state": state}
	for k, v := range extra {
		data[k] = v
	}
	h.Publish(Event{Type: TypePipelineState, Data: data})
}

func (h *Hub) Subscribe(ctx context.Context, buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
		close(ch)
	}()

	return ch
}

package chat

import (
	"sync"
	"time"

	"github.com/hongjun500/chat-sync/pkg/logger"
)

// EventType 事件类型标识
type EventType string

const (
	EventStateChanged     EventType = "state.changed"
	EventMessageNotify    EventType = "message.notify"
	EventCharacterEntered EventType = "character.entered"
	EventPermissionPrompt EventType = "permission.prompt"
	EventWarning          EventType = "warning"
)

type Event interface {
	Type() EventType
	Time() time.Time
}

type EventHandler func(Event)

type handlerEntry struct {
	id uint64
	fn EventHandler
}

// Emitter 显式出站事件通道；处理器在调用方协程同步执行，
// UI 层订阅后以拉取快照的方式读取引擎状态
type Emitter struct {
	mu       sync.RWMutex
	handlers map[EventType][]handlerEntry
	nextHID  uint64
}

func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[EventType][]handlerEntry)}
}

// Subscribe 注册事件处理器
func (em *Emitter) Subscribe(t EventType, fn EventHandler) { _ = em.SubscribeCancelable(t, fn) }

// SubscribeCancelable 注册并返回取消函数
func (em *Emitter) SubscribeCancelable(t EventType, fn EventHandler) (cancel func()) {
	em.mu.Lock()
	em.nextHID++
	id := em.nextHID
	em.handlers[t] = append(em.handlers[t], handlerEntry{id: id, fn: fn})
	em.mu.Unlock()

	return func() {
		em.mu.Lock()
		entries := em.handlers[t]
		if len(entries) > 0 {
			filtered := entries[:0]
			for _, e := range entries {
				if e.id != id {
					filtered = append(filtered, e)
				}
			}
			if len(filtered) == 0 {
				delete(em.handlers, t)
			} else {
				em.handlers[t] = append([]handlerEntry(nil), filtered...)
			}
		}
		em.mu.Unlock()
	}
}

// Emit 同步分发事件给所有 handler；单个 handler panic 不影响其余
func (em *Emitter) Emit(e Event) {
	em.mu.RLock()
	entries, ok := em.handlers[e.Type()]
	var copied []handlerEntry
	if ok && len(entries) > 0 {
		copied = append(copied, entries...)
	}
	em.mu.RUnlock()
	for _, entry := range copied {
		func(fn EventHandler) {
			defer func() {
				if r := recover(); r != nil {
					logger.Named("events").Sugar().Errorw("event_handler_panic",
						"event", e.Type(), "panic", r)
				}
			}()
			fn(e)
		}(entry.fn)
	}
}

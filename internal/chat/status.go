package chat

import (
	"sync"

	"github.com/hongjun500/chat-sync/internal/protocol"
)

// StatusTracker 维护参与者 -> 状态映射。
// 自身条目以本地为准，远端回显忽略。
type StatusTracker struct {
	mu       sync.RWMutex
	statuses map[string]protocol.Status
	sent     bool
	lastSent protocol.StatusUpdate
}

func NewStatusTracker() *StatusTracker {
	return &StatusTracker{statuses: make(map[string]protocol.Status)}
}

// SetOwn 更新自身状态；仅当 (status, target) 与上次广播不同才返回 true，
// 调用方据此决定是否向服务端上报
func (t *StatusTracker) SetOwn(selfID string, status protocol.Status, target string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setLocked(selfID, status)
	next := protocol.StatusUpdate{Status: status, Target: target}
	if t.sent && t.lastSent == next {
		return false
	}
	t.sent = true
	t.lastSent = next
	return true
}

// ApplyRemote 应用服务端推送；自身条目不接受回显
func (t *StatusTracker) ApplyRemote(id, selfID string, status protocol.Status) {
	if id == selfID {
		return
	}
	t.mu.Lock()
	t.setLocked(id, status)
	t.mu.Unlock()
}

// none 状态不保留条目，映射即"谁在输入/耳语"
func (t *StatusTracker) setLocked(id string, status protocol.Status) {
	if status == protocol.StatusNone || status == "" {
		delete(t.statuses, id)
		return
	}
	t.statuses[id] = status
}

// Snapshot 只读拷贝
func (t *StatusTracker) Snapshot() map[string]protocol.Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]protocol.Status, len(t.statuses))
	for k, v := range t.statuses {
		out[k] = v
	}
	return out
}

// Forget 移除离开参与者的条目
func (t *StatusTracker) Forget(id string) {
	t.mu.Lock()
	delete(t.statuses, id)
	t.mu.Unlock()
}

// Reset 清空（切换房间上下文）
func (t *StatusTracker) Reset() {
	t.mu.Lock()
	t.statuses = make(map[string]protocol.Status)
	t.sent = false
	t.lastSent = protocol.StatusUpdate{}
	t.mu.Unlock()
}

package chat

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/hongjun500/chat-sync/internal/protocol"
)

// SendOptions 发送选项
type SendOptions struct {
	Type    protocol.RoomMessageType `json:"type,omitempty"`    // chat|ooc|me|emote，空为 chat
	Target  string                   `json:"target,omitempty"`  // 定向接收者；空为广播
	Raw     bool                     `json:"raw,omitempty"`     // 跳过标记解析，按单段原文发送
	Editing int64                    `json:"editing,omitempty"` // 被编辑消息的本地 ID；0 表示非编辑
}

// PendingSent 已发送且仍在编辑窗口内的消息记录
type PendingSent struct {
	Text    string      `json:"text"`
	Time    int64       `json:"time"` // 发送时刻，毫秒
	Options SendOptions `json:"options"`
}

// PendingRegistry 跟踪本客户端发送、尚可编辑/删除的消息。
// 窗口判定以读取时的惰性检查为准；定时 Sweep 只是缓存清理。
type PendingRegistry struct {
	mu      sync.RWMutex
	window  int64 // 毫秒
	entries map[int64]PendingSent
}

func NewPendingRegistry(window time.Duration) *PendingRegistry {
	return &PendingRegistry{
		window:  window.Milliseconds(),
		entries: make(map[int64]PendingSent),
	}
}

// editableAt 条目在 now 时刻是否仍在窗口内：now < time + window
func (r *PendingRegistry) editableAt(e PendingSent, now int64) bool {
	return now < e.Time+r.window
}

// Record 记录一条待确认消息；同 ID 覆盖
func (r *PendingRegistry) Record(id int64, text string, now int64, opts SendOptions) {
	r.mu.Lock()
	r.entries[id] = PendingSent{Text: text, Time: now, Options: opts}
	r.mu.Unlock()
}

// Get 返回仍在窗口内的记录
func (r *PendingRegistry) Get(id int64, now int64) (PendingSent, bool) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok || !r.editableAt(e, now) {
		return PendingSent{}, false
	}
	return e, true
}

func (r *PendingRegistry) Remove(id int64) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

// Sweep 清除已超窗的条目
func (r *PendingRegistry) Sweep(now int64) {
	r.mu.Lock()
	for id, e := range r.entries {
		if !r.editableAt(e, now) {
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()
}

// LastEditable 返回最近发送且仍在窗口内的条目 ID；
// 本地 ID 严格递增，最大 ID 即最近发送
func (r *PendingRegistry) LastEditable(now int64) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best int64
	found := false
	for id, e := range r.entries {
		if !r.editableAt(e, now) {
			continue
		}
		if !found || id > best {
			best = id
			found = true
		}
	}
	return best, found
}

// Deadline 返回剩余可编辑毫秒数
func (r *PendingRegistry) Deadline(id int64, now int64) (int64, bool) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok || !r.editableAt(e, now) {
		return 0, false
	}
	return e.Time + r.window - now, true
}

func (r *PendingRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Entries 导出当前全部条目（快照写入用），按 ID 升序
func (r *PendingRegistry) Entries() []SentEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SentEntry, 0, len(r.entries))
	for id, e := range r.entries {
		out = append(out, SentEntry{ID: id, Message: e})
	}
	slices.SortFunc(out, func(a, b SentEntry) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Restore 从快照恢复条目，过滤掉已超窗的记录
// （快照存放期间条目可能过期）
func (r *PendingRegistry) Restore(entries []SentEntry, now int64) {
	r.mu.Lock()
	r.entries = make(map[int64]PendingSent, len(entries))
	for _, e := range entries {
		if r.editableAt(e.Message, now) {
			r.entries[e.ID] = e.Message
		}
	}
	r.mu.Unlock()
}

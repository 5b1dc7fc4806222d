package chat

import (
	"bytes"

	"github.com/hongjun500/chat-sync/internal/protocol"
)

// ProcessedMessage 已并入可见列表的消息，附带接收时的房间 ID 与编辑标记。
// 并入列表后不再原地修改；编辑/删除命中时整条替换，保证消费方的引用相等约定。
type ProcessedMessage struct {
	protocol.RoomMessage
	SpaceID string `json:"spaceId,omitempty"`
	Edited  bool   `json:"edited,omitempty"`
}

// sameAction 判断两条动作类消息是否可合并：
// 类型、ID、customText、接收者集合、负载与字典全部一致
func sameAction(a, b protocol.RoomMessage) bool {
	if a.Type != b.Type || !a.Type.IsAction() {
		return false
	}
	if a.ID != b.ID || a.CustomText != b.CustomText {
		return false
	}
	if !sameRecipients(a.To, b.To) {
		return false
	}
	return bytes.Equal(a.Data, b.Data) && bytes.Equal(a.Dictionary, b.Dictionary)
}

// sameRecipients 按集合语义比较接收者，与顺序无关
func sameRecipients(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	seen := make(map[string]int, len(a))
	for _, id := range a {
		seen[id]++
	}
	for _, id := range b {
		seen[id]--
		if seen[id] < 0 {
			return false
		}
	}
	return true
}

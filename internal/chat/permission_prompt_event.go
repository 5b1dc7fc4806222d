package chat

import (
	"time"

	"github.com/hongjun500/chat-sync/internal/protocol"
)

// PermissionPromptEvent 按分类聚合后的权限请求，一个输入批次恰好一个事件
type PermissionPromptEvent struct {
	When   time.Time
	Source protocol.Character
	Groups []PermissionGroup
}

func (e *PermissionPromptEvent) Type() EventType { return EventPermissionPrompt }
func (e *PermissionPromptEvent) Time() time.Time { return e.When }

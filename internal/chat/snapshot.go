package chat

import "context"

// SentEntry 快照中的 (本地 ID, 待确认记录) 对
type SentEntry struct {
	ID      int64       `json:"id"`
	Message PendingSent `json:"message"`
}

// RestoreSnapshot 会话级恢复快照：每个客户端一份，覆盖式重写。
// 短暂断线后进入同一房间时用于延续历史。
type RestoreSnapshot struct {
	SpaceID  *string            `json:"spaceId"`
	Messages []ProcessedMessage `json:"messages"`
	Sent     []SentEntry        `json:"sent"`
}

// SnapshotStore 快照存取；实现见 internal/snapshot。
// Load 在无快照时返回 (nil, nil)。
type SnapshotStore interface {
	Save(ctx context.Context, snap *RestoreSnapshot) error
	Load(ctx context.Context) (*RestoreSnapshot, error)
}

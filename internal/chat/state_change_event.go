package chat

import "time"

// StateChangedEvent 引擎持有的可见状态发生变化（消息列表、名册或状态映射），
// UI 收到后重新拉取快照
type StateChangedEvent struct {
	When    time.Time
	SpaceID *string
}

func (e *StateChangedEvent) Type() EventType { return EventStateChanged }
func (e *StateChangedEvent) Time() time.Time { return e.When }

package chat

import "time"

// WarningEvent 非致命、可忽略的用户可见警告（如异步请求失败）
type WarningEvent struct {
	When time.Time
	Text string
}

func (e *WarningEvent) Type() EventType { return EventWarning }
func (e *WarningEvent) Time() time.Time { return e.When }

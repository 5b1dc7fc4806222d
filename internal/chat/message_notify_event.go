package chat

import "time"

// MessageNotifyEvent 一个批次内新增了可见且未被去重的消息；
// 每批次至多发出一次，用于驱动单次通知而非逐条提醒
type MessageNotifyEvent struct {
	When    time.Time
	SpaceID string
}

func (e *MessageNotifyEvent) Type() EventType { return EventMessageNotify }
func (e *MessageNotifyEvent) Time() time.Time { return e.When }

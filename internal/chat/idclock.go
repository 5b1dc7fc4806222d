package chat

import "time"

// Clock 可注入时钟，便于测试模拟同毫秒碰撞与时钟回拨
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock 真实墙上时钟
var SystemClock Clock = systemClock{}

// IDClock 基于墙上时钟生成严格递增、无碰撞的本地消息 ID（毫秒值）
type IDClock struct {
	clock Clock
	last  int64
}

func NewIDClock(clock Clock) *IDClock {
	if clock == nil {
		clock = SystemClock
	}
	return &IDClock{clock: clock}
}

// Next 返回 max(now, last+1) 并记录为 last
func (c *IDClock) Next() int64 {
	now := c.clock.Now().UnixMilli()
	if now <= c.last {
		now = c.last + 1
	}
	c.last = now
	return now
}

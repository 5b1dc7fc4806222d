package transport

import (
	"time"

	"github.com/hongjun500/chat-sync/internal/protocol"
)

// Handler 服务端推送的接收方（由 chat.Engine 实现）。
// 每次回调运行完毕之前不会进入下一次回调。
type Handler interface {
	OnLoad(protocol.SpaceState)
	OnUpdate(protocol.SpaceUpdate)
	OnMessage([]protocol.RoomMessage)
	OnStatus(protocol.StatusPush)
	OnPermissionPrompt(protocol.PermissionPrompt)
}

// Options 连接参数
type Options struct {
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	PingInterval time.Duration
	MaxFrameSize int
	OutBuffer    int
}

func (o Options) withDefaults() Options {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 60 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.MaxFrameSize <= 0 {
		o.MaxFrameSize = 1 << 20
	}
	if o.OutBuffer <= 0 {
		o.OutBuffer = 256
	}
	return o
}

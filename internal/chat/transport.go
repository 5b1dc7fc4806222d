package chat

import (
	"context"

	"github.com/hongjun500/chat-sync/internal/protocol"
)

// Transport 发往服务端的窄接口；实现见 internal/transport。
// Send 即发即弃；AwaitResponse 等待按 correlation 关联的应答。
type Transport interface {
	Send(msgType protocol.MessageType, payload any) error
	AwaitResponse(ctx context.Context, msgType protocol.MessageType, payload any) (*protocol.Response, error)
}

package protocol

import "encoding/json"

// MessageType 表示系统支持的业务消息类型
type MessageType string

const (
	// 服务端 → 客户端推送
	MsgRoomLoad         MessageType = "chatRoomLoad"
	MsgRoomUpdate       MessageType = "chatRoomUpdate"
	MsgRoomMessage      MessageType = "chatRoomMessage"
	MsgRoomStatus       MessageType = "chatRoomStatus"
	MsgPermissionPrompt MessageType = "permissionPrompt"

	// 客户端 → 服务端请求
	MsgChatMessage MessageType = "sendChatMessage"
	MsgGameAction  MessageType = "requestGameAction"
	MsgStatus      MessageType = "chatStatus"

	// 请求响应
	MsgResponse MessageType = "response"
)

type Envelope struct {
	// ---- 协议元信息 ----
	Version string      `json:"version"`
	Type    MessageType `json:"type"`

	// ---- 路由与可靠性 ----
	Mid         string `json:"mid"`                      // 消息唯一ID
	Correlation string `json:"correlation_id,omitempty"` // 相关请求ID
	Ts          int64  `json:"ts"`                       // 毫秒时间戳

	// ---- 负载 ----
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Version1 当前协议版本
const Version1 = "1.0"

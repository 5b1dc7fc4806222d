package protocol

import "encoding/json"

// RoomMessageType 房间消息类型
type RoomMessageType string

const (
	RoomChat    RoomMessageType = "chat"
	RoomOOC     RoomMessageType = "ooc"
	RoomMe      RoomMessageType = "me"
	RoomEmote   RoomMessageType = "emote"
	RoomAction  RoomMessageType = "action"
	RoomServer  RoomMessageType = "serverMessage"
	RoomDeleted RoomMessageType = "deleted"
)

// IsAction 判断是否为动作类消息（可合并计数）
func (t RoomMessageType) IsAction() bool {
	return t == RoomAction || t == RoomServer
}

// MessageSegment 聊天内容片段；Type 为聊天模式（chat/ooc/me/emote）
type MessageSegment struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// RoomMessage 服务端下发的单条房间消息
//
// Time 为服务端分配的全流单调递增水位值；ID 用于编辑/删除关联，
// 与客户端本地生成的发送 ID 不在同一命名空间。
type RoomMessage struct {
	Time int64           `json:"time"`
	ID   string          `json:"id"`
	Type RoomMessageType `json:"type"`
	From string          `json:"from,omitempty"`
	To   []string        `json:"to,omitempty"`

	// 编辑消息携带被编辑消息的 ID
	InsertID string `json:"insertId,omitempty"`

	// 普通聊天内容
	Parts []MessageSegment `json:"parts,omitempty"`

	// 动作类消息：仅用于展示与合并比较的不透明负载
	CustomText  string          `json:"customText,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	Dictionary  json.RawMessage `json:"dictionary,omitempty"`
	Repetitions int             `json:"repetitions,omitempty"`
}

// Character 房间参与者
type Character struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpaceState 进入房间时下发的完整状态
type SpaceState struct {
	SpaceID    *string     `json:"spaceId"` // null 表示本地/单人上下文
	Characters []Character `json:"characters,omitempty"`
}

// SpaceUpdate 房间增量更新；Join/Leave/Info 至多一个生效
type SpaceUpdate struct {
	Join  *Character        `json:"join,omitempty"`
	Leave string            `json:"leave,omitempty"`
	Info  map[string]string `json:"info,omitempty"` // 针对已有参与者的属性更新
	ID    string            `json:"id,omitempty"`   // Info 更新的目标参与者
}

// Status 参与者粗粒度状态
type Status string

const (
	StatusNone       Status = "none"
	StatusTyping     Status = "typing"
	StatusWhispering Status = "whispering"
)

// StatusPush 服务端下发的参与者状态
type StatusPush struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
}

// PermissionRequirement 权限要求描述
type PermissionRequirement struct {
	Category string `json:"category"`
	Name     string `json:"name"`
}

// PermissionTuple 单条 (要求, 已解析配置) 元组；Config 为 null 时由客户端代入分类默认值
type PermissionTuple struct {
	Requirement PermissionRequirement `json:"requirement"`
	Config      json.RawMessage       `json:"config,omitempty"`
}

// PermissionPrompt 服务端下发的权限请求
type PermissionPrompt struct {
	Source       Character         `json:"source"`
	Requirements []PermissionTuple `json:"requirements"`
}

package protocol

// ChatMessageRequest 发送聊天消息；删除即 Messages 为空并带 EditID
type ChatMessageRequest struct {
	ID       int64            `json:"id"`
	Messages []MessageSegment `json:"messages"`
	EditID   int64            `json:"editId,omitempty"`
}

// GameActionOperation 游戏动作操作
type GameActionOperation string

const (
	ActionDoImmediately GameActionOperation = "doImmediately"
	ActionStart         GameActionOperation = "start"
	ActionComplete      GameActionOperation = "complete"
	ActionAbortCurrent  GameActionOperation = "abortCurrentAction"
)

// GameActionRequest 请求执行游戏动作
type GameActionRequest struct {
	Operation GameActionOperation `json:"operation"`
	Action    string              `json:"action,omitempty"`
}

// StatusUpdate 客户端上报自身状态
type StatusUpdate struct {
	Status Status `json:"status"`
	Target string `json:"target,omitempty"`
}

// ResultOK 请求成功的 result 值
const ResultOK = "ok"

// Response 请求的通用应答
type Response struct {
	Result string `json:"result"`
}

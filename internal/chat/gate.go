package chat

import "github.com/hongjun500/chat-sync/internal/protocol"

// RestrictionResult 限制评估结果
type RestrictionResult struct {
	Blocked bool
	Reason  string
}

// RestrictionChecker 外部限制/权限评估器。
// 在分配 ID 或发起任何网络调用之前同步调用；被拒的发送不留痕迹。
type RestrictionChecker interface {
	CheckMessage(seg protocol.MessageSegment) RestrictionResult
	CheckAction(req protocol.GameActionRequest) RestrictionResult
}

// MarkupParser 外部聊天文本标记解析器
type MarkupParser interface {
	Parse(text string, mode protocol.RoomMessageType) []protocol.MessageSegment
}

// AllowAll 不做任何限制的评估器（本地/单人上下文的缺省）
type AllowAll struct{}

func (AllowAll) CheckMessage(protocol.MessageSegment) RestrictionResult {
	return RestrictionResult{}
}

func (AllowAll) CheckAction(protocol.GameActionRequest) RestrictionResult {
	return RestrictionResult{}
}

// PlainParser 单段直出的解析器，未接入外部解析器时的缺省
type PlainParser struct{}

func (PlainParser) Parse(text string, mode protocol.RoomMessageType) []protocol.MessageSegment {
	if text == "" {
		return nil
	}
	return []protocol.MessageSegment{{Type: string(mode), Text: text}}
}

package chat

import (
	"slices"

	"github.com/hongjun500/chat-sync/internal/observe"
	"github.com/hongjun500/chat-sync/internal/protocol"
	"github.com/hongjun500/chat-sync/pkg/logger"
)

// ChatMessageStream 持有有序、去重、可直接展示的消息列表。
// 列表内 time 值唯一且严格递增；重复批次依靠水位线静默丢弃。
type ChatMessageStream struct {
	messages []ProcessedMessage
	inserts  map[string]int // 被编辑消息 ID -> 下一插入位置游标
}

func NewChatMessageStream() *ChatMessageStream {
	return &ChatMessageStream{
		messages: make([]ProcessedMessage, 0),
		inserts:  make(map[string]int),
	}
}

// IngestResult 单次批量折叠的结果
type IngestResult struct {
	Watermark int64
	Notify    bool // 本批次是否新增了可见且未被去重的消息
}

// Ingest 将一批服务端消息按到达顺序折叠进当前列表。
// time 不高于水位线的消息直接丢弃（重复投递幂等）；
// 返回的新水位线永不小于传入值。
func (s *ChatMessageStream) Ingest(batch []protocol.RoomMessage, watermark int64, spaceID string) IngestResult {
	res := IngestResult{Watermark: watermark}
	dropped := 0
	for _, msg := range batch {
		if msg.Time <= watermark {
			dropped++
			continue
		}
		if msg.Time > res.Watermark {
			res.Watermark = msg.Time
		}
		s.fold(msg, spaceID, &res.Notify)
	}
	if dropped > 0 {
		observe.AddDuplicates(dropped)
	}
	return res
}

func (s *ChatMessageStream) fold(msg protocol.RoomMessage, spaceID string, notify *bool) {
	observe.IncIngested(string(msg.Type))
	switch {
	case msg.Type == protocol.RoomDeleted:
		s.applyDelete(msg, spaceID)
	case msg.InsertID != "":
		s.applyEdit(msg, spaceID)
	case msg.Type.IsAction():
		s.applyAction(msg, spaceID, notify)
	default:
		s.append(msg, spaceID, notify)
	}
}

// applyDelete 将第一条 ID 匹配的可见消息替换为墓碑；
// 后续同 ID 出现一律不动，防御重复删除。无匹配则为 no-op。
func (s *ChatMessageStream) applyDelete(msg protocol.RoomMessage, spaceID string) {
	for i, m := range s.messages {
		if m.ID == msg.ID && m.Type != protocol.RoomDeleted {
			s.messages[i] = ProcessedMessage{RoomMessage: msg, SpaceID: spaceID}
			return
		}
	}
}

// applyEdit 编辑消息不追加到末尾：优先替换同一发送者留下的墓碑，
// 否则插入到此前编辑占住的游标位置；两者都不命中则丢弃。
func (s *ChatMessageStream) applyEdit(msg protocol.RoomMessage, spaceID string) {
	for i, m := range s.messages {
		if m.Type == protocol.RoomDeleted && m.ID == msg.InsertID && m.From == msg.From {
			s.messages[i] = ProcessedMessage{RoomMessage: msg, SpaceID: spaceID, Edited: true}
			s.inserts[msg.InsertID] = i + 1
			return
		}
	}
	if pos, ok := s.inserts[msg.InsertID]; ok {
		if pos > len(s.messages) {
			pos = len(s.messages)
		}
		s.messages = slices.Insert(s.messages, pos, ProcessedMessage{RoomMessage: msg, SpaceID: spaceID, Edited: true})
		s.inserts[msg.InsertID] = pos + 1
		return
	}
	observe.IncDroppedEdit()
	logger.L().Sugar().Debugw("edit_dropped", "insert_id", msg.InsertID, "from", msg.From)
}

// applyAction 与列表末尾内容完全一致的动作消息只递增重复计数（基数 1）。
// 条目的 time 推进到最新一次出现，合并后的列表仍能还原出正确的水位线。
func (s *ChatMessageStream) applyAction(msg protocol.RoomMessage, spaceID string, notify *bool) {
	if n := len(s.messages); n > 0 {
		last := s.messages[n-1]
		if sameAction(last.RoomMessage, msg) {
			if last.Repetitions == 0 {
				last.Repetitions = 2
			} else {
				last.Repetitions++
			}
			last.Time = msg.Time
			s.messages[n-1] = last
			observe.IncCoalesced()
			return
		}
	}
	s.append(msg, spaceID, notify)
}

func (s *ChatMessageStream) append(msg protocol.RoomMessage, spaceID string, notify *bool) {
	s.messages = append(s.messages, ProcessedMessage{RoomMessage: msg, SpaceID: spaceID})
	*notify = true
}

// Messages 返回当前列表的拷贝
func (s *ChatMessageStream) Messages() []ProcessedMessage {
	out := make([]ProcessedMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *ChatMessageStream) Len() int { return len(s.messages) }

// Restore 用快照内容重建列表（切换上下文后的恢复路径）。
// 插入游标不随快照保存；恢复的历史已是折叠结果，后续编辑仍可命中其中的墓碑。
func (s *ChatMessageStream) Restore(messages []ProcessedMessage) {
	s.messages = make([]ProcessedMessage, len(messages))
	copy(s.messages, messages)
	s.inserts = make(map[string]int)
}

package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hongjun500/chat-sync/internal/observe"
	"github.com/hongjun500/chat-sync/internal/protocol"
	"github.com/hongjun500/chat-sync/pkg/logger"
)

// Config 引擎参数
type Config struct {
	CharacterID      string        // 本客户端的参与者 ID
	EditWindow       time.Duration // 已发送消息可编辑/删除的窗口
	MaxMessageLength int           // 单条消息最大长度（按字符计）
	RequestTimeout   time.Duration // 异步请求超时
}

// Dependencies 引擎依赖的外部协作方；未提供的项使用缺省实现
type Dependencies struct {
	Transport Transport
	Gate      RestrictionChecker
	Parser    MarkupParser
	Store     SnapshotStore // nil 则不做快照持久化
	Clock     Clock
	Defaults  func(category string) json.RawMessage // 权限分类默认配置
}

// Engine 聊天/会话调和引擎：
// 向上暴露传输层调用的处理器面（OnLoad/OnUpdate/OnMessage/OnStatus/OnPermissionPrompt）
// 与 UI 调用的命令面（SendMessage/DeleteMessage/SetStatus/RequestAction 等）。
// 处理器逐个运行完毕互不交叠，但不保证按发送顺序到达；
// 幂等性由消息批次携带的水位线保证。
type Engine struct {
	mu  sync.Mutex
	cfg Config
	log *zap.SugaredLogger

	clock     Clock
	ids       *IDClock
	transport Transport
	gate      RestrictionChecker
	parser    MarkupParser
	store     SnapshotStore

	spaceID   *string
	roster    map[string]protocol.Character
	stream    *ChatMessageStream
	watermark int64
	pending   *PendingRegistry
	statuses  *StatusTracker
	prompts   *PromptAggregator
	emitter   *Emitter

	done chan struct{}
}

func NewEngine(cfg Config, deps Dependencies) *Engine {
	if cfg.EditWindow <= 0 {
		cfg.EditWindow = 10 * time.Minute
	}
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = 1000
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock
	}
	if deps.Gate == nil {
		deps.Gate = AllowAll{}
	}
	if deps.Parser == nil {
		deps.Parser = PlainParser{}
	}

	e := &Engine{
		cfg:       cfg,
		log:       logger.Named("engine").Sugar(),
		clock:     deps.Clock,
		ids:       NewIDClock(deps.Clock),
		transport: deps.Transport,
		gate:      deps.Gate,
		parser:    deps.Parser,
		store:     deps.Store,
		roster:    make(map[string]protocol.Character),
		stream:    NewChatMessageStream(),
		pending:   NewPendingRegistry(cfg.EditWindow),
		statuses:  NewStatusTracker(),
		prompts:   NewPromptAggregator(deps.Defaults),
		emitter:   NewEmitter(),
		done:      make(chan struct{}),
	}

	// 构造即尝试恢复：存储中的快照若属于当前（本地）上下文则直接延用
	e.mu.Lock()
	e.restoreLocked()
	e.mu.Unlock()

	go e.sweepLoop()
	return e
}

// Close 停止后台清扫
func (e *Engine) Close() {
	close(e.done)
}

// Events 出站事件订阅面
func (e *Engine) Events() *Emitter { return e.emitter }

// Messages 当前可见消息列表的拷贝（UI 拉取）
func (e *Engine) Messages() []ProcessedMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stream.Messages()
}

// SpaceID 当前房间 ID；nil 为本地/单人上下文
func (e *Engine) SpaceID() *string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.spaceID
}

// Statuses 正在输入/耳语的参与者映射拷贝
func (e *Engine) Statuses() map[string]protocol.Status {
	return e.statuses.Snapshot()
}

// Roster 当前参与者列表拷贝
func (e *Engine) Roster() []protocol.Character {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]protocol.Character, 0, len(e.roster))
	for _, c := range e.roster {
		out = append(out, c)
	}
	return out
}

// ---- 传输层处理器面 ----

// OnLoad 进入房间：丢弃旧上下文的全部状态，按新房间 ID 查找恢复快照
func (e *Engine) OnLoad(state protocol.SpaceState) {
	e.mu.Lock()
	e.spaceID = state.SpaceID
	e.roster = make(map[string]protocol.Character, len(state.Characters))
	for _, c := range state.Characters {
		e.roster[c.ID] = c
	}
	e.stream = NewChatMessageStream()
	e.watermark = 0
	e.pending = NewPendingRegistry(e.cfg.EditWindow)
	e.statuses.Reset()
	e.restoreLocked()
	observe.SetPending(e.pending.Len())
	spaceID := e.spaceID
	e.mu.Unlock()

	e.emitter.Emit(&StateChangedEvent{When: e.clock.Now(), SpaceID: spaceID})
}

// OnUpdate 房间增量更新；引用未知参与者的子更新记录内部错误后跳过，
// 不影响整个批次
func (e *Engine) OnUpdate(update protocol.SpaceUpdate) {
	var entered *protocol.Character
	applied := false

	e.mu.Lock()
	switch {
	case update.Join != nil:
		c := *update.Join
		e.roster[c.ID] = c
		entered = &c
		applied = true
	case update.Leave != "":
		if _, ok := e.roster[update.Leave]; !ok {
			e.log.Errorw("update_unknown_participant", "id", update.Leave, "op", "leave")
			break
		}
		delete(e.roster, update.Leave)
		e.statuses.Forget(update.Leave)
		applied = true
	case len(update.Info) > 0:
		c, ok := e.roster[update.ID]
		if !ok {
			e.log.Errorw("update_unknown_participant", "id", update.ID, "op", "info")
			break
		}
		if name, ok := update.Info["name"]; ok {
			c.Name = name
		}
		e.roster[update.ID] = c
		applied = true
	}
	spaceID := e.spaceID
	e.mu.Unlock()

	if entered != nil {
		e.emitter.Emit(&CharacterEnteredEvent{When: e.clock.Now(), Character: *entered})
	}
	if applied {
		e.emitter.Emit(&StateChangedEvent{When: e.clock.Now(), SpaceID: spaceID})
	}
}

// OnMessage 折叠一批服务端消息并重写快照；
// 批次内新增可见消息时恰好发出一次 message.notify
func (e *Engine) OnMessage(batch []protocol.RoomMessage) {
	e.mu.Lock()
	before := e.watermark
	res := e.stream.Ingest(batch, e.watermark, spaceKey(e.spaceID))
	e.watermark = res.Watermark
	if res.Watermark > before {
		e.saveLocked()
	}
	spaceID := e.spaceID
	e.mu.Unlock()

	if res.Watermark > before {
		e.emitter.Emit(&StateChangedEvent{When: e.clock.Now(), SpaceID: spaceID})
	}
	if res.Notify {
		e.emitter.Emit(&MessageNotifyEvent{When: e.clock.Now(), SpaceID: spaceKey(spaceID)})
	}
}

// OnStatus 服务端推送的参与者状态
func (e *Engine) OnStatus(push protocol.StatusPush) {
	e.statuses.ApplyRemote(push.ID, e.cfg.CharacterID, push.Status)
	e.mu.Lock()
	spaceID := e.spaceID
	e.mu.Unlock()
	e.emitter.Emit(&StateChangedEvent{When: e.clock.Now(), SpaceID: spaceID})
}

// OnPermissionPrompt 聚合权限请求；结果为空则静默丢弃
func (e *Engine) OnPermissionPrompt(p protocol.PermissionPrompt) {
	groups := e.prompts.Aggregate(p)
	if len(groups) == 0 {
		return
	}
	e.emitter.Emit(&PermissionPromptEvent{When: e.clock.Now(), Source: p.Source, Groups: groups})
}

// ---- UI 命令面 ----

// SendMessage 校验并派发一条聊天消息。
// 全部校验在分配 ID 与任何网络调用之前完成，被拒的发送不留痕迹；
// 派发后的失败只作为警告浮出，不回滚本地状态。
func (e *Engine) SendMessage(text string, opts SendOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now().UnixMilli()
	mode := opts.Type
	if mode == "" {
		mode = protocol.RoomChat
	}

	if opts.Editing != 0 {
		if _, ok := e.pending.Get(opts.Editing, now); !ok {
			return rejected(RejectMessageNotFound, fmt.Sprintf("message %d is no longer editable", opts.Editing))
		}
	}

	if opts.Target != "" {
		if _, ok := e.roster[opts.Target]; !ok {
			return rejected(RejectTargetNotPresent, "target is not in the current room")
		}
		if opts.Target == e.cfg.CharacterID {
			return rejected(RejectSelfTarget, "cannot whisper to yourself")
		}
		if mode == protocol.RoomMe || mode == protocol.RoomEmote {
			return rejected(RejectIncompatibleMode, string(mode)+" messages cannot be addressed")
		}
	}

	if utf8.RuneCountInString(text) > e.cfg.MaxMessageLength {
		return rejected(RejectTooLong, fmt.Sprintf("message exceeds %d characters", e.cfg.MaxMessageLength))
	}

	var segments []protocol.MessageSegment
	if opts.Raw {
		if text != "" {
			segments = []protocol.MessageSegment{{Type: string(mode), Text: text}}
		}
	} else {
		segments = e.parser.Parse(text, mode)
	}

	for _, seg := range segments {
		if res := e.gate.CheckMessage(seg); res.Blocked {
			return rejected(RejectRestricted, res.Reason)
		}
	}

	id := e.ids.Next()
	if len(segments) > 0 {
		e.pending.Record(id, text, now, opts)
	}
	if opts.Editing != 0 {
		e.pending.Remove(opts.Editing)
	}
	observe.SetPending(e.pending.Len())

	req := &protocol.ChatMessageRequest{ID: id, Messages: segments}
	if opts.Editing != 0 {
		req.EditID = opts.Editing
	}
	e.dispatch(protocol.MsgChatMessage, req)

	e.saveLocked()
	return nil
}

// DeleteMessage 删除仍在编辑窗口内的已发送消息。
// 线上形式是 messages 为空、携带 editId 的 sendChatMessage。
func (e *Engine) DeleteMessage(id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now().UnixMilli()
	if _, ok := e.pending.Get(id, now); !ok {
		return rejected(RejectMessageNotFound, fmt.Sprintf("message %d is no longer deletable", id))
	}
	e.pending.Remove(id)
	observe.SetPending(e.pending.Len())

	reqID := e.ids.Next()
	e.dispatch(protocol.MsgChatMessage, &protocol.ChatMessageRequest{
		ID:       reqID,
		Messages: []protocol.MessageSegment{},
		EditID:   id,
	})

	e.saveLocked()
	return nil
}

// GetMessageEdit 返回仍在窗口内的已发送记录
func (e *Engine) GetMessageEdit(id int64) (PendingSent, bool) {
	return e.pending.Get(id, e.clock.Now().UnixMilli())
}

// GetMessageEditTimeout 返回剩余可编辑毫秒数
func (e *Engine) GetMessageEditTimeout(id int64) (int64, bool) {
	return e.pending.Deadline(id, e.clock.Now().UnixMilli())
}

// GetLastMessageEdit 返回最近发送且仍可编辑的消息 ID（"编辑上一条"入口）
func (e *Engine) GetLastMessageEdit() (int64, bool) {
	return e.pending.LastEditable(e.clock.Now().UnixMilli())
}

// SetStatus 更新自身状态；仅当 (status, target) 对变化时才向服务端上报。
// 去抖由调用方完成。
func (e *Engine) SetStatus(status protocol.Status, target string) {
	if !e.statuses.SetOwn(e.cfg.CharacterID, status, target) {
		return
	}
	observe.IncStatusUpdate()
	if e.transport == nil {
		return
	}
	if err := e.transport.Send(protocol.MsgStatus, &protocol.StatusUpdate{Status: status, Target: target}); err != nil {
		e.log.Warnw("status_send_failed", "err", err)
	}
}

// RequestAction 请求执行游戏动作；同样先过限制门，再异步派发
func (e *Engine) RequestAction(op protocol.GameActionOperation, action string) error {
	req := protocol.GameActionRequest{Operation: op, Action: action}
	if res := e.gate.CheckAction(req); res.Blocked {
		return rejected(RejectRestricted, res.Reason)
	}
	e.dispatch(protocol.MsgGameAction, &req)
	return nil
}

// ---- 内部 ----

// dispatch 异步发出请求；失败浮出为非致命警告，绝不回滚本地状态
func (e *Engine) dispatch(msgType protocol.MessageType, payload any) {
	if e.transport == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.RequestTimeout)
		defer cancel()
		resp, err := e.transport.AwaitResponse(ctx, msgType, payload)
		if err != nil {
			e.warn(fmt.Sprintf("request %s failed: %v", msgType, err))
			return
		}
		if resp == nil || resp.Result != protocol.ResultOK {
			result := ""
			if resp != nil {
				result = resp.Result
			}
			e.warn(fmt.Sprintf("request %s rejected by server: %s", msgType, result))
		}
	}()
}

func (e *Engine) warn(text string) {
	observe.IncSendFailure()
	e.log.Warnw("request_failed", "detail", text)
	e.emitter.Emit(&WarningEvent{When: e.clock.Now(), Text: text})
}

// saveLocked 每次影响消息列表或待确认登记的操作之后重写快照
func (e *Engine) saveLocked() {
	if e.store == nil {
		return
	}
	snap := &RestoreSnapshot{
		SpaceID:  e.spaceID,
		Messages: e.stream.Messages(),
		Sent:     e.pending.Entries(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.store.Save(ctx, snap); err != nil {
		e.log.Warnw("snapshot_save_failed", "err", err)
		return
	}
	observe.IncSnapshotWrite()
}

// restoreLocked 房间 ID 精确匹配才恢复；过期的待确认条目在装载时过滤
func (e *Engine) restoreLocked() {
	if e.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := e.store.Load(ctx)
	if err != nil {
		e.log.Warnw("snapshot_load_failed", "err", err)
		return
	}
	if snap == nil || !sameSpaceID(snap.SpaceID, e.spaceID) {
		return
	}
	e.stream.Restore(snap.Messages)
	for _, m := range snap.Messages {
		if m.Time > e.watermark {
			e.watermark = m.Time
		}
	}
	e.pending.Restore(snap.Sent, e.clock.Now().UnixMilli())
	e.log.Infow("snapshot_restored", "space", spaceKey(e.spaceID),
		"messages", len(snap.Messages), "pending", e.pending.Len())
}

// sweepLoop 以半个窗口为周期清理过期待确认条目；
// 纯缓存清理，窗口判定始终以读取时的惰性检查为准
func (e *Engine) sweepLoop() {
	ticker := time.NewTicker(e.cfg.EditWindow / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.mu.Lock()
			e.pending.Sweep(e.clock.Now().UnixMilli())
			observe.SetPending(e.pending.Len())
			e.mu.Unlock()
		case <-e.done:
			return
		}
	}
}

func spaceKey(spaceID *string) string {
	if spaceID == nil {
		return ""
	}
	return *spaceID
}

func sameSpaceID(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

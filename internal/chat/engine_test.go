package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hongjun500/chat-sync/internal/protocol"
)

// fakeTransport captures dispatched requests on a channel so tests can
// wait for the async sender goroutine.
type fakeTransport struct {
	mu     sync.Mutex
	sends  []protocol.MessageType
	reqs   chan any
	result string
	err    error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{reqs: make(chan any, 16), result: protocol.ResultOK}
}

func (f *fakeTransport) Send(msgType protocol.MessageType, _ any) error {
	f.mu.Lock()
	f.sends = append(f.sends, msgType)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) AwaitResponse(_ context.Context, _ protocol.MessageType, payload any) (*protocol.Response, error) {
	f.reqs <- payload
	if f.err != nil {
		return nil, f.err
	}
	return &protocol.Response{Result: f.result}, nil
}

func (f *fakeTransport) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

func (f *fakeTransport) nextChat(t *testing.T) *protocol.ChatMessageRequest {
	t.Helper()
	select {
	case p := <-f.reqs:
		req, ok := p.(*protocol.ChatMessageRequest)
		if !ok {
			t.Fatalf("expected *ChatMessageRequest, got %T", p)
		}
		return req
	case <-time.After(2 * time.Second):
		t.Fatalf("no request dispatched")
	}
	return nil
}

func (f *fakeTransport) nextAction(t *testing.T) *protocol.GameActionRequest {
	t.Helper()
	select {
	case p := <-f.reqs:
		req, ok := p.(*protocol.GameActionRequest)
		if !ok {
			t.Fatalf("expected *GameActionRequest, got %T", p)
		}
		return req
	case <-time.After(2 * time.Second):
		t.Fatalf("no request dispatched")
	}
	return nil
}

type fakeStore struct {
	mu    sync.Mutex
	snap  *RestoreSnapshot
	saves int
}

func (s *fakeStore) Save(_ context.Context, snap *RestoreSnapshot) error {
	s.mu.Lock()
	s.snap = snap
	s.saves++
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) Load(_ context.Context) (*RestoreSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, nil
}

func (s *fakeStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

type blockGate struct{ reason string }

func (g blockGate) CheckMessage(protocol.MessageSegment) RestrictionResult {
	return RestrictionResult{Blocked: true, Reason: g.reason}
}

func (g blockGate) CheckAction(protocol.GameActionRequest) RestrictionResult {
	return RestrictionResult{Blocked: true, Reason: g.reason}
}

func newTestEngine(t *testing.T, cfg Config, deps Dependencies) *Engine {
	t.Helper()
	if cfg.CharacterID == "" {
		cfg.CharacterID = "me"
	}
	e := NewEngine(cfg, deps)
	t.Cleanup(e.Close)
	return e
}

func wantReject(t *testing.T, err error, reason RejectReason) {
	t.Helper()
	var rej *SendRejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("expected SendRejectedError, got %v", err)
	}
	if rej.Reason != reason {
		t.Fatalf("expected reason %s, got %s", reason, rej.Reason)
	}
}

func TestSendMessageDispatchesAndRecordsPending(t *testing.T) {
	fc := &fakeClock{ms: 1000}
	ft := newFakeTransport()
	e := newTestEngine(t, Config{}, Dependencies{Transport: ft, Clock: fc})

	if err := e.SendMessage("hello", SendOptions{}); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	req := ft.nextChat(t)
	if req.ID != 1000 {
		t.Fatalf("expected id 1000, got %d", req.ID)
	}
	if len(req.Messages) != 1 || req.Messages[0].Text != "hello" {
		t.Fatalf("unexpected segments %+v", req.Messages)
	}
	if req.EditID != 0 {
		t.Fatalf("plain send must not carry an edit id")
	}
	if _, ok := e.GetMessageEdit(1000); !ok {
		t.Fatalf("sent message must be editable within the window")
	}
}

func TestRejectedSendLeavesNoTrace(t *testing.T) {
	fc := &fakeClock{ms: 1000}
	ft := newFakeTransport()
	e := newTestEngine(t, Config{MaxMessageLength: 5}, Dependencies{Transport: ft, Clock: fc})

	wantReject(t, e.SendMessage("toolong", SendOptions{}), RejectTooLong)
	if _, ok := e.GetLastMessageEdit(); ok {
		t.Fatalf("rejected send must not be recorded")
	}

	// The next accepted send proves the rejection consumed no message id
	if err := e.SendMessage("ok", SendOptions{}); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if req := ft.nextChat(t); req.ID != 1000 {
		t.Fatalf("expected first id 1000, got %d", req.ID)
	}
}

func TestSendMessageLengthBoundary(t *testing.T) {
	ft := newFakeTransport()
	e := newTestEngine(t, Config{MaxMessageLength: 5}, Dependencies{Transport: ft, Clock: &fakeClock{ms: 1000}})

	// Exactly at the limit passes; length counts runes, not bytes
	if err := e.SendMessage("héllo", SendOptions{}); err != nil {
		t.Fatalf("message at the limit must pass: %v", err)
	}
	ft.nextChat(t)
}

func TestSendMessageTargetValidation(t *testing.T) {
	fc := &fakeClock{ms: 1000}
	ft := newFakeTransport()
	e := newTestEngine(t, Config{CharacterID: "me"}, Dependencies{Transport: ft, Clock: fc})
	e.OnLoad(protocol.SpaceState{Characters: []protocol.Character{
		{ID: "me", Name: "Me"},
		{ID: "bob", Name: "Bob"},
	}})

	wantReject(t, e.SendMessage("hi", SendOptions{Target: "carol"}), RejectTargetNotPresent)
	wantReject(t, e.SendMessage("hi", SendOptions{Target: "me"}), RejectSelfTarget)
	wantReject(t, e.SendMessage("hi", SendOptions{Target: "bob", Type: protocol.RoomMe}), RejectIncompatibleMode)

	if err := e.SendMessage("hi", SendOptions{Target: "bob"}); err != nil {
		t.Fatalf("whisper to a present participant must pass: %v", err)
	}
	ft.nextChat(t)
}

func TestSendMessageRestricted(t *testing.T) {
	ft := newFakeTransport()
	e := newTestEngine(t, Config{}, Dependencies{
		Transport: ft,
		Clock:     &fakeClock{ms: 1000},
		Gate:      blockGate{reason: "muted"},
	})

	err := e.SendMessage("hello", SendOptions{})
	wantReject(t, err, RejectRestricted)
	if _, ok := e.GetLastMessageEdit(); ok {
		t.Fatalf("restricted send must not be recorded")
	}
}

func TestEditInsideWindow(t *testing.T) {
	windowMs := int64(10 * 60 * 1000)
	fc := &fakeClock{ms: 1000}
	ft := newFakeTransport()
	e := newTestEngine(t, Config{}, Dependencies{Transport: ft, Clock: fc})

	if err := e.SendMessage("v1", SendOptions{}); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	ft.nextChat(t)

	// One millisecond before expiry the edit still goes through
	fc.ms = 1000 + windowMs - 1
	if err := e.SendMessage("v2", SendOptions{Editing: 1000}); err != nil {
		t.Fatalf("edit inside the window failed: %v", err)
	}
	req := ft.nextChat(t)
	if req.EditID != 1000 {
		t.Fatalf("expected edit id 1000, got %d", req.EditID)
	}
	if req.ID == 1000 {
		t.Fatalf("edit must carry a fresh message id")
	}

	// The edited entry replaces the old one in the registry
	if _, ok := e.GetMessageEdit(1000); ok {
		t.Fatalf("old entry must be removed after an edit")
	}
	if id, ok := e.GetLastMessageEdit(); !ok || id != req.ID {
		t.Fatalf("new entry must be editable, got %d (ok=%v)", id, ok)
	}
}

func TestEditAfterWindowExpiry(t *testing.T) {
	windowMs := int64(10 * 60 * 1000)
	fc := &fakeClock{ms: 1000}
	ft := newFakeTransport()
	e := newTestEngine(t, Config{}, Dependencies{Transport: ft, Clock: fc})

	if err := e.SendMessage("v1", SendOptions{}); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	ft.nextChat(t)

	fc.ms = 1000 + windowMs
	wantReject(t, e.SendMessage("v2", SendOptions{Editing: 1000}), RejectMessageNotFound)
}

func TestDeleteMessage(t *testing.T) {
	fc := &fakeClock{ms: 1000}
	ft := newFakeTransport()
	e := newTestEngine(t, Config{}, Dependencies{Transport: ft, Clock: fc})

	if err := e.SendMessage("bye", SendOptions{}); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	ft.nextChat(t)

	if err := e.DeleteMessage(1000); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	req := ft.nextChat(t)
	if req.EditID != 1000 || len(req.Messages) != 0 {
		t.Fatalf("delete must be an empty edit, got %+v", req)
	}
	if req.ID <= 1000 {
		t.Fatalf("delete request id must advance past the original, got %d", req.ID)
	}

	if _, ok := e.GetMessageEdit(1000); ok {
		t.Fatalf("deleted message must leave the registry")
	}
	wantReject(t, e.DeleteMessage(1000), RejectMessageNotFound)
}

func TestServerRejectionWarnsWithoutRollback(t *testing.T) {
	fc := &fakeClock{ms: 1000}
	ft := newFakeTransport()
	ft.result = "error: denied"
	e := newTestEngine(t, Config{}, Dependencies{Transport: ft, Clock: fc})

	warnings := make(chan string, 1)
	e.Events().Subscribe(EventWarning, func(ev Event) {
		if w, ok := ev.(*WarningEvent); ok {
			select {
			case warnings <- w.Text:
			default:
			}
		}
	})

	if err := e.SendMessage("hello", SendOptions{}); err != nil {
		t.Fatalf("send must succeed locally: %v", err)
	}
	select {
	case <-warnings:
	case <-time.After(2 * time.Second):
		t.Fatalf("server rejection must surface as a warning")
	}

	// Async failure never rolls back the pending registry
	if _, ok := e.GetMessageEdit(1000); !ok {
		t.Fatalf("pending entry must survive a server rejection")
	}
}

func TestOnMessageNotifyOnceAndSnapshotWrite(t *testing.T) {
	fc := &fakeClock{ms: 1000}
	st := &fakeStore{}
	e := newTestEngine(t, Config{}, Dependencies{Clock: fc, Store: st})

	notifies := 0
	e.Events().Subscribe(EventMessageNotify, func(Event) { notifies++ })

	batch := []protocol.RoomMessage{
		chatMsg(10, "a", "alice", "one"),
		chatMsg(11, "b", "bob", "two"),
	}
	e.OnMessage(batch)
	if notifies != 1 {
		t.Fatalf("expected exactly one notify per batch, got %d", notifies)
	}
	if st.saveCount() == 0 {
		t.Fatalf("folding a batch must rewrite the snapshot")
	}
	saved := st.saveCount()

	// Redelivered batch: no new notify, no snapshot rewrite
	e.OnMessage(batch)
	if notifies != 1 {
		t.Fatalf("redelivery must not notify again, got %d", notifies)
	}
	if st.saveCount() != saved {
		t.Fatalf("redelivery must not rewrite the snapshot")
	}
}

func TestOnLoadRestoresMatchingSnapshot(t *testing.T) {
	room := "room1"
	fc := &fakeClock{ms: 700_000}
	st := &fakeStore{snap: &RestoreSnapshot{
		SpaceID: &room,
		Messages: []ProcessedMessage{
			{RoomMessage: chatMsg(100, "a", "alice", "old"), SpaceID: room},
		},
		Sent: []SentEntry{
			{ID: 650_000, Message: PendingSent{Text: "fresh", Time: 650_000}},
			{ID: 50_000, Message: PendingSent{Text: "stale", Time: 50_000}},
		},
	}}
	e := newTestEngine(t, Config{}, Dependencies{Clock: fc, Store: st})

	// Construction restores nothing: the stored snapshot belongs to room1
	if len(e.Messages()) != 0 {
		t.Fatalf("snapshot for another context must not load")
	}

	e.OnLoad(protocol.SpaceState{SpaceID: &room, Characters: []protocol.Character{{ID: "me"}}})
	msgs := e.Messages()
	if len(msgs) != 1 || msgs[0].ID != "a" {
		t.Fatalf("expected restored history, got %+v", msgs)
	}
	if _, ok := e.GetMessageEdit(650_000); !ok {
		t.Fatalf("fresh pending entry must survive restore")
	}
	if _, ok := e.GetMessageEdit(50_000); ok {
		t.Fatalf("expired pending entry must be filtered on restore")
	}

	// The watermark follows the restored history: redelivery is dropped
	e.OnMessage([]protocol.RoomMessage{chatMsg(100, "a", "alice", "old")})
	if len(e.Messages()) != 1 {
		t.Fatalf("message at the restored watermark must be dropped")
	}
}

func TestRestartKeepsCoalescedActionsIdempotent(t *testing.T) {
	room := "room1"
	fc := &fakeClock{ms: 1000}
	st := &fakeStore{}
	batch := []protocol.RoomMessage{
		actionMsg(100, "itemAdd"),
		actionMsg(101, "itemAdd"),
	}

	first := newTestEngine(t, Config{}, Dependencies{Clock: fc, Store: st})
	first.OnLoad(protocol.SpaceState{SpaceID: &room})
	first.OnMessage(batch)
	if msgs := first.Messages(); len(msgs) != 1 || msgs[0].Repetitions != 2 {
		t.Fatalf("expected one coalesced entry, got %+v", msgs)
	}

	// A second client restores from the shared store and sees the same
	// batch redelivered after the reconnect
	second := newTestEngine(t, Config{}, Dependencies{Clock: fc, Store: st})
	second.OnLoad(protocol.SpaceState{SpaceID: &room})
	second.OnMessage(batch)
	msgs := second.Messages()
	if len(msgs) != 1 || msgs[0].Repetitions != 2 {
		t.Fatalf("redelivery after restore must not inflate repetitions, got %+v", msgs)
	}
}

func TestOnUpdateUnknownParticipantSkipped(t *testing.T) {
	fc := &fakeClock{ms: 1000}
	e := newTestEngine(t, Config{}, Dependencies{Clock: fc})
	e.OnLoad(protocol.SpaceState{Characters: []protocol.Character{
		{ID: "me", Name: "Me"},
		{ID: "bob", Name: "Bob"},
	}})

	changes := 0
	e.Events().Subscribe(EventStateChanged, func(Event) { changes++ })

	e.OnUpdate(protocol.SpaceUpdate{Leave: "ghost"})
	if changes != 0 || len(e.Roster()) != 2 {
		t.Fatalf("unknown participant update must be skipped")
	}

	e.OnUpdate(protocol.SpaceUpdate{Leave: "bob"})
	if changes != 1 || len(e.Roster()) != 1 {
		t.Fatalf("known leave must apply, changes=%d roster=%d", changes, len(e.Roster()))
	}
}

func TestOnUpdateJoinAndRename(t *testing.T) {
	fc := &fakeClock{ms: 1000}
	e := newTestEngine(t, Config{}, Dependencies{Clock: fc})
	e.OnLoad(protocol.SpaceState{Characters: []protocol.Character{{ID: "me", Name: "Me"}}})

	entered := make([]string, 0, 1)
	e.Events().Subscribe(EventCharacterEntered, func(ev Event) {
		if c, ok := ev.(*CharacterEnteredEvent); ok {
			entered = append(entered, c.Character.ID)
		}
	})

	e.OnUpdate(protocol.SpaceUpdate{Join: &protocol.Character{ID: "carol", Name: "Carol"}})
	if len(entered) != 1 || entered[0] != "carol" {
		t.Fatalf("join must emit a character entered event, got %v", entered)
	}

	e.OnUpdate(protocol.SpaceUpdate{ID: "carol", Info: map[string]string{"name": "Caroline"}})
	for _, c := range e.Roster() {
		if c.ID == "carol" && c.Name != "Caroline" {
			t.Fatalf("rename must apply, got %q", c.Name)
		}
	}
}

func TestOnPermissionPromptDropsEmpty(t *testing.T) {
	e := newTestEngine(t, Config{}, Dependencies{Clock: &fakeClock{ms: 1000}})

	prompts := 0
	e.Events().Subscribe(EventPermissionPrompt, func(Event) { prompts++ })

	e.OnPermissionPrompt(protocol.PermissionPrompt{})
	if prompts != 0 {
		t.Fatalf("empty prompt must be dropped silently")
	}

	e.OnPermissionPrompt(protocol.PermissionPrompt{
		Source: protocol.Character{ID: "gm"},
		Requirements: []protocol.PermissionTuple{
			{Requirement: protocol.PermissionRequirement{Category: "tool", Name: "dice"}},
		},
	})
	if prompts != 1 {
		t.Fatalf("non-empty prompt must be emitted, got %d", prompts)
	}
}

func TestRequestActionGate(t *testing.T) {
	ft := newFakeTransport()
	blocked := newTestEngine(t, Config{}, Dependencies{
		Transport: ft,
		Clock:     &fakeClock{ms: 1000},
		Gate:      blockGate{reason: "actions disabled"},
	})
	wantReject(t, blocked.RequestAction(protocol.ActionStart, "dig"), RejectRestricted)

	allowed := newTestEngine(t, Config{}, Dependencies{Transport: ft, Clock: &fakeClock{ms: 1000}})
	if err := allowed.RequestAction(protocol.ActionDoImmediately, "dig"); err != nil {
		t.Fatalf("allowed action failed: %v", err)
	}
	req := ft.nextAction(t)
	if req.Operation != protocol.ActionDoImmediately || req.Action != "dig" {
		t.Fatalf("unexpected action request %+v", req)
	}
}

func TestSetStatusDeduplicates(t *testing.T) {
	ft := newFakeTransport()
	e := newTestEngine(t, Config{CharacterID: "me"}, Dependencies{Transport: ft, Clock: &fakeClock{ms: 1000}})

	e.SetStatus(protocol.StatusTyping, "")
	e.SetStatus(protocol.StatusTyping, "")
	if got := ft.sendCount(); got != 1 {
		t.Fatalf("repeated status must be sent once, got %d sends", got)
	}

	e.SetStatus(protocol.StatusNone, "")
	if got := ft.sendCount(); got != 2 {
		t.Fatalf("status change must be sent, got %d sends", got)
	}
}

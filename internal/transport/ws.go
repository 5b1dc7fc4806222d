package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hongjun500/chat-sync/internal/protocol"
	"github.com/hongjun500/chat-sync/pkg/logger"
)

// WSClient 基于 WebSocket 的客户端传输。
// Dial 建立连接并启动写协程；Start 绑定处理器后启动读协程。
type WSClient struct {
	conn  *websocket.Conn
	codec protocol.MessageCodec
	opt   Options

	mu      sync.Mutex
	pending map[string]chan *protocol.Response

	out       chan *protocol.Envelope
	closeOnce sync.Once
	closeChan chan struct{}
}

func Dial(ctx context.Context, url string, opt Options) (*WSClient, error) {
	opt = opt.withDefaults()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport.Dial: %w", err)
	}

	c := &WSClient{
		conn:      conn,
		codec:     &protocol.JSONCodec{},
		opt:       opt,
		pending:   make(map[string]chan *protocol.Response),
		out:       make(chan *protocol.Envelope, opt.OutBuffer),
		closeChan: make(chan struct{}),
	}

	logger.Named("transport").Sugar().Infow("ws_connected", "url", url)

	go c.writePump()
	go c.pingLoop()
	return c, nil
}

// Start 绑定服务端推送处理器并启动读取循环
func (c *WSClient) Start(handler Handler) {
	go c.readLoop(handler)
}

func (c *WSClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeChan)
		err = c.conn.Close()
		c.failPending()
	})
	return err
}

// Send 即发即弃；输出缓冲满时丢弃并告警（背压策略与服务端一致）
func (c *WSClient) Send(msgType protocol.MessageType, payload any) error {
	env, err := c.envelope(msgType, payload, "")
	if err != nil {
		return err
	}
	select {
	case <-c.closeChan:
		return fmt.Errorf("WSClient.Send: connection closed")
	default:
	}
	select {
	case c.out <- env:
		return nil
	default:
		logger.Named("transport").Sugar().Warnw("ws_out_dropped", "type", msgType)
		return fmt.Errorf("WSClient.Send: output buffer full")
	}
}

// AwaitResponse 发出请求并等待按 correlation_id 关联的应答
func (c *WSClient) AwaitResponse(ctx context.Context, msgType protocol.MessageType, payload any) (*protocol.Response, error) {
	env, err := c.envelope(msgType, payload, "")
	if err != nil {
		return nil, err
	}
	env.Correlation = env.Mid

	ch := make(chan *protocol.Response, 1)
	c.mu.Lock()
	c.pending[env.Mid] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, env.Mid)
		c.mu.Unlock()
	}()

	select {
	case c.out <- env:
	case <-c.closeChan:
		return nil, fmt.Errorf("WSClient.AwaitResponse: connection closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case resp := <-ch:
		if resp == nil {
			return nil, fmt.Errorf("WSClient.AwaitResponse: connection closed")
		}
		return resp, nil
	case <-c.closeChan:
		return nil, fmt.Errorf("WSClient.AwaitResponse: connection closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *WSClient) envelope(msgType protocol.MessageType, payload any, correlation string) (*protocol.Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("WSClient.envelope: %w", err)
	}
	return &protocol.Envelope{
		Version:     protocol.Version1,
		Type:        msgType,
		Mid:         uuid.NewString(),
		Correlation: correlation,
		Ts:          time.Now().UnixMilli(),
		Payload:     raw,
	}, nil
}

func (c *WSClient) writePump() {
	for {
		select {
		case env := <-c.out:
			var buffer bytes.Buffer
			if err := c.codec.Encode(&buffer, env); err != nil {
				logger.Named("transport").Sugar().Warnw("ws_encode_error", "err", err)
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opt.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, buffer.Bytes()); err != nil {
				logger.Named("transport").Sugar().Warnw("ws_write_error", "err", err)
				_ = c.Close()
				return
			}
		case <-c.closeChan:
			return
		}
	}
}

func (c *WSClient) pingLoop() {
	ticker := time.NewTicker(c.opt.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
		case <-c.closeChan:
			return
		}
	}
}

func (c *WSClient) readLoop(handler Handler) {
	log := logger.Named("transport").Sugar()

	_ = c.conn.SetReadDeadline(time.Now().Add(c.opt.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opt.ReadTimeout))
	})

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Warnw("ws_read_error", "err", err)
			_ = c.Close()
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.opt.ReadTimeout))
		if mt != websocket.TextMessage {
			continue
		}

		var env protocol.Envelope
		if err := c.codec.Decode(bytes.NewReader(data), &env, c.opt.MaxFrameSize); err != nil {
			log.Warnw("ws_decode_error", "err", err)
			continue
		}
		c.dispatch(&env, handler, log)
	}
}

// dispatch 应答按 correlation 送回等待者，推送按类型进入处理器面；
// 负载解码失败记录后跳过该条
func (c *WSClient) dispatch(env *protocol.Envelope, handler Handler, log *zap.SugaredLogger) {
	if env.Type == protocol.MsgResponse && env.Correlation != "" {
		var resp protocol.Response
		if err := json.Unmarshal(env.Payload, &resp); err != nil {
			log.Warnw("ws_bad_response", "err", err)
			return
		}
		c.mu.Lock()
		ch, ok := c.pending[env.Correlation]
		c.mu.Unlock()
		if ok {
			select {
			case ch <- &resp:
			default:
			}
		}
		return
	}

	if handler == nil {
		return
	}
	switch env.Type {
	case protocol.MsgRoomLoad:
		var state protocol.SpaceState
		if err := json.Unmarshal(env.Payload, &state); err != nil {
			log.Warnw("ws_bad_payload", "type", env.Type, "err", err)
			return
		}
		handler.OnLoad(state)
	case protocol.MsgRoomUpdate:
		var update protocol.SpaceUpdate
		if err := json.Unmarshal(env.Payload, &update); err != nil {
			log.Warnw("ws_bad_payload", "type", env.Type, "err", err)
			return
		}
		handler.OnUpdate(update)
	case protocol.MsgRoomMessage:
		var batch []protocol.RoomMessage
		if err := json.Unmarshal(env.Payload, &batch); err != nil {
			log.Warnw("ws_bad_payload", "type", env.Type, "err", err)
			return
		}
		handler.OnMessage(batch)
	case protocol.MsgRoomStatus:
		var push protocol.StatusPush
		if err := json.Unmarshal(env.Payload, &push); err != nil {
			log.Warnw("ws_bad_payload", "type", env.Type, "err", err)
			return
		}
		handler.OnStatus(push)
	case protocol.MsgPermissionPrompt:
		var prompt protocol.PermissionPrompt
		if err := json.Unmarshal(env.Payload, &prompt); err != nil {
			log.Warnw("ws_bad_payload", "type", env.Type, "err", err)
			return
		}
		handler.OnPermissionPrompt(prompt)
	default:
		log.Warnw("ws_unknown_type", "type", env.Type)
	}
}

// failPending 连接关闭时唤醒全部等待者
func (c *WSClient) failPending() {
	c.mu.Lock()
	for mid, ch := range c.pending {
		close(ch)
		delete(c.pending, mid)
	}
	c.mu.Unlock()
}

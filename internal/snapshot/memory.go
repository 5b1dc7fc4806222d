package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hongjun500/chat-sync/internal/chat"
)

// Memory 进程内快照存储：单槽位，覆盖式写入。
// 序列化后保存，Load 返回与 Save 内容深等的独立副本。
type Memory struct {
	mu   sync.RWMutex
	data []byte
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Save(_ context.Context, snap *chat.RestoreSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("Memory.Save: %w", err)
	}
	m.mu.Lock()
	m.data = payload
	m.mu.Unlock()
	return nil
}

func (m *Memory) Load(_ context.Context) (*chat.RestoreSnapshot, error) {
	m.mu.RLock()
	data := m.data
	m.mu.RUnlock()
	if data == nil {
		return nil, nil
	}
	var snap chat.RestoreSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("Memory.Load: %w", err)
	}
	return &snap, nil
}

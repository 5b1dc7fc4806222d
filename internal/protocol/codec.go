package protocol

import (
	"encoding/json"
	"fmt"
	"io"
)

// MessageCodec 消息体数据编码解码器
type MessageCodec interface {
	Name() string
	Encode(w io.Writer, m *Envelope) error
	Decode(r io.Reader, m *Envelope, maxSize int) error
}

// JSONCodec 基于 encoding/json 的编解码器，整个协议线上格式为 JSON
type JSONCodec struct{}

func (c *JSONCodec) Name() string { return "json" }

func (c *JSONCodec) Encode(w io.Writer, m *Envelope) error {
	if m == nil {
		return fmt.Errorf("JSONCodec.Encode: envelope is nil")
	}
	if err := json.NewEncoder(w).Encode(m); err != nil {
		return fmt.Errorf("JSONCodec.Encode: %w", err)
	}
	return nil
}

func (c *JSONCodec) Decode(r io.Reader, m *Envelope, maxSize int) error {
	if m == nil {
		return fmt.Errorf("JSONCodec.Decode: envelope is nil")
	}
	if maxSize > 0 {
		r = io.LimitReader(r, int64(maxSize)+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("JSONCodec.Decode: %w", err)
	}
	if maxSize > 0 && len(data) > maxSize {
		return fmt.Errorf("JSONCodec.Decode: frame exceeds %d bytes", maxSize)
	}
	if err := json.Unmarshal(data, m); err != nil {
		return fmt.Errorf("JSONCodec.Decode: %w", err)
	}
	return nil
}

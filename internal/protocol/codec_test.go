package protocol

import (
	"bytes"
	"strings"
	"testing"
)

func TestJSONCodecRoundTrip(t *testing.T) {
	codec := &JSONCodec{}
	in := &Envelope{
		Version:     Version1,
		Type:        MsgChatMessage,
		Mid:         "m-1",
		Correlation: "m-1",
		Ts:          1234,
		Payload:     []byte(`{"id":1,"messages":[]}`),
	}

	var buf bytes.Buffer
	if err := codec.Encode(&buf, in); err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	var out Envelope
	if err := codec.Decode(&buf, &out, 0); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out.Type != MsgChatMessage || out.Mid != "m-1" || out.Correlation != "m-1" || out.Ts != 1234 {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if !bytes.Equal(out.Payload, in.Payload) {
		t.Fatalf("payload mismatch: %s", out.Payload)
	}
}

func TestJSONCodecRejectsOversizedFrame(t *testing.T) {
	codec := &JSONCodec{}
	big := `{"version":"1.0","type":"chatRoomMessage","mid":"m","ts":1,"payload":"` +
		strings.Repeat("a", 256) + `"}`

	var env Envelope
	err := codec.Decode(strings.NewReader(big), &env, 64)
	if err == nil {
		t.Fatalf("oversized frame must be rejected")
	}
	if !strings.Contains(err.Error(), "exceeds") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestJSONCodecNilEnvelope(t *testing.T) {
	codec := &JSONCodec{}
	if err := codec.Encode(&bytes.Buffer{}, nil); err == nil {
		t.Fatalf("encoding a nil envelope must fail")
	}
	if err := codec.Decode(strings.NewReader("{}"), nil, 0); err == nil {
		t.Fatalf("decoding into a nil envelope must fail")
	}
}

func TestJSONCodecBadPayload(t *testing.T) {
	codec := &JSONCodec{}
	var env Envelope
	if err := codec.Decode(strings.NewReader("{not json"), &env, 0); err == nil {
		t.Fatalf("malformed frame must fail to decode")
	}
}

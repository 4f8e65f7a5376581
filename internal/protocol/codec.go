package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec turns messages into frames and back.
type Codec interface {
	Name() string
	Encode(m Message) ([]byte, error)
	Decode(b []byte) (Message, error)
}

// CodecByName returns the codec configured by name ("json" or "msgpack").
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}

// JSONCodec writes flat tagged records: the payload fields plus a "type" key.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("trying to encode nil message")
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Type(), err)
	}
	tag, _ := json.Marshal(m.Type())

	var buf bytes.Buffer
	buf.Grow(len(payload) + len(tag) + 10)
	buf.WriteString(`{"type":`)
	buf.Write(tag)
	if body := bytes.TrimSpace(payload[1 : len(payload)-1]); len(body) > 0 {
		buf.WriteByte(',')
		buf.Write(body)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (JSONCodec) Decode(b []byte) (Message, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("decode: empty frame")
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	m, err := New(head.Type)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", head.Type, err)
	}
	if err := json.Unmarshal(b, m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", head.Type, err)
	}
	return m, nil
}

// Envelope is the msgpack frame: a type tag and the raw payload.
type Envelope struct {
	T string             `msgpack:"t"`
	P msgpack.RawMessage `msgpack:"p"`
}

// MsgpackCodec is a compact binary alternative to JSONCodec.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return "msgpack" }

func (MsgpackCodec) Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("trying to encode nil message")
	}
	payload, err := msgpack.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Type(), err)
	}
	return msgpack.Marshal(&Envelope{T: m.Type(), P: payload})
}

func (MsgpackCodec) Decode(b []byte) (Message, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("decode: empty frame")
	}
	var env Envelope
	if err := msgpack.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	m, err := New(env.T)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", env.T, err)
	}
	if len(env.P) > 0 {
		if err := msgpack.Unmarshal(env.P, m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.T, err)
		}
	}
	return m, nil
}

package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec 一条连接的编解码方式
type Codec interface {
	Name() string
	// Binary 为 true 时以二进制帧发送
	Binary() bool
	Encode(v any) ([]byte, error)
	Decode(data []byte) (Message, error)
}

// JSON 默认编解码
var JSON Codec = jsonCodec{}

// Msgpack 出站 msgpack，字段名与 JSON 相同
var Msgpack Codec = msgpackCodec{}

// CodecByName 空字符串与 "json" 返回 JSON
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON, nil
	case "msgpack":
		return Msgpack, nil
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}

type jsonCodec struct{}

func (jsonCodec) Name() string                        { return "json" }
func (jsonCodec) Binary() bool                        { return false }
func (jsonCodec) Encode(v any) ([]byte, error)        { return json.Marshal(v) }
func (jsonCodec) Decode(data []byte) (Message, error) { return Decode(data) }

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return "msgpack" }
func (msgpackCodec) Binary() bool { return true }

func (msgpackCodec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode 接受 msgpack 或 JSON 文本；msgpack 先转成 JSON 再走同一套严格校验
func (msgpackCodec) Decode(data []byte) (Message, error) {
	if len(data) > 0 && data[0] == '{' {
		return Decode(data)
	}
	var raw map[string]any
	if err := msgpack.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	js, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return Decode(js)
}

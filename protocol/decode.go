package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"skirace/physics"
)

// 入站消息的线上形态：指针字段用来区分"缺失"与"零值"
type (
	AuthRequest struct {
		Type     string  `json:"type" jsonschema:"required,enum=auth"`
		Token    *string `json:"token" jsonschema:"required"`
		Mode     *string `json:"mode" jsonschema:"required,enum=quick,enum=race,enum=private"`
		RoomCode *string `json:"roomCode,omitempty"`
	}

	InputRequest struct {
		Type   string      `json:"type" jsonschema:"required,enum=input"`
		Seq    *int64      `json:"seq" jsonschema:"required,minimum=0"`
		Tick   *int64      `json:"tick" jsonschema:"required,minimum=0"`
		DtMs   *float64    `json:"dtMs" jsonschema:"required,minimum=0,maximum=100"`
		Intent *IntentWire `json:"intent" jsonschema:"required"`
	}

	IntentWire struct {
		Steer *float64 `json:"steer" jsonschema:"required,minimum=-1,maximum=1"`
		Brake *int     `json:"brake" jsonschema:"required,enum=0,enum=1"`
		Tuck  *int     `json:"tuck" jsonschema:"required,enum=0,enum=1"`
		Jump  *int     `json:"jump" jsonschema:"required,enum=0,enum=1"`
	}

	PingRequest struct {
		Type       string   `json:"type" jsonschema:"required,enum=ping"`
		ClientTime *float64 `json:"clientTime" jsonschema:"required"`
	}
)

// MaxMessageSize 单条入站消息上限
const MaxMessageSize = 4096

// Decode 解析并校验一条入站 JSON 消息；任何不符都返回包裹 ErrInvalid 的错误
func Decode(data []byte) (Message, error) {
	if len(data) > MaxMessageSize {
		return nil, fmt.Errorf("%w: message too large", ErrInvalid)
	}
	var head struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if head.Type == nil {
		return nil, fmt.Errorf("%w: missing type", ErrInvalid)
	}

	switch *head.Type {
	case TypeAuth:
		var req AuthRequest
		if err := strict(data, &req); err != nil {
			return nil, err
		}
		return req.validate()
	case TypeInput:
		var req InputRequest
		if err := strict(data, &req); err != nil {
			return nil, err
		}
		return req.validate()
	case TypePing:
		var req PingRequest
		if err := strict(data, &req); err != nil {
			return nil, err
		}
		if req.ClientTime == nil {
			return nil, fmt.Errorf("%w: missing clientTime", ErrInvalid)
		}
		return Ping{ClientTime: *req.ClientTime}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalid, *head.Type)
	}
}

// strict 拒绝未知字段与尾随数据
func strict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("%w: trailing data", ErrInvalid)
	}
	return nil
}

func (r AuthRequest) validate() (Message, error) {
	if r.Token == nil {
		return nil, fmt.Errorf("%w: missing token", ErrInvalid)
	}
	if r.Mode == nil {
		return nil, fmt.Errorf("%w: missing mode", ErrInvalid)
	}
	msg := Auth{Token: *r.Token, Mode: *r.Mode}
	if r.RoomCode != nil {
		msg.RoomCode = *r.RoomCode
	}
	return msg, nil
}

func (r InputRequest) validate() (Message, error) {
	switch {
	case r.Seq == nil, r.Tick == nil, r.DtMs == nil, r.Intent == nil:
		return nil, fmt.Errorf("%w: input requires seq, tick, dtMs and intent", ErrInvalid)
	case *r.Seq < 0:
		return nil, fmt.Errorf("%w: seq out of range", ErrInvalid)
	case *r.Tick < 0:
		return nil, fmt.Errorf("%w: tick out of range", ErrInvalid)
	case *r.DtMs < 0 || *r.DtMs > 100:
		return nil, fmt.Errorf("%w: dtMs out of range", ErrInvalid)
	}
	in := r.Intent
	if in.Steer == nil || in.Brake == nil || in.Tuck == nil || in.Jump == nil {
		return nil, fmt.Errorf("%w: intent requires steer, brake, tuck and jump", ErrInvalid)
	}
	if *in.Steer < -1 || *in.Steer > 1 {
		return nil, fmt.Errorf("%w: steer out of range", ErrInvalid)
	}
	brake, err := bit("brake", *in.Brake)
	if err != nil {
		return nil, err
	}
	tuck, err := bit("tuck", *in.Tuck)
	if err != nil {
		return nil, err
	}
	jump, err := bit("jump", *in.Jump)
	if err != nil {
		return nil, err
	}
	return Input{
		Seq:    *r.Seq,
		Tick:   *r.Tick,
		DtMs:   int(math.Round(*r.DtMs)),
		Intent: physics.Intent{Steer: *in.Steer, Brake: brake, Tuck: tuck, Jump: jump},
	}, nil
}

func bit(name string, v int) (bool, error) {
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("%w: %s must be 0 or 1", ErrInvalid, name)
}

// Package protocol 线协议：每条消息是带 type 字段的 JSON 对象。
// 入站消息严格校验，出站消息可用 JSON 或 msgpack 编码。
package protocol

import (
	"errors"
	"fmt"

	"skirace/physics"
)

// 消息类型
const (
	TypeAuth     = "auth"
	TypeInput    = "input"
	TypePing     = "ping"
	TypeWelcome  = "welcome"
	TypeSnapshot = "snapshot"
	TypePong     = "pong"
	TypeError    = "error"
	TypeMatchEnd = "match_end"
)

// 客户端可见的错误码
const (
	CodeInvalidMessage = "invalid_message"
	CodeAuthFailed     = "auth_failed"
	CodeMatchFull      = "match_full"
	CodeMatchNotFound  = "match_not_found"
	CodeInvalidMode    = "invalid_mode"
	CodeRateLimit      = "rate_limit"
	CodeServerError    = "server_error"
)

// ErrInvalid 入站消息不符合协议
var ErrInvalid = errors.New("invalid message")

// Error 携带错误码的错误
type Error struct {
	Code string
	Msg  string
}

func (e *Error) Error() string { return e.Code + ": " + e.Msg }

// Errorf 构造带错误码的错误
func Errorf(code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Code 错误 → 线上错误码
func Code(err error) string {
	var pe *Error
	switch {
	case errors.As(err, &pe):
		return pe.Code
	case errors.Is(err, ErrInvalid):
		return CodeInvalidMessage
	default:
		return CodeServerError
	}
}

// Message 解码后的入站消息
type Message interface {
	Kind() string
}

// Auth 鉴权并请求加入对局
type Auth struct {
	Token    string
	Mode     string
	RoomCode string
}

// Input 一次输入意图
type Input struct {
	Seq    int64
	Tick   int64
	DtMs   int
	Intent physics.Intent
}

// Ping 延迟探测
type Ping struct {
	ClientTime float64
}

func (Auth) Kind() string  { return TypeAuth }
func (Input) Kind() string { return TypeInput }
func (Ping) Kind() string  { return TypePing }

// Welcome 鉴权成功后的回复
type Welcome struct {
	Type         string       `json:"type"`
	PlayerID     string       `json:"playerId"`
	MatchID      string       `json:"matchId"`
	RoomCode     string       `json:"roomCode"`
	Mode         string       `json:"mode"`
	Seed         uint32       `json:"seed"`
	TickRate     int          `json:"tickRate"`
	StartInMs    int64        `json:"startInMs"`
	WorldVersion int          `json:"worldVersion"`
	Players      []PlayerInfo `json:"players"`
}

// PlayerInfo 名单条目
type PlayerInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Pong 回显客户端时间
type Pong struct {
	Type       string  `json:"type"`
	ClientTime float64 `json:"clientTime"`
	ServerTime int64   `json:"serverTime"`
}

// ErrorMessage 错误回复
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewError 错误 → 错误回复
func NewError(err error) ErrorMessage {
	msg := err.Error()
	var pe *Error
	if errors.As(err, &pe) {
		msg = pe.Msg
	}
	return ErrorMessage{Type: TypeError, Code: Code(err), Message: msg}
}

// MatchEnd 对局结束与最终排名
type MatchEnd struct {
	Type         string        `json:"type"`
	FinalResults []FinalResult `json:"finalResults"`
}

// FinalResult 排名中的一行
type FinalResult struct {
	PlayerID    string  `json:"playerId"`
	DisplayName string  `json:"displayName"`
	Placement   int     `json:"placement"`
	Score       int     `json:"score"`
	Distance    float64 `json:"distance"`
}

package match

import (
	"context"
	"time"

	"skirace/physics"
)

// PlayerView 单个玩家的公开状态
type PlayerView struct {
	ID          string
	DisplayName string
	Connected   bool
	Placement   int
	Physics     physics.PlayerState
}

// YetiView 雪怪位置
type YetiView struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// ObjectDelta 世界对象的变化（目前只有拾取物被吃掉）
type ObjectDelta struct {
	ID      string  `json:"id"`
	Type    string  `json:"type"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Removed bool    `json:"removed,omitempty"`
}

// State Tick 序号、服务器时间与每位玩家的公开字段
type State struct {
	Tick       int64
	ServerTime int64 // ms since epoch
	Status     Status
	Players    []PlayerView
	Yeti       *YetiView
}

// Frame 一个 Tick 的产出，交给广播协程
type Frame struct {
	State
	Acks         map[string]int64
	ObjectsDelta []ObjectDelta
	Events       []physics.Event
	// Final 非 nil 表示最后一帧
	Final *MatchResult
}

// Result 结算中的一行
type Result struct {
	PlayerID    string  `json:"playerId"`
	OwnerID     string  `json:"ownerId,omitempty"`
	DisplayName string  `json:"displayName"`
	Placement   int     `json:"placement"`
	Score       int     `json:"score"`
	Distance    float64 `json:"distance"`
	Status      string  `json:"status"`
	Connected   bool    `json:"connected"`
}

// MatchResult 一局的最终结果
type MatchResult struct {
	MatchID string    `json:"matchId"`
	Code    string    `json:"code,omitempty"`
	Mode    string    `json:"mode"`
	Seed    uint32    `json:"seed"`
	Ticks   int64     `json:"ticks"`
	EndedAt time.Time `json:"endedAt"`
	Results []Result  `json:"results"`

	State State `json:"-"`
}

// ResultSink 结算结果的持久化出口；失败只记录日志，不重试
type ResultSink interface {
	SaveResults(ctx context.Context, r MatchResult) error
}

// NopSink 丢弃结果
type NopSink struct{}

func (NopSink) SaveResults(context.Context, MatchResult) error { return nil }

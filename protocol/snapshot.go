package protocol

import (
	"skirace/match"
	"skirace/physics"
)

// Snapshot 每个广播周期发给单个连接的权威状态
type Snapshot struct {
	Type         string              `json:"type"`
	Tick         int64               `json:"tick"`
	ServerTime   int64               `json:"serverTime"`
	Players      []PlayerSnapshot    `json:"players"`
	ObjectsDelta []match.ObjectDelta `json:"objectsDelta,omitempty"`
	You          You                 `json:"you"`
	Events       []physics.Event     `json:"events,omitempty"`
	Yeti         *match.YetiView     `json:"yeti,omitempty"`
}

// You 该连接自己的确认序号；-1 表示尚未确认任何输入
type You struct {
	AckSeq int64 `json:"ackSeq"`
}

// PlayerSnapshot 玩家的公开字段；空中与效果字段只在非零时出现，供客户端预测使用
type PlayerSnapshot struct {
	ID          string  `json:"id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	VX          float64 `json:"vx"`
	VY          float64 `json:"vy"`
	State       string  `json:"state"`
	Distance    float64 `json:"distance"`
	Score       int     `json:"score"`
	IsYou       bool    `json:"isYou,omitempty"`
	VZ          float64 `json:"vz,omitempty"`
	Height      float64 `json:"height,omitempty"`
	Airborne    float64 `json:"airborne,omitempty"`
	LastJumpY   float64 `json:"lastJumpY,omitempty"`
	BoostUntil  int64   `json:"boostUntil,omitempty"`
	ShieldUntil int64   `json:"shieldUntil,omitempty"`
}

// BuildSnapshot 按连接个性化一帧：标记 isYou 并带上该玩家的 ackSeq
func BuildSnapshot(f match.Frame, you string) Snapshot {
	s := Snapshot{
		Type:         TypeSnapshot,
		Tick:         f.Tick,
		ServerTime:   f.ServerTime,
		Players:      make([]PlayerSnapshot, 0, len(f.Players)),
		ObjectsDelta: f.ObjectsDelta,
		You:          You{AckSeq: -1},
		Events:       f.Events,
		Yeti:         f.Yeti,
	}
	if ack, ok := f.Acks[you]; ok {
		s.You.AckSeq = ack
	}
	for _, p := range f.Players {
		if !p.Connected {
			continue
		}
		ps := FromState(p.Physics)
		ps.IsYou = p.ID == you
		s.Players = append(s.Players, ps)
	}
	return s
}

// FromState 物理状态 → 线上形态
func FromState(st physics.PlayerState) PlayerSnapshot {
	return PlayerSnapshot{
		ID:          st.ID,
		X:           st.Position.X,
		Y:           st.Position.Y,
		VX:          st.Velocity.X,
		VY:          st.Velocity.Y,
		State:       st.Status.String(),
		Distance:    st.Distance,
		Score:       st.Score,
		VZ:          st.VZ,
		Height:      st.Height,
		Airborne:    st.Airborne,
		LastJumpY:   st.LastJumpY,
		BoostUntil:  st.Effects[physics.EffectBoost],
		ShieldUntil: st.Effects[physics.EffectShield],
	}
}

// ToState 线上形态 → 物理状态（客户端和解时使用）
func (p PlayerSnapshot) ToState() physics.PlayerState {
	st := physics.PlayerState{
		ID:        p.ID,
		Position:  physics.Vec2{X: p.X, Y: p.Y},
		Velocity:  physics.Vec2{X: p.VX, Y: p.VY},
		Status:    ParseStatus(p.State),
		Distance:  p.Distance,
		Score:     p.Score,
		VZ:        p.VZ,
		Height:    p.Height,
		Airborne:  p.Airborne,
		LastJumpY: p.LastJumpY,
	}
	st.Speed = st.Velocity.Length()
	st.Effects[physics.EffectBoost] = p.BoostUntil
	st.Effects[physics.EffectShield] = p.ShieldUntil
	return st
}

// ParseStatus 未知名称按 skiing 处理
func ParseStatus(name string) physics.Status {
	for _, s := range []physics.Status{physics.Skiing, physics.Jumping, physics.Crashed, physics.Finished} {
		if s.String() == name {
			return s
		}
	}
	return physics.Skiing
}

// NewWelcome 组装欢迎消息
func NewWelcome(playerID string, m *match.Match, startInMs int64, roster []match.RosterEntry, worldVersion int) Welcome {
	w := Welcome{
		Type:         TypeWelcome,
		PlayerID:     playerID,
		MatchID:      m.ID,
		RoomCode:     m.Code,
		Mode:         m.Mode.Name,
		Seed:         m.Seed,
		TickRate:     m.Tuning().TickRate,
		StartInMs:    startInMs,
		WorldVersion: worldVersion,
		Players:      make([]PlayerInfo, 0, len(roster)),
	}
	for _, r := range roster {
		w.Players = append(w.Players, PlayerInfo{ID: r.ID, DisplayName: r.DisplayName})
	}
	return w
}

// NewMatchEnd 结算 → match_end 消息
func NewMatchEnd(res *match.MatchResult) MatchEnd {
	out := MatchEnd{Type: TypeMatchEnd, FinalResults: make([]FinalResult, 0, len(res.Results))}
	for _, r := range res.Results {
		out.FinalResults = append(out.FinalResults, FinalResult{
			PlayerID:    r.PlayerID,
			DisplayName: r.DisplayName,
			Placement:   r.Placement,
			Score:       r.Score,
			Distance:    r.Distance,
		})
	}
	return out
}

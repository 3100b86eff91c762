// Package client 客户端预测与服务器校正。
//
// 与服务器共用同一套物理与世界生成：本地立即执行输入，收到快照后
// 以权威状态为起点重放尚未确认的输入。
package client

import (
	"fmt"
	"math"
	"time"

	"skirace/config"
	"skirace/match"
	"skirace/physics"
	"skirace/protocol"
	"skirace/world"
)

// pending 已发送、尚未被确认的输入
type pending struct {
	input protocol.Input
	dt    float64
	nowMs int64
}

// Predictor 单个本地玩家的预测器，不是并发安全的
type Predictor struct {
	id     string
	tuning config.Tuning
	engine *physics.Engine
	world  *world.Generator
	clock  func() time.Time

	state   physics.PlayerState
	nextSeq int64
	tick    int64
	buf     []pending
	// taken 本地预测中已拾取、服务器尚未确认的对象
	taken map[string]bool
}

// New seed 与 tuning 必须和服务器对局一致
func New(playerID string, seed uint32, mode config.Mode, tuning config.Tuning) *Predictor {
	return &Predictor{
		id:     playerID,
		tuning: tuning,
		engine: physics.NewEngine(tuning, mode.FinishDistance),
		world:  world.NewGenerator(seed, tuning),
		clock:  time.Now,
		state:  physics.NewPlayerState(playerID, tuning.MinSpeed),
		taken:  make(map[string]bool),
	}
}

// FromWelcome 按 welcome 建立预测器；tickRate 以服务器为准
func FromWelcome(w protocol.Welcome, tuning config.Tuning) (*Predictor, error) {
	mode, err := config.LookupMode(w.Mode)
	if err != nil {
		return nil, fmt.Errorf("welcome: %w", err)
	}
	if w.TickRate > 0 {
		tuning.TickRate = w.TickRate
	}
	return New(w.PlayerID, w.Seed, mode, tuning), nil
}

// State 当前预测状态
func (p *Predictor) State() physics.PlayerState { return p.state }

// Pending 未确认的输入，按序号递增
func (p *Predictor) Pending() []protocol.Input {
	out := make([]protocol.Input, len(p.buf))
	for i, b := range p.buf {
		out[i] = b.input
	}
	return out
}

// Apply 分配下一个序号，立即在本地执行并缓存；返回值即要发送的 input
func (p *Predictor) Apply(intent physics.Intent, dt time.Duration) protocol.Input {
	p.tick++
	in := protocol.Input{
		Seq:    p.nextSeq,
		Tick:   p.tick,
		DtMs:   int(math.Round(float64(dt) / float64(time.Millisecond))),
		Intent: intent,
	}
	p.nextSeq++
	b := pending{input: in, dt: p.stepDt(in.DtMs), nowMs: p.clock().UnixMilli()}
	p.step(b)
	p.buf = append(p.buf, b)
	return in
}

// stepDt 与服务器取同样的步长
func (p *Predictor) stepDt(dtMs int) float64 {
	if p.tuning.TrustClientDt && dtMs > 0 {
		return float64(min(dtMs, p.tuning.MaxClientDtMs)) / 1000
	}
	return p.tuning.FixedDt()
}

func (p *Predictor) step(b pending) []physics.Event {
	if p.state.Status.Terminal() {
		return nil
	}
	nearby := p.world.ObjectsNear(p.state.Position.X, p.state.Position.Y, p.tuning.QueryRadius)
	if len(p.taken) > 0 {
		kept := nearby[:0]
		for _, obj := range nearby {
			if !p.taken[obj.ID] {
				kept = append(kept, obj)
			}
		}
		nearby = kept
	}
	evs := p.engine.Step(&p.state, b.input.Intent, b.dt, nearby, b.nowMs)
	for _, ev := range evs {
		if ev.Type == physics.EventPickup {
			p.taken[ev.ObjectID] = true
		}
	}
	return evs
}

// Reconcile 丢弃 seq ≤ ackSeq 的输入，以权威状态为起点重放其余输入。
// 返回校正前后预测位置的偏差。
func (p *Predictor) Reconcile(auth physics.PlayerState, ackSeq int64) float64 {
	before := p.state.Position

	keep := p.buf[:0]
	for _, b := range p.buf {
		if b.input.Seq > ackSeq {
			keep = append(keep, b)
		}
	}
	p.buf = keep

	p.state = auth
	p.state.ID = p.id
	clear(p.taken)
	for _, b := range p.buf {
		p.step(b)
	}
	return physics.Distance(before, p.state.Position)
}

// ApplySnapshot 用快照中的自身状态校正，并同步对象变化；快照中没有自己时返回 false
func (p *Predictor) ApplySnapshot(s protocol.Snapshot) bool {
	p.ApplyDelta(s.ObjectsDelta)
	for _, ps := range s.Players {
		if ps.ID == p.id {
			p.Reconcile(ps.ToState(), s.You.AckSeq)
			return true
		}
	}
	return false
}

// ApplyDelta 在本地世界中消费服务器已移除的对象
func (p *Predictor) ApplyDelta(delta []match.ObjectDelta) {
	for _, d := range delta {
		if !d.Removed {
			continue
		}
		// 确保对象所在区块已生成
		p.world.ObjectsNear(d.X, d.Y, 0)
		p.world.Consume(d.ID)
		delete(p.taken, d.ID)
	}
}

// ObjectsNear 渲染用：本地视角下仍然有效的对象
func (p *Predictor) ObjectsNear(radius float64) []*world.Object {
	nearby := p.world.ObjectsNear(p.state.Position.X, p.state.Position.Y, radius)
	out := nearby[:0]
	for _, obj := range nearby {
		if !p.taken[obj.ID] {
			out = append(out, obj)
		}
	}
	return out
}

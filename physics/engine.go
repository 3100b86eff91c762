// Package physics 单个玩家的逐 Tick 运动学：加减速、转向、跳跃、碰撞与拾取。
package physics

import (
	"math"

	"skirace/config"
	"skirace/world"
)

// Engine 无状态的步进器，调参在构造时固定
type Engine struct {
	tuning         config.Tuning
	finishDistance float64 // 0 表示无终点
}

// NewEngine 创建引擎；finishDistance > 0 时到达该距离即完赛
func NewEngine(tuning config.Tuning, finishDistance float64) *Engine {
	return &Engine{tuning: tuning, finishDistance: finishDistance}
}

// Tuning 引擎使用的调参
func (e *Engine) Tuning() config.Tuning { return e.tuning }

// Step 推进一个玩家一个 Tick，返回本 Tick 的事件。
// 拾取物只产生事件，由调用方在提交结果时将其置为失效。
func (e *Engine) Step(s *PlayerState, in Intent, dt float64, nearby []*world.Object, nowMs int64) []Event {
	if s.Status.Terminal() {
		return nil
	}
	t := e.tuning
	var events []Event

	if s.Status == Skiing && in.Jump {
		e.launch(s, t.JumpImpulse)
	}

	if s.Status == Jumping {
		s.Airborne += dt
		s.VZ -= t.Gravity * dt
		s.Height = math.Max(0, s.Height+s.VZ*dt)
		if s.VZ <= 0 && s.Airborne >= t.MinAirTime {
			if ev, ok := e.land(s); ok {
				events = append(events, ev)
			}
		}
	}

	accel := t.Acceleration
	switch {
	case in.Brake:
		accel = t.BrakeDecel
	case in.Tuck:
		accel += t.TuckBonus
	}
	if !in.Brake && s.Effects.Active(EffectBoost, nowMs) {
		accel += t.BoostBonus
	}

	speed := clamp(s.Velocity.Length()+accel*dt, t.MinSpeed, t.MaxSpeed)

	heading := math.Atan2(s.Velocity.X, s.Velocity.Y)
	if s.Status == Skiing {
		heading = clamp(heading+clamp(in.Steer, -1, 1)*t.TurnRate*dt, -t.MaxHeading, t.MaxHeading)
	}
	s.Velocity = Vec2{X: math.Sin(heading) * speed, Y: math.Cos(heading) * speed}
	s.Velocity = s.Velocity.Mul(t.Friction)

	prevY := s.Position.Y
	s.Position = s.Position.Add(s.Velocity.Mul(dt))
	if gain := s.Position.Y - prevY; gain > 0 {
		s.Distance += gain
		s.Score += int(math.Floor(gain * t.ScorePerDistance))
	}
	s.Speed = s.Velocity.Length()

	if s.Status == Skiing && !s.Effects.Active(EffectShield, nowMs) {
		if ev, ok := e.collide(s, nearby, nowMs); ok {
			events = append(events, ev)
		}
	}

	if s.Status == Skiing && e.finishDistance > 0 && s.Distance >= e.finishDistance {
		s.Status = Finished
	}
	return events
}

func (e *Engine) launch(s *PlayerState, impulse float64) {
	s.Status = Jumping
	s.VZ += impulse
	s.Airborne = 0
	s.LastJumpY = s.Position.Y
}

// land 落地；滞空时间落在技巧窗口内则按比例加分
func (e *Engine) land(s *PlayerState) (Event, bool) {
	t := e.tuning
	air := s.Airborne
	s.Status = Skiing
	s.VZ = 0
	s.Height = 0
	s.Airborne = 0
	if air < t.TrickMinAir || air > t.TrickMaxAir {
		return Event{}, false
	}
	bonus := int(math.Floor(float64(t.TrickScore) * air / t.TrickMaxAir))
	s.Score += bonus
	return Event{Type: EventTrick, PlayerID: s.ID, Score: bonus}, true
}

// collide 只处理第一个命中的对象
func (e *Engine) collide(s *PlayerState, nearby []*world.Object, nowMs int64) (Event, bool) {
	t := e.tuning
	for _, obj := range nearby {
		if !obj.Active || !Overlaps(s.Position, t.PlayerRadius, Vec2{X: obj.X, Y: obj.Y}, obj.Radius) {
			continue
		}
		switch {
		case obj.Kind.IsPickup():
			s.Score += t.PickupScore
			s.Effects.Grant(effectFor(obj.Kind), nowMs+t.EffectDurationMs)
			return Event{Type: EventPickup, PlayerID: s.ID, ObjectID: obj.ID, PickupType: string(obj.Kind)}, true
		case obj.Kind == world.KindRamp:
			if s.Position.Y-s.LastJumpY <= t.RampCooldown {
				continue
			}
			e.launch(s, t.RampImpulse)
			return Event{}, false
		default:
			Crash(s, t.CrashPenalty)
			return Event{Type: EventCollision, PlayerID: s.ID, ObjectID: obj.ID}, true
		}
	}
	return Event{}, false
}

// Crash 摔倒：速度清零并扣分
func Crash(s *PlayerState, penalty int) {
	s.Status = Crashed
	s.Velocity = Vec2{}
	s.Speed = 0
	s.VZ = 0
	s.Height = 0
	s.Score += penalty
}

// Overlaps 圆与圆相交；圆心距恰好等于半径和时不算碰撞
func Overlaps(a Vec2, ra float64, b Vec2, rb float64) bool {
	return Distance(a, b) < ra+rb
}

func effectFor(k world.Kind) EffectKind {
	if k == world.KindPickupShield {
		return EffectShield
	}
	return EffectBoost
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package match

import (
	"skirace/physics"
)

// yeti 无尽模式的追击者：领先者越过阈值后在其身后出现
type yeti struct {
	id  string
	pos physics.Vec2
}

// updateYeti 生成、追击、抓人；返回本 Tick 的事件
func (m *Match) updateYeti(dt float64, nowMs int64) []physics.Event {
	if !m.Mode.YetiEnabled {
		return nil
	}
	t := m.tuning

	if m.yeti == nil {
		leader := m.leader()
		if leader == nil || leader.state.Distance < t.YetiSpawnDistance {
			return nil
		}
		m.yeti = &yeti{
			id:  m.ID + "_yeti",
			pos: physics.Vec2{X: leader.state.Position.X, Y: leader.state.Position.Y - t.YetiBehind},
		}
		m.log.Infof("yeti spawned behind %s at y=%.0f", leader.id, m.yeti.pos.Y)
		return []physics.Event{{Type: physics.EventYetiSpawn, YetiID: m.yeti.id}}
	}

	target := m.nearestSkier()
	if target == nil {
		return nil
	}
	to := target.state.Position.Sub(m.yeti.pos)
	dist := to.Length()
	if stride := t.YetiSpeed * dt; dist <= stride {
		m.yeti.pos = target.state.Position
	} else {
		m.yeti.pos = m.yeti.pos.Add(to.Mul(stride / dist))
	}

	var events []physics.Event
	for _, p := range m.order {
		if !p.connected || p.state.Status != physics.Skiing || p.state.Effects.Active(physics.EffectShield, nowMs) {
			continue
		}
		if physics.Overlaps(m.yeti.pos, t.YetiRadius, p.state.Position, t.PlayerRadius) {
			physics.Crash(&p.state, t.CrashPenalty)
			events = append(events, physics.Event{Type: physics.EventCollision, PlayerID: p.id, ObjectID: m.yeti.id})
		}
	}
	return events
}

// leader 距离最远的在线且未结束的玩家
func (m *Match) leader() *player {
	var best *player
	for _, p := range m.order {
		if !p.connected || p.state.Status.Terminal() {
			continue
		}
		if best == nil || p.state.Distance > best.state.Distance {
			best = p
		}
	}
	return best
}

// nearestSkier 离雪怪最近的在线且未结束的玩家
func (m *Match) nearestSkier() *player {
	var (
		best  *player
		bestD float64
	)
	for _, p := range m.order {
		if !p.connected || p.state.Status.Terminal() {
			continue
		}
		d := physics.Distance(m.yeti.pos, p.state.Position)
		if best == nil || d < bestD {
			best, bestD = p, d
		}
	}
	return best
}

package match

import (
	"context"
	"sort"
	"time"

	"skirace/physics"
)

// Run 对局协程：处理命令、倒计时与 Tick，直到对局结束或 ctx 取消
func (m *Match) Run(ctx context.Context) {
	defer close(m.done)

	var (
		ticker *time.Ticker
		tickC  <-chan time.Time
		timer  *time.Timer
		startC <-chan time.Time
	)
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
		if timer != nil {
			timer.Stop()
		}
	}()

	for m.Status() != Complete {
		select {
		case <-ctx.Done():
			m.end("shutdown")
		case cmd := <-m.inbox:
			switch c := cmd.(type) {
			case joinCmd:
				c.reply <- m.join(c)
			case leaveCmd:
				m.leave(c.id)
			case startCmd:
				c.reply <- m.start()
			case armCmd:
				if m.startsAt.Load() == 0 && m.Status() == Lobby {
					m.startsAt.Store(m.clock().Add(c.d).UnixMilli())
					timer = time.NewTimer(c.d)
					startC = timer.C
					m.log.Infof("countdown armed: %v", c.d)
				}
				c.reply <- m.StartsAt()
			case stateCmd:
				c.reply <- m.snapshot(m.clock())
			case rosterCmd:
				c.reply <- m.roster()
			case endCmd:
				m.end("ended")
			}
		case <-startC:
			startC = nil
			if err := m.start(); err != nil {
				m.log.Debugf("countdown start skipped: %v", err)
			}
		case <-tickC:
			m.step()
		}

		// 进入 ACTIVE 后才开始 Tick
		if tickC == nil && m.Status() == Active {
			ticker = time.NewTicker(m.tuning.TickInterval())
			tickC = ticker.C
		}
	}
}

func (m *Match) join(c joinCmd) joinReply {
	if _, ok := m.players[c.id]; ok {
		return joinReply{err: ErrDuplicate}
	}
	if len(m.order) >= m.tuning.MaxPlayers {
		return joinReply{err: ErrFull}
	}
	p := &player{
		id:          c.id,
		ownerID:     c.owner,
		displayName: c.name,
		state:       physics.NewPlayerState(c.id, m.tuning.MinSpeed),
		lastAck:     -1,
		connected:   true,
	}
	m.players[c.id] = p
	m.order = append(m.order, p)
	m.queues.add(c.id, m.tuning.InputBufferSize)
	m.everJoined = true
	m.connected.Add(1)
	m.size.Add(1)
	m.log.Infof("player joined: %s (%s), players=%d", c.id, c.name, len(m.order))
	return joinReply{roster: m.roster()}
}

func (m *Match) leave(id string) {
	p, ok := m.players[id]
	if !ok || !p.connected {
		return
	}
	p.connected = false
	m.connected.Add(-1)
	m.log.Infof("player left: %s", id)
}

func (m *Match) start() error {
	if m.Status() != Lobby {
		return ErrNotLobby
	}
	m.status.Store(int32(Active))
	m.tick = 0
	if m.startsAt.Load() == 0 {
		m.startsAt.Store(m.clock().UnixMilli())
	}
	m.log.Infof("match started: mode=%s seed=%d players=%d", m.Mode.Name, m.Seed, len(m.order))
	return nil
}

// step 一个 Tick：逐个推进在线玩家 → 雪怪 → 交付帧 → 判定结束
func (m *Match) step() {
	begin := time.Now()
	m.tick++
	now := m.clock()
	nowMs := now.UnixMilli()
	fixed := m.tuning.FixedDt()

	for _, p := range m.order {
		if !p.connected {
			continue
		}
		in, fresh := m.nextInput(p)
		dt := fixed
		if fresh && m.tuning.TrustClientDt && in.DtMs > 0 {
			dt = float64(min(in.DtMs, m.tuning.MaxClientDtMs)) / 1000
		}

		before := p.state
		nearby := m.world.ObjectsNear(p.state.Position.X, p.state.Position.Y, m.tuning.QueryRadius)
		evs := m.engine.Step(&p.state, p.intent, dt, nearby, nowMs)
		if dt != fixed {
			if err := m.engine.Validate(before, p.state, dt); err != nil {
				m.metrics.IncRejected()
				m.log.Warnf("player %s step rejected: %v", p.id, err)
				p.state = before
				evs = m.engine.Step(&p.state, p.intent, fixed, nearby, nowMs)
			}
		}
		m.commit(p, before, evs)
	}
	m.events = append(m.events, m.updateYeti(fixed, nowMs)...)

	over := m.everJoined && m.allTerminal()
	if over || m.tick%int64(m.tuning.BroadcastEvery()) == 0 {
		m.flush(now)
	}
	m.metrics.AddTick(time.Since(begin).Nanoseconds())

	if over {
		m.end("all players terminal")
	}
}

// nextInput 取队列中序号最大的输入作为本 Tick 的意图，其余丢弃。
// "last input wins" 是有意的取舍：响应最新意图，不回放积压。
func (m *Match) nextInput(p *player) (Input, bool) {
	q := m.queues.get(p.id)
	m.scratch = q.drain(m.scratch[:0])
	var (
		best  Input
		found bool
	)
	for _, in := range m.scratch {
		if in.Seq <= p.lastAck {
			m.metrics.IncStale()
			continue
		}
		if !found || in.Seq > best.Seq {
			best = in
			found = true
		}
	}
	if !found {
		// 没有新输入：保持上一意图，但跳跃只触发一次
		p.intent.Jump = false
		return Input{}, false
	}
	p.lastAck = best.Seq
	p.intent = best.Intent
	return best, true
}

// commit 应用步进事件的副作用：拾取物失效、完赛名次
func (m *Match) commit(p *player, before physics.PlayerState, evs []physics.Event) {
	for _, ev := range evs {
		switch ev.Type {
		case physics.EventPickup:
			if m.world.Consume(ev.ObjectID) {
				if obj, ok := m.world.Object(ev.ObjectID); ok {
					m.delta = append(m.delta, ObjectDelta{ID: obj.ID, Type: string(obj.Kind), X: obj.X, Y: obj.Y, Removed: true})
				}
			}
		case physics.EventCollision:
			m.log.Debugf("player %s crashed into %s at y=%.0f", p.id, ev.ObjectID, p.state.Position.Y)
		}
		m.events = append(m.events, ev)
	}
	if before.Status != physics.Finished && p.state.Status == physics.Finished {
		m.finished++
		p.placement = m.finished
		m.events = append(m.events, physics.Event{Type: physics.EventPlayerFinished, PlayerID: p.id, Placement: p.placement})
	}
}

func (m *Match) allTerminal() bool {
	for _, p := range m.order {
		if p.connected && !p.state.Status.Terminal() {
			return false
		}
	}
	return true
}

// flush 把累积的事件与对象变化连同当前状态交给广播协程
func (m *Match) flush(now time.Time) {
	if m.tick == 0 && len(m.events) == 0 && len(m.delta) == 0 {
		return
	}
	acks := make(map[string]int64, len(m.order))
	for _, p := range m.order {
		acks[p.id] = p.lastAck
	}
	m.publish(Frame{State: m.snapshot(now), Acks: acks, ObjectsDelta: m.delta, Events: m.events})
	m.events = nil
	m.delta = nil
}

// publish 非阻塞投递；广播协程跟不上时丢弃最旧帧的状态，保留其事件
func (m *Match) publish(f Frame) {
	for {
		select {
		case m.frames <- f:
			return
		default:
		}
		select {
		case old := <-m.frames:
			// 丢掉的帧里的事件和对象变化只出现一次，并入当前帧
			f.Events = append(append([]physics.Event(nil), old.Events...), f.Events...)
			f.ObjectsDelta = append(append([]ObjectDelta(nil), old.ObjectsDelta...), f.ObjectsDelta...)
			m.metrics.IncFramesDropped()
		default:
		}
	}
}

func (m *Match) snapshot(now time.Time) State {
	st := State{
		Tick:       m.tick,
		ServerTime: now.UnixMilli(),
		Status:     m.Status(),
		Players:    make([]PlayerView, 0, len(m.order)),
	}
	for _, p := range m.order {
		st.Players = append(st.Players, PlayerView{
			ID:          p.id,
			DisplayName: p.displayName,
			Connected:   p.connected,
			Placement:   p.placement,
			Physics:     p.state,
		})
	}
	if m.yeti != nil {
		st.Yeti = &YetiView{ID: m.yeti.id, X: m.yeti.pos.X, Y: m.yeti.pos.Y}
	}
	return st
}

func (m *Match) roster() []RosterEntry {
	out := make([]RosterEntry, 0, len(m.order))
	for _, p := range m.order {
		out = append(out, RosterEntry{ID: p.id, DisplayName: p.displayName})
	}
	return out
}

// end 只执行一次：排名、最后一帧、关闭帧通道、异步落盘
func (m *Match) end(reason string) {
	if m.Status() == Complete {
		return
	}
	now := m.clock()
	m.status.Store(int32(Complete))

	res := &MatchResult{
		MatchID: m.ID,
		Code:    m.Code,
		Mode:    m.Mode.Name,
		Seed:    m.Seed,
		Ticks:   m.tick,
		EndedAt: now,
		Results: m.rank(),
		State:   m.snapshot(now),
	}
	m.final.Store(res)
	m.publish(Frame{State: res.State, Final: res})
	close(m.frames)
	m.log.Infof("match complete (%s): ticks=%d players=%d", reason, m.tick, len(m.order))

	go m.persist(*res)
	if m.onComplete != nil {
		m.onComplete(m)
	}
}

// rank 按分数降序排名（同分按加入顺序），包含已掉线玩家
func (m *Match) rank() []Result {
	ps := make([]*player, len(m.order))
	copy(ps, m.order)
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].state.Score > ps[j].state.Score })
	out := make([]Result, len(ps))
	for i, p := range ps {
		out[i] = Result{
			PlayerID:    p.id,
			OwnerID:     p.ownerID,
			DisplayName: p.displayName,
			Placement:   i + 1,
			Score:       p.state.Score,
			Distance:    p.state.Distance,
			Status:      p.state.Status.String(),
			Connected:   p.connected,
		}
	}
	return out
}

func (m *Match) persist(res MatchResult) {
	defer close(m.saved)
	ctx, cancel := context.WithTimeout(context.Background(), m.saveTO)
	defer cancel()
	if err := m.sink.SaveResults(ctx, res); err != nil {
		m.log.Errorf("save results failed: %v", err)
		return
	}
	m.log.Debugf("results saved: %d entries", len(res.Results))
}

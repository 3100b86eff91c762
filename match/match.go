// Package match 对局：每局一个协程，独占物理状态、世界与 Tick 计数。
// 外部调用通过 inbox 命令串行化到该协程；只有输入队列允许跨协程写入。
package match

import (
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"skirace/config"
	"skirace/physics"
	"skirace/world"
)

var (
	ErrFull          = errors.New("match is full")
	ErrDuplicate     = errors.New("player already in match")
	ErrNotLobby      = errors.New("match is not in lobby")
	ErrClosed        = errors.New("match is closed")
	ErrUnknownPlayer = errors.New("unknown player")
	ErrExists        = errors.New("match id already registered")
)

// Status 对局生命周期：LOBBY → ACTIVE → COMPLETE
type Status int32

const (
	Lobby Status = iota
	Active
	Complete
)

func (s Status) String() string {
	switch s {
	case Lobby:
		return "lobby"
	case Active:
		return "active"
	case Complete:
		return "complete"
	}
	return "unknown"
}

// RosterEntry 欢迎消息中的玩家名单条目
type RosterEntry struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// player 对局协程独占的玩家运行时
type player struct {
	id          string
	ownerID     string
	displayName string
	state       physics.PlayerState
	intent      physics.Intent
	lastAck     int64
	connected   bool
	placement   int
}

// Options 对局构造参数
type Options struct {
	Tuning     config.Tuning
	Sink       ResultSink
	Logger     *zap.SugaredLogger
	Clock      func() time.Time
	Code       string
	OnComplete func(*Match)
	// SaveTimeout 结果落盘的超时
	SaveTimeout time.Duration
}

// Option 修改 Options
type Option func(*Options)

func WithTuning(t config.Tuning) Option      { return func(o *Options) { o.Tuning = t } }
func WithSink(s ResultSink) Option           { return func(o *Options) { o.Sink = s } }
func WithLogger(l *zap.SugaredLogger) Option { return func(o *Options) { o.Logger = l } }
func WithClock(c func() time.Time) Option    { return func(o *Options) { o.Clock = c } }
func WithCode(code string) Option            { return func(o *Options) { o.Code = code } }
func WithOnComplete(fn func(*Match)) Option  { return func(o *Options) { o.OnComplete = fn } }
func WithSaveTimeout(d time.Duration) Option { return func(o *Options) { o.SaveTimeout = d } }
func WithTickRate(n int) Option              { return func(o *Options) { o.Tuning.TickRate = n } }
func WithMaxPlayers(n int) Option            { return func(o *Options) { o.Tuning.MaxPlayers = n } }

func defaultOptions() Options {
	return Options{
		Tuning:      config.DefaultTuning(),
		Sink:        NopSink{},
		Logger:      zap.NewNop().Sugar(),
		Clock:       time.Now,
		SaveTimeout: 10 * time.Second,
	}
}

// Match 一局比赛
type Match struct {
	ID   string
	Code string
	Seed uint32
	Mode config.Mode

	tuning     config.Tuning
	engine     *physics.Engine
	world      *world.Generator
	log        *zap.SugaredLogger
	clock      func() time.Time
	sink       ResultSink
	onComplete func(*Match)
	saveTO     time.Duration
	metrics    *Metrics

	// 跨协程可读
	status    atomic.Int32
	connected atomic.Int32
	size      atomic.Int32
	startsAt  atomic.Int64
	final     atomic.Pointer[MatchResult]

	inbox  chan any
	frames chan Frame
	done   chan struct{}
	saved  chan struct{}

	// 输入队列：网络协程写、对局协程读；map 本身只在 Join 时增长
	queues *queueSet

	// 以下字段只由对局协程访问
	players    map[string]*player
	order      []*player
	tick       int64
	everJoined bool
	finished   int
	yeti       *yeti
	scratch    []Input
	events     []physics.Event
	delta      []ObjectDelta
}

// New 创建对局；需调用 Run 启动对局协程
func New(id string, mode config.Mode, seed uint32, opts ...Option) *Match {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop().Sugar()
	}
	if o.Sink == nil {
		o.Sink = NopSink{}
	}
	m := &Match{
		ID:         id,
		Code:       o.Code,
		Seed:       seed,
		Mode:       mode,
		tuning:     o.Tuning,
		engine:     physics.NewEngine(o.Tuning, mode.FinishDistance),
		world:      world.NewGenerator(seed, o.Tuning),
		log:        o.Logger.With("match", id),
		clock:      o.Clock,
		sink:       o.Sink,
		onComplete: o.OnComplete,
		saveTO:     o.SaveTimeout,
		metrics:    &Metrics{},
		inbox:      make(chan any),
		frames:     make(chan Frame, 8),
		done:       make(chan struct{}),
		saved:      make(chan struct{}),
		queues:     newQueueSet(),
		players:    make(map[string]*player),
	}
	return m
}

// Tuning 对局使用的调参
func (m *Match) Tuning() config.Tuning { return m.tuning }

// Status 当前状态（任意协程可读）
func (m *Match) Status() Status { return Status(m.status.Load()) }

// Connected 在线玩家数
func (m *Match) Connected() int { return int(m.connected.Load()) }

// Metrics 运行指标
func (m *Match) Metrics() *Metrics { return m.metrics }

// Frames Tick → 广播的交接通道；对局结束后关闭
func (m *Match) Frames() <-chan Frame { return m.frames }

// Done 对局协程退出后关闭
func (m *Match) Done() <-chan struct{} { return m.done }

// Saved 结果写入（或写入失败）后关闭
func (m *Match) Saved() <-chan struct{} { return m.saved }

// StartsAt 倒计时结束时间；未设置时返回零值
func (m *Match) StartsAt() time.Time {
	ms := m.startsAt.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// HasCapacity 粗略判断是否还能加人（匹配时扫描用，最终以 AddPlayer 为准）
func (m *Match) HasCapacity() bool {
	return m.Status() != Complete && int(m.size.Load()) < m.tuning.MaxPlayers
}

type joinCmd struct {
	id, owner, name string
	reply           chan joinReply
}

type joinReply struct {
	roster []RosterEntry
	err    error
}

type leaveCmd struct{ id string }

type startCmd struct{ reply chan error }

type armCmd struct {
	d     time.Duration
	reply chan time.Time
}

type stateCmd struct{ reply chan State }

type rosterCmd struct{ reply chan []RosterEntry }

type endCmd struct{}

// send 投递命令；对局协程已退出时返回 false
func (m *Match) send(cmd any) bool {
	select {
	case m.inbox <- cmd:
		return true
	case <-m.done:
		return false
	}
}

// Join 加入玩家，返回加入后的名单
func (m *Match) Join(id, ownerID, displayName string) ([]RosterEntry, error) {
	reply := make(chan joinReply, 1)
	if !m.send(joinCmd{id: id, owner: ownerID, name: displayName, reply: reply}) {
		return nil, ErrClosed
	}
	r := <-reply
	return r.roster, r.err
}

// AddPlayer 容量已满或 id 重复时返回 false
func (m *Match) AddPlayer(id, ownerID, displayName string) bool {
	_, err := m.Join(id, ownerID, displayName)
	return err == nil
}

// RemovePlayer 标记掉线，槽位保留到结算
func (m *Match) RemovePlayer(id string) {
	m.send(leaveCmd{id: id})
}

// QueueInput 写入玩家的输入队列；除玩家存在外不做校验
func (m *Match) QueueInput(id string, in Input) error {
	q := m.queues.get(id)
	if q == nil {
		return ErrUnknownPlayer
	}
	if q.push(in) {
		m.metrics.IncDropped()
	}
	m.metrics.IncAccepted()
	return nil
}

// Start 仅在 LOBBY 有效
func (m *Match) Start() error {
	reply := make(chan error, 1)
	if !m.send(startCmd{reply: reply}) {
		return ErrClosed
	}
	return <-reply
}

// ArmStart 设定倒计时，到点自动 Start；重复调用返回首次设定的开始时间
func (m *Match) ArmStart(d time.Duration) time.Time {
	reply := make(chan time.Time, 1)
	if !m.send(armCmd{d: d, reply: reply}) {
		return m.StartsAt()
	}
	return <-reply
}

// End 结束对局并等待对局协程退出；可重复调用
func (m *Match) End() {
	m.send(endCmd{})
	<-m.done
}

// State 当前权威状态投影；对局结束后返回最终状态
func (m *Match) State() State {
	reply := make(chan State, 1)
	if m.send(stateCmd{reply: reply}) {
		return <-reply
	}
	if o := m.final.Load(); o != nil {
		return o.State
	}
	return State{Status: m.Status()}
}

// Roster 当前名单（含已掉线玩家）
func (m *Match) Roster() []RosterEntry {
	reply := make(chan []RosterEntry, 1)
	if m.send(rosterCmd{reply: reply}) {
		return <-reply
	}
	return nil
}

// Result 结算结果；对局结束前返回 nil
func (m *Match) Result() *MatchResult { return m.final.Load() }

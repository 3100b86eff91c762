package physics

import "math"

// Vec2 二维向量
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add 向量加
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{X: v.X + o.X, Y: v.Y + o.Y} }

// Sub 向量减
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{X: v.X - o.X, Y: v.Y - o.Y} }

// Mul 数乘
func (v Vec2) Mul(s float64) Vec2 { return Vec2{X: v.X * s, Y: v.Y * s} }

// Length 模长
func (v Vec2) Length() float64 { return math.Hypot(v.X, v.Y) }

// Distance 两点距离
func Distance(a, b Vec2) float64 { return b.Sub(a).Length() }

// Status 玩家运动状态
type Status uint8

const (
	Skiing Status = iota
	Jumping
	Crashed
	Finished
)

func (s Status) String() string {
	switch s {
	case Skiing:
		return "skiing"
	case Jumping:
		return "jumping"
	case Crashed:
		return "crashed"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Terminal 摔倒或完赛后不再变化
func (s Status) Terminal() bool { return s == Crashed || s == Finished }

// EffectKind 拾取物带来的限时效果
type EffectKind uint8

const (
	EffectBoost EffectKind = iota
	EffectShield
	effectCount
)

func (k EffectKind) String() string {
	switch k {
	case EffectBoost:
		return "boost"
	case EffectShield:
		return "shield"
	default:
		return "unknown"
	}
}

// Effects 每种效果一个到期时间（毫秒时间戳，0 表示未激活），各自独立过期
type Effects [effectCount]int64

// Grant 设置（覆盖）某效果的到期时间
func (e *Effects) Grant(k EffectKind, untilMs int64) {
	if k < effectCount {
		e[k] = untilMs
	}
}

// Active 在 nowMs 时刻是否生效
func (e *Effects) Active(k EffectKind, nowMs int64) bool {
	return k < effectCount && e[k] > nowMs
}

// PlayerState 单个玩家的权威运动状态，只由对局 Tick 协程修改
type PlayerState struct {
	ID        string  `json:"id"`
	Position  Vec2    `json:"position"`
	Velocity  Vec2    `json:"velocity"`
	Status    Status  `json:"state"`
	Distance  float64 `json:"distance"`
	Score     int     `json:"score"`
	Speed     float64 `json:"speed"`
	Airborne  float64 `json:"airborneTime"` // 秒
	VZ        float64 `json:"vz"`           // 跳跃轴速度
	Height    float64 `json:"height"`
	Effects   Effects `json:"effects"`
	LastJumpY float64 `json:"lastJumpY"`
}

// NewPlayerState 原点出发、最低速度向下坡滑行
func NewPlayerState(id string, minSpeed float64) PlayerState {
	return PlayerState{
		ID:       id,
		Velocity: Vec2{Y: minSpeed},
		Speed:    minSpeed,
		Status:   Skiing,
	}
}

// Intent 玩家某一 Tick 的操作意图
type Intent struct {
	Steer float64 // [-1,1]
	Brake bool
	Tuck  bool
	Jump  bool
}

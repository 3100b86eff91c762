package config

import "time"

// Tuning 模拟参数（不可变值），在创建世界 / 物理引擎 / 对局时显式传入
// 注意：影响世界生成的字段（Chunk*、Density*、PathWidth、StartClearance）是与客户端共享的契约，
// 修改它们必须同步提升 WorldVersion。
type Tuning struct {
	// 对局节奏
	TickRate        int `json:"tickRate"`
	BroadcastRate   int `json:"broadcastRate"`
	MaxPlayers      int `json:"maxPlayers"`
	InputBufferSize int `json:"inputBufferSize"`

	// 世界生成
	ChunkSize      float64 `json:"chunkSize"`
	PathWidth      float64 `json:"pathWidth"`
	StartClearance float64 `json:"startClearance"`
	DensityTree    float64 `json:"densityTree"`
	DensityRock    float64 `json:"densityRock"`
	DensityStump   float64 `json:"densityStump"`
	DensityRamp    float64 `json:"densityRamp"`
	DensityPickup  float64 `json:"densityPickup"`
	QueryRadius    float64 `json:"queryRadius"`

	// 运动学（像素 / 秒）
	PlayerRadius     float64 `json:"playerRadius"`
	Acceleration     float64 `json:"acceleration"`
	TuckBonus        float64 `json:"tuckBonus"`
	BoostBonus       float64 `json:"boostBonus"`
	BrakeDecel       float64 `json:"brakeDecel"` // 负值，绝对值大于 Acceleration
	MinSpeed         float64 `json:"minSpeed"`
	MaxSpeed         float64 `json:"maxSpeed"`
	TurnRate         float64 `json:"turnRate"`   // 弧度 / 秒
	MaxHeading       float64 `json:"maxHeading"` // 相对正下坡方向的最大偏角
	Friction         float64 `json:"friction"`   // 每 Tick 的乘性衰减，< 1
	JumpImpulse      float64 `json:"jumpImpulse"`
	RampImpulse      float64 `json:"rampImpulse"`
	RampCooldown     float64 `json:"rampCooldown"`
	Gravity          float64 `json:"gravity"`
	MinAirTime       float64 `json:"minAirTime"`
	TrickMinAir      float64 `json:"trickMinAir"`
	TrickMaxAir      float64 `json:"trickMaxAir"`
	TrickScore       int     `json:"trickScore"`
	ScorePerDistance float64 `json:"scorePerDistance"`
	PickupScore      int     `json:"pickupScore"`
	CrashPenalty     int     `json:"crashPenalty"`
	EffectDurationMs int64   `json:"effectDurationMs"`

	// 反作弊容差
	SpeedTolerance float64 `json:"speedTolerance"`
	AccelMargin    float64 `json:"accelMargin"`
	TravelMargin   float64 `json:"travelMargin"`
	TrustClientDt  bool    `json:"trustClientDt"`
	MaxClientDtMs  int     `json:"maxClientDtMs"`

	// 雪怪
	YetiSpawnDistance float64 `json:"yetiSpawnDistance"`
	YetiBehind        float64 `json:"yetiBehind"`
	YetiSpeed         float64 `json:"yetiSpeed"`
	YetiRadius        float64 `json:"yetiRadius"`
}

// WorldVersion 世界生成算法版本（RNG + 区块种子 + 对象 ID 公式）
const WorldVersion = 1

// DefaultTuning 默认调参
func DefaultTuning() Tuning {
	return Tuning{
		TickRate:        20,
		BroadcastRate:   20,
		MaxPlayers:      8,
		InputBufferSize: 32,

		ChunkSize:      512,
		PathWidth:      120,
		StartClearance: 300,
		DensityTree:    0.00008,
		DensityRock:    0.00003,
		DensityStump:   0.00002,
		DensityRamp:    0.00001,
		DensityPickup:  0.000008,
		QueryRadius:    200,

		PlayerRadius:     16,
		Acceleration:     200,
		TuckBonus:        150,
		BoostBonus:       200,
		BrakeDecel:       -400,
		MinSpeed:         100,
		MaxSpeed:         800,
		TurnRate:         2.5,
		MaxHeading:       1.4,
		Friction:         0.99,
		JumpImpulse:      300,
		RampImpulse:      450,
		RampCooldown:     200,
		Gravity:          600,
		MinAirTime:       0.3,
		TrickMinAir:      0.4,
		TrickMaxAir:      1.5,
		TrickScore:       200,
		ScorePerDistance: 1,
		PickupScore:      50,
		CrashPenalty:     -100,
		EffectDurationMs: 5000,

		SpeedTolerance: 1.1,
		AccelMargin:    1.5,
		TravelMargin:   1.5,
		TrustClientDt:  false,
		MaxClientDtMs:  100,

		YetiSpawnDistance: 6000,
		YetiBehind:        600,
		YetiSpeed:         700,
		YetiRadius:        24,
	}
}

// TickInterval 每个 Tick 的时长
func (t Tuning) TickInterval() time.Duration {
	if t.TickRate <= 0 {
		return time.Second / 20
	}
	return time.Second / time.Duration(t.TickRate)
}

// FixedDt 以秒表示的固定步长
func (t Tuning) FixedDt() float64 {
	return t.TickInterval().Seconds()
}

// BroadcastEvery 每隔多少个 Tick 广播一次
func (t Tuning) BroadcastEvery() int {
	if t.BroadcastRate <= 0 || t.BroadcastRate >= t.TickRate {
		return 1
	}
	return t.TickRate / t.BroadcastRate
}

// MaxAcceleration 单位时间内速度的最大可能变化
func (t Tuning) MaxAcceleration() float64 {
	up := t.Acceleration + t.TuckBonus + t.BoostBonus
	down := -t.BrakeDecel
	if down > up {
		return down
	}
	return up
}

package world

import (
	"fmt"
	"math"
)

// Kind 世界对象类别
type Kind string

const (
	KindTree         Kind = "tree"
	KindRock         Kind = "rock"
	KindStump        Kind = "stump"
	KindRamp         Kind = "ramp"
	KindPickupBoost  Kind = "pickup_boost"
	KindPickupShield Kind = "pickup_shield"
)

// pickupKinds 顺序参与随机抽取，不可调整
var pickupKinds = [...]Kind{KindPickupBoost, KindPickupShield}

// IsPickup 是否为拾取物
func (k Kind) IsPickup() bool {
	return k == KindPickupBoost || k == KindPickupShield
}

// IsObstacle 是否为会导致摔倒的障碍
func (k Kind) IsObstacle() bool {
	return k == KindTree || k == KindRock || k == KindStump
}

// Object 静态世界对象；障碍永久存在，拾取物被吃掉后 Active=false（不删除）
type Object struct {
	ID     string  `json:"id"`
	Kind   Kind    `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"r"`
	Active bool    `json:"active"`
}

// ObjectID 由类别与取整坐标推导 ID，服务端与客户端独立生成时得到相同结果
func ObjectID(kind Kind, x, y float64) string {
	return fmt.Sprintf("%s_%d_%d", kind, int64(jsRound(x)), int64(jsRound(y)))
}

// jsRound 与 JS Math.round 相同：.5 向正无穷取整
func jsRound(v float64) float64 {
	return math.Floor(v + 0.5)
}

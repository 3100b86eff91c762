package physics

import "fmt"

// 反作弊违规类型
const (
	ViolationSpeed        = "speed_too_high"
	ViolationAcceleration = "acceleration_too_high"
	ViolationTeleport     = "teleportation"
)

// Violation 描述一次越界
type Violation struct {
	Kind  string
	Value float64
	Limit float64
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %.2f > %.2f", v.Kind, v.Value, v.Limit)
}

// Validate 检查 old -> new 在 dt 内是否物理可达；不可达时返回 *Violation
func (e *Engine) Validate(old, new PlayerState, dt float64) error {
	t := e.tuning

	speed := new.Velocity.Length()
	if limit := t.MaxSpeed * t.SpeedTolerance; speed > limit {
		return &Violation{Kind: ViolationSpeed, Value: speed, Limit: limit}
	}

	// 摔倒会让速度瞬间归零，不做加速度检查
	if !(new.Status == Crashed && old.Status != Crashed) {
		delta := speed - old.Velocity.Length()
		if delta < 0 {
			delta = -delta
		}
		limit := (t.MaxAcceleration()*dt + t.MaxSpeed*(1-t.Friction)) * t.AccelMargin
		if delta > limit {
			return &Violation{Kind: ViolationAcceleration, Value: delta, Limit: limit}
		}
	}

	travel := Distance(old.Position, new.Position)
	if limit := t.MaxSpeed * t.SpeedTolerance * dt * t.TravelMargin; travel > limit {
		return &Violation{Kind: ViolationTeleport, Value: travel, Limit: limit}
	}
	return nil
}

package config

import (
	"fmt"
	"time"
)

// Mode 对局模式
type Mode struct {
	Name           string        `json:"name"`
	Public         bool          `json:"public"`         // 是否参与快速匹配
	Countdown      time.Duration `json:"countdown"`      // 首位玩家加入后到开始模拟的等待
	FinishDistance float64       `json:"finishDistance"` // 0 表示无尽模式
	YetiEnabled    bool          `json:"yetiEnabled"`
}

const (
	ModeQuick   = "quick"
	ModeRace    = "race"
	ModePrivate = "private"
)

var modes = map[string]Mode{
	ModeQuick:   {Name: ModeQuick, Public: true, Countdown: 3 * time.Second, YetiEnabled: true},
	ModeRace:    {Name: ModeRace, Public: true, Countdown: 5 * time.Second, FinishDistance: 20000},
	ModePrivate: {Name: ModePrivate, Public: false, Countdown: 15 * time.Second, YetiEnabled: true},
}

// LookupMode 按名称查找模式
func LookupMode(name string) (Mode, error) {
	m, ok := modes[name]
	if !ok {
		return Mode{}, fmt.Errorf("unknown mode %q", name)
	}
	return m, nil
}

// Modes 返回全部模式（用于管理接口）
func Modes() []Mode {
	return []Mode{modes[ModeQuick], modes[ModeRace], modes[ModePrivate]}
}

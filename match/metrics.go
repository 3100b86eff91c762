package match

import (
	"sync/atomic"
)

// Metrics 记录对局运行期的关键指标（用于监控与调试）
type Metrics struct {
	TickCount         int64 // 统计的 Tick 次数
	InputsAccepted    int64 // 入队的输入数
	InputsDropped     int64 // 队列满被挤掉的输入数
	StaleInputs       int64 // 序列号不超过已确认值、被忽略的输入数
	AntiCheatRejected int64 // 未通过反作弊校验而回退的步进数
	FramesDropped     int64 // 广播跟不上被丢弃的帧数
	TotalTickNs       int64 // Tick 累计耗时（纳秒）
}

func (m *Metrics) IncAccepted()      { atomic.AddInt64(&m.InputsAccepted, 1) }
func (m *Metrics) IncDropped()       { atomic.AddInt64(&m.InputsDropped, 1) }
func (m *Metrics) IncStale()         { atomic.AddInt64(&m.StaleInputs, 1) }
func (m *Metrics) IncRejected()      { atomic.AddInt64(&m.AntiCheatRejected, 1) }
func (m *Metrics) IncFramesDropped() { atomic.AddInt64(&m.FramesDropped, 1) }
func (m *Metrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":         tick,
		"inputs_accepted":    atomic.LoadInt64(&m.InputsAccepted),
		"inputs_dropped":     atomic.LoadInt64(&m.InputsDropped),
		"stale_inputs":       atomic.LoadInt64(&m.StaleInputs),
		"anticheat_rejected": atomic.LoadInt64(&m.AntiCheatRejected),
		"frames_dropped":     atomic.LoadInt64(&m.FramesDropped),
		"avg_tick_ms":        avgMs,
	}
}

package server

import "time"

// rateWindow 每秒固定窗口计数；窗口内首次超限时提示一次
type rateWindow struct {
	start  time.Time
	count  int
	warned bool
}

// allow 返回是否放行，以及本次是否需要回错误
func (w *rateWindow) allow(now time.Time, limit int) (ok, warn bool) {
	if limit <= 0 {
		return true, false
	}
	if now.Sub(w.start) >= time.Second {
		w.start = now
		w.count = 0
		w.warned = false
	}
	w.count++
	if w.count <= limit {
		return true, false
	}
	if w.warned {
		return false, false
	}
	w.warned = true
	return false, true
}

package server

import (
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	"skirace/match"
	"skirace/protocol"
)

// Hub 一局的广播循环：读取 Tick 交付的帧，给每个连接生成个性化快照
type Hub struct {
	m   *match.Match
	log *zap.SugaredLogger

	mu    deadlock.RWMutex
	conns map[string]*ClientConn // playerID → 连接

	done chan struct{}
}

func newHub(m *match.Match, log *zap.SugaredLogger) *Hub {
	return &Hub{
		m:     m,
		log:   log.With("match", m.ID),
		conns: make(map[string]*ClientConn),
		done:  make(chan struct{}),
	}
}

// Attach 之后的帧会发给该连接
func (h *Hub) Attach(playerID string, c *ClientConn) {
	h.mu.Lock()
	h.conns[playerID] = c
	h.mu.Unlock()
}

// Detach 停止向该玩家发送
func (h *Hub) Detach(playerID string) {
	h.mu.Lock()
	delete(h.conns, playerID)
	h.mu.Unlock()
}

// Len 已挂载的连接数
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Done 广播循环退出后关闭
func (h *Hub) Done() <-chan struct{} { return h.done }

// run 帧通道关闭（对局结束）后退出
func (h *Hub) run() {
	defer close(h.done)
	for f := range h.m.Frames() {
		if f.Final != nil {
			h.finish(f.Final)
			continue
		}
		h.broadcast(f)
	}
	h.log.Debugf("broadcast loop stopped")
}

func (h *Hub) broadcast(f match.Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for pid, c := range h.conns {
		if !c.Enqueue(protocol.BuildSnapshot(f, pid)) {
			h.log.Debugf("snapshot %d dropped for %s", f.Tick, pid)
		}
	}
}

// finish 发送 match_end 后关闭所有连接
func (h *Hub) finish(res *match.MatchResult) {
	msg := protocol.NewMatchEnd(res)
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[string]*ClientConn)
	h.mu.Unlock()
	for _, c := range conns {
		c.Finish(msg)
	}
	h.log.Infof("match_end sent to %d connections", len(conns))
}

// Package server 接入层：WebSocket 与 yamux 连接、消息分发、广播、心跳以及管理接口。
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/sasha-s/go-deadlock"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"skirace/config"
	"skirace/match"
)

// Server 持有注册表与所有连接
type Server struct {
	cfg   config.Server
	reg   *match.Registry
	ident IdentityResolver
	log   *zap.SugaredLogger
	clock func() time.Time

	mu    deadlock.Mutex
	hubs  map[string]*Hub
	conns map[*ClientConn]struct{}

	wg sync.WaitGroup
}

// New ident 为 nil 时使用配置中的静态 token 表
func New(cfg config.Server, reg *match.Registry, ident IdentityResolver, log *zap.SugaredLogger) *Server {
	if ident == nil {
		ident = NewTokenResolver(cfg.Tokens)
	}
	if log == nil {
		log = Log
	}
	return &Server{
		cfg:   cfg,
		reg:   reg,
		ident: ident,
		log:   log,
		clock: time.Now,
		hubs:  make(map[string]*Hub),
		conns: make(map[*ClientConn]struct{}),
	}
}

// Handler 路由：/ws、管理与监控接口、静态资源
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWS)
	mux.HandleFunc("/admin/config", s.HandleAdminConfig)
	mux.HandleFunc("/admin/matches", s.HandleAdminMatches)
	mux.HandleFunc("/metrics", s.HandleMetrics)
	mux.HandleFunc("/protocol/schema", s.HandleSchema)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	if s.cfg.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.cfg.StaticDir)))
	}
	return mux
}

// ServeConn 在当前协程运行读循环，返回时连接已关闭且玩家已离开对局
func (s *Server) ServeConn(c *ClientConn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	defer func() {
		s.disconnect(c)
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		s.wg.Done()
	}()

	go c.writePump()
	s.log.Debugf("conn %s opened from %s", c.ID, c.t.RemoteAddr())

	for {
		data, err := c.t.ReadMessage()
		if err != nil {
			s.log.Debugf("conn %s read: %v", c.ID, err)
			return
		}
		c.markAlive()
		msg, err := c.codec.Decode(data)
		if err != nil {
			c.Enqueue(newErrorMessage(err))
			continue
		}
		if !s.dispatch(c, msg) {
			c.awaitFlush(writeWait)
			return
		}
	}
}

// disconnect 离开对局并停止向该连接广播
func (s *Server) disconnect(c *ClientConn) {
	if c.hub != nil {
		c.hub.Detach(c.playerID)
	}
	if c.match != nil {
		c.match.RemovePlayer(c.playerID)
		s.log.Infof("player %s disconnected from match %s", c.playerID, c.match.ID)
	}
	c.Close()
}

// hubFor 每局只启动一个广播循环
func (s *Server) hubFor(m *match.Match) *Hub {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.hubs[m.ID]; ok {
		return h
	}
	h := newHub(m, s.log)
	s.hubs[m.ID] = h
	go func() {
		h.run()
		s.mu.Lock()
		if s.hubs[m.ID] == h {
			delete(s.hubs, m.ID)
		}
		s.mu.Unlock()
	}()
	return h
}

// Heartbeat 每个周期：上一次探测后没有任何回应的连接被关闭，其余发新探测
func (s *Server) Heartbeat(ctx context.Context) {
	if s.cfg.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.probe()
		}
	}
}

func (s *Server) probe() {
	s.mu.Lock()
	conns := make([]*ClientConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if !c.alive.Swap(false) {
			s.log.Infof("conn %s missed heartbeat, closing", c.ID)
			c.Close()
			continue
		}
		if err := c.t.Probe(c.markAlive); err != nil {
			s.log.Debugf("conn %s probe: %v", c.ID, err)
			c.Close()
		}
	}
}

// Shutdown 关闭所有连接并等待读循环退出
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	var err error
	for c := range s.conns {
		c.closeOnce.Do(func() {
			close(c.closed)
			err = multierr.Append(err, c.t.Close())
		})
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		err = multierr.Append(err, ctx.Err())
	}
	return err
}

// Registry 注册表（供 main 与测试使用）
func (s *Server) Registry() *match.Registry { return s.reg }

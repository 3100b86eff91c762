package server

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"skirace/match"
	"skirace/protocol"
)

const writeWait = 5 * time.Second

// Transport 一条双向消息通道（WebSocket 或 yamux 流）
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(binary bool, data []byte) error
	// Probe 发送一次存活探测；对端应答时调用 onAlive
	Probe(onAlive func()) error
	Close() error
	RemoteAddr() string
}

type outbound struct {
	data   []byte
	binary bool
	last   bool // 写完后关闭连接
}

// ClientConn 一个玩家连接：读协程解析入站消息，写协程独占底层写
type ClientConn struct {
	ID    string
	t     Transport
	codec protocol.Codec

	send      chan outbound
	closed    chan struct{}
	flushed   chan struct{}
	closeOnce sync.Once
	alive     atomic.Bool

	// 以下字段只由读协程访问
	playerID string
	match    *match.Match
	hub      *Hub
	limiter  rateWindow
}

func NewClientConn(t Transport, codec protocol.Codec, sendBuffer int) *ClientConn {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	c := &ClientConn{
		ID:      uuid.NewString(),
		t:       t,
		codec:   codec,
		send:    make(chan outbound, sendBuffer),
		closed:  make(chan struct{}),
		flushed: make(chan struct{}),
	}
	c.alive.Store(true)
	return c
}

// Enqueue 编码后压入发送队列（非阻塞，满则丢弃），返回是否入队
func (c *ClientConn) Enqueue(v any) bool {
	return c.enqueue(v, false)
}

// Finish 发送最后一条消息后关闭连接
func (c *ClientConn) Finish(v any) bool {
	return c.enqueue(v, true)
}

func (c *ClientConn) enqueue(v any, last bool) bool {
	b, err := c.codec.Encode(v)
	if err != nil {
		Log.Errorf("encode %T: %v", v, err)
		return false
	}
	msg := outbound{data: b, binary: c.codec.Binary(), last: last}
	select {
	case <-c.closed:
		return false
	default:
	}
	if last {
		// 最后一条必须送达：阻塞到入队或连接关闭
		select {
		case c.send <- msg:
			return true
		case <-c.closed:
			return false
		}
	}
	select {
	case c.send <- msg:
		return true
	default:
		// 为了实时性，丢弃新消息（防止阻塞广播）
		return false
	}
}

// Close 关闭底层连接，写协程随之退出；可重复调用
func (c *ClientConn) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.t.Close()
	})
}

// Done 连接关闭后关闭
func (c *ClientConn) Done() <-chan struct{} { return c.closed }

// awaitFlush 等写协程把最后一条消息写完
func (c *ClientConn) awaitFlush(timeout time.Duration) {
	select {
	case <-c.flushed:
	case <-time.After(timeout):
	}
}

func (c *ClientConn) markAlive() { c.alive.Store(true) }

// writePump 独立协程，负责从 send 队列写出
func (c *ClientConn) writePump() {
	defer close(c.flushed)
	defer c.Close()
	for {
		select {
		case msg := <-c.send:
			if err := c.t.WriteMessage(msg.binary, msg.data); err != nil {
				return
			}
			if msg.last {
				return
			}
		case <-c.closed:
			return
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 允许所有来源（生产环境需严格限制）
		return true
	},
}

// HandleWS WebSocket 接入：/ws?codec=msgpack 切换出站编码
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	codec, err := protocol.CodecByName(r.URL.Query().Get("codec"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("upgrade error: %v", err)
		return
	}
	t := &wsTransport{ws: ws}
	c := NewClientConn(t, codec, s.cfg.SendBuffer)
	ws.SetReadLimit(protocol.MaxMessageSize)
	ws.SetPongHandler(func(string) error {
		c.markAlive()
		return nil
	})
	s.ServeConn(c)
}

// wsTransport gorilla 连接：单读单写，WriteControl 可并发
type wsTransport struct {
	ws *websocket.Conn
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, b, err := t.ws.ReadMessage()
	return b, err
}

func (t *wsTransport) WriteMessage(binary bool, data []byte) error {
	kind := websocket.TextMessage
	if binary {
		kind = websocket.BinaryMessage
	}
	_ = t.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return t.ws.WriteMessage(kind, data)
}

// Probe 应答由 HandleWS 安装的 pong handler 处理
func (t *wsTransport) Probe(func()) error {
	return t.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (t *wsTransport) Close() error { return t.ws.Close() }

func (t *wsTransport) RemoteAddr() string { return t.ws.RemoteAddr().String() }

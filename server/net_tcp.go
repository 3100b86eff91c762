package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/hashicorp/yamux"
	"github.com/sasha-s/go-deadlock"

	"skirace/protocol"
)

// ServeTCP 接受 TCP 连接，每条连接一个 yamux 会话，每个流一位玩家（换行分隔的 JSON）
func (s *Server) ServeTCP(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go s.serveSession(ctx, conn)
	}
}

func (s *Server) serveSession(ctx context.Context, conn net.Conn) {
	cfg := yamux.DefaultConfig()
	if s.cfg.PingInterval > 0 {
		cfg.KeepAliveInterval = s.cfg.PingInterval
	}
	cfg.LogOutput = io.Discard
	sess, err := yamux.Server(conn, cfg)
	if err != nil {
		s.log.Warnf("yamux session from %s: %v", conn.RemoteAddr(), err)
		_ = conn.Close()
		return
	}
	defer sess.Close()
	s.log.Infof("tcp session opened: %s", conn.RemoteAddr())

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = sess.Close()
		case <-done:
		}
	}()

	for {
		stream, err := sess.AcceptStream()
		if err != nil {
			s.log.Infof("tcp session closed: %s (%v)", conn.RemoteAddr(), err)
			return
		}
		c := NewClientConn(newStreamTransport(sess, stream), protocol.JSON, s.cfg.SendBuffer)
		go s.ServeConn(c)
	}
}

// streamTransport 一个 yamux 流；每行一条 JSON 消息
type streamTransport struct {
	sess   *yamux.Session
	stream *yamux.Stream
	sc     *bufio.Scanner
	mu     deadlock.Mutex
}

func newStreamTransport(sess *yamux.Session, st *yamux.Stream) *streamTransport {
	sc := bufio.NewScanner(st)
	sc.Buffer(make([]byte, 0, 1024), protocol.MaxMessageSize+1)
	return &streamTransport{sess: sess, stream: st, sc: sc}
}

func (t *streamTransport) ReadMessage() ([]byte, error) {
	for t.sc.Scan() {
		line := t.sc.Bytes()
		if len(line) == 0 {
			continue
		}
		out := make([]byte, len(line))
		copy(out, line)
		return out, nil
	}
	if err := t.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (t *streamTransport) WriteMessage(_ bool, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.stream.SetWriteDeadline(time.Now().Add(writeWait))
	if _, err := t.stream.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

// Probe 用 yamux 会话级 ping 探测，应答后回调
func (t *streamTransport) Probe(onAlive func()) error {
	go func() {
		if _, err := t.sess.Ping(); err == nil {
			onAlive()
		}
	}()
	return nil
}

func (t *streamTransport) Close() error { return t.stream.Close() }

func (t *streamTransport) RemoteAddr() string { return t.stream.RemoteAddr().String() }

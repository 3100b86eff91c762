package server

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"skirace/config"
	"skirace/match"
	"skirace/protocol"
)

const resolveTimeout = 5 * time.Second

func newErrorMessage(err error) protocol.ErrorMessage { return protocol.NewError(err) }

// dispatch 处理一条已校验的消息；返回 false 表示应关闭连接
func (s *Server) dispatch(c *ClientConn, msg protocol.Message) bool {
	switch m := msg.(type) {
	case protocol.Auth:
		if err := s.auth(c, m); err != nil {
			s.log.Infof("conn %s auth rejected: %v", c.ID, err)
			c.Finish(newErrorMessage(err))
			return false
		}
	case protocol.Input:
		s.input(c, m)
	case protocol.Ping:
		c.Enqueue(protocol.Pong{Type: protocol.TypePong, ClientTime: m.ClientTime, ServerTime: s.clock().UnixMilli()})
	}
	return true
}

// auth 解析身份 → 找到或创建对局 → 加入 → 回 welcome
func (s *Server) auth(c *ClientConn, req protocol.Auth) error {
	if c.match != nil {
		// 重复鉴权按协议错误处理，不关闭连接
		c.Enqueue(newErrorMessage(protocol.Errorf(protocol.CodeInvalidMessage, "already authenticated")))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()
	id, err := s.ident.Resolve(ctx, req.Token)
	if err != nil {
		return protocol.Errorf(protocol.CodeAuthFailed, "authentication failed")
	}

	playerID := uuid.NewString()
	m, roster, err := s.place(req, playerID, id)
	if err != nil {
		return err
	}

	c.playerID = playerID
	c.match = m

	var startIn int64
	if m.Status() == match.Lobby {
		at := m.ArmStart(m.Mode.Countdown)
		if d := at.Sub(s.clock()).Milliseconds(); d > 0 {
			startIn = d
		}
	}
	// welcome 必须先于任何快照入队
	c.Enqueue(protocol.NewWelcome(playerID, m, startIn, roster, config.WorldVersion))
	c.hub = s.hubFor(m)
	c.hub.Attach(playerID, c)
	s.log.Infof("player %s (%s) joined match %s code=%s mode=%s", playerID, id.DisplayName, m.ID, m.Code, m.Mode.Name)
	return nil
}

// place 房间码加入或按模式快速匹配
func (s *Server) place(req protocol.Auth, playerID string, id Identity) (*match.Match, []match.RosterEntry, error) {
	if req.RoomCode != "" {
		m := s.reg.FindByCode(req.RoomCode)
		if m == nil {
			return nil, nil, protocol.Errorf(protocol.CodeMatchNotFound, "no match with code %s", req.RoomCode)
		}
		roster, err := m.Join(playerID, id.UserID, id.DisplayName)
		if err != nil {
			return nil, nil, joinError(err)
		}
		return m, roster, nil
	}

	mode, err := config.LookupMode(req.Mode)
	if err != nil {
		return nil, nil, protocol.Errorf(protocol.CodeInvalidMode, "%v", err)
	}

	if mode.Public {
		// 扫描与加入之间对局可能已满或已开始，失败则新建
		if m := s.reg.FindAvailableMatch(mode.Name); m != nil {
			if roster, err := m.Join(playerID, id.UserID, id.DisplayName); err == nil {
				return m, roster, nil
			}
		}
	}

	m, err := s.reg.CreateMatch("", mode, match.RandomSeed())
	if err != nil {
		return nil, nil, err
	}
	roster, err := m.Join(playerID, id.UserID, id.DisplayName)
	if err != nil {
		return nil, nil, joinError(err)
	}
	return m, roster, nil
}

func joinError(err error) error {
	switch {
	case errors.Is(err, match.ErrFull), errors.Is(err, match.ErrDuplicate):
		return protocol.Errorf(protocol.CodeMatchFull, "match is full")
	case errors.Is(err, match.ErrClosed):
		return protocol.Errorf(protocol.CodeMatchNotFound, "match has ended")
	}
	return err
}

// input 直接进入对局输入队列；确认通过之后快照的 ackSeq 隐式返回
func (s *Server) input(c *ClientConn, in protocol.Input) {
	if c.match == nil {
		c.Enqueue(newErrorMessage(protocol.Errorf(protocol.CodeInvalidMessage, "input before auth")))
		return
	}
	now := s.clock()
	ok, warn := c.limiter.allow(now, s.cfg.InputRateLimit)
	if !ok {
		if warn {
			c.Enqueue(newErrorMessage(protocol.Errorf(protocol.CodeRateLimit, "too many inputs")))
		}
		return
	}
	err := c.match.QueueInput(c.playerID, match.Input{
		Seq:      in.Seq,
		Tick:     in.Tick,
		DtMs:     in.DtMs,
		Intent:   in.Intent,
		Received: now,
	})
	if err != nil {
		s.log.Warnf("queue input for %s: %v", c.playerID, err)
	}
}

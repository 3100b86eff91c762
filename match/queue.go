package match

import (
	"time"

	"github.com/sasha-s/go-deadlock"

	"skirace/physics"
)

// Input 客户端输入（意图），排队等待下一次 Tick 解释
type Input struct {
	Seq      int64
	Tick     int64
	DtMs     int
	Intent   physics.Intent
	Received time.Time
}

// inputQueue 每位玩家一个有界 FIFO；网络协程写入、Tick 协程取走
type inputQueue struct {
	mu  deadlock.Mutex
	buf []Input
	max int
}

func newInputQueue(size int) *inputQueue {
	if size <= 0 {
		size = 1
	}
	return &inputQueue{buf: make([]Input, 0, size), max: size}
}

// push 满则丢弃最旧的一条，返回是否发生丢弃
func (q *inputQueue) push(in Input) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	dropped := false
	if len(q.buf) >= q.max {
		copy(q.buf, q.buf[1:])
		q.buf = q.buf[:len(q.buf)-1]
		dropped = true
	}
	q.buf = append(q.buf, in)
	return dropped
}

// drain 取出全部排队输入（追加到 dst）
func (q *inputQueue) drain(dst []Input) []Input {
	q.mu.Lock()
	defer q.mu.Unlock()
	dst = append(dst, q.buf...)
	q.buf = q.buf[:0]
	return dst
}

func (q *inputQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// queueSet 玩家 id → 输入队列；只在加入时写
type queueSet struct {
	mu deadlock.RWMutex
	m  map[string]*inputQueue
}

func newQueueSet() *queueSet {
	return &queueSet{m: make(map[string]*inputQueue)}
}

func (s *queueSet) get(id string) *inputQueue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m[id]
}

func (s *queueSet) add(id string, size int) *inputQueue {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := newInputQueue(size)
	s.m[id] = q
	return q
}

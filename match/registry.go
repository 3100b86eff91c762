package match

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"

	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	"skirace/config"
)

// Registry 管理所有对局：id → 对局，按创建顺序扫描可加入的大厅
type Registry struct {
	ctx context.Context

	mu      deadlock.RWMutex
	matches map[string]*Match
	codes   map[string]*Match
	order   []*Match
	tuning  config.Tuning
	opts    []Option
	log     *zap.SugaredLogger

	// running 对局协程与结果写入都结束后才 Done
	running sync.WaitGroup
}

// NewRegistry 对局协程的生命周期跟随 ctx；opts 作为每局的默认参数
func NewRegistry(ctx context.Context, tuning config.Tuning, log *zap.SugaredLogger, opts ...Option) *Registry {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Registry{
		ctx:     ctx,
		matches: make(map[string]*Match),
		codes:   make(map[string]*Match),
		tuning:  tuning,
		opts:    opts,
		log:     log,
	}
}

// Tuning 新建对局使用的默认调参
func (r *Registry) Tuning() config.Tuning {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tuning
}

// SetTuning 只影响之后创建的对局
func (r *Registry) SetTuning(t config.Tuning) {
	r.mu.Lock()
	r.tuning = t
	r.mu.Unlock()
	r.log.Infof("default tuning updated: tickRate=%d maxPlayers=%d", t.TickRate, t.MaxPlayers)
}

// CreateMatch 创建并启动对局协程；id 为空时生成 uuid
func (r *Registry) CreateMatch(id string, mode config.Mode, seed uint32, opts ...Option) (*Match, error) {
	if id == "" {
		id = uuid.NewString()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.matches[id]; ok {
		return nil, fmt.Errorf("create match %s: %w", id, ErrExists)
	}
	code := generateCode(6)
	for r.codes[code] != nil {
		code = generateCode(6)
	}

	all := []Option{WithTuning(r.tuning), WithLogger(r.log), WithCode(code)}
	all = append(all, r.opts...)
	all = append(all, opts...)
	all = append(all, WithOnComplete(r.forget))
	m := New(id, mode, seed, all...)

	r.matches[id] = m
	r.codes[m.Code] = m
	r.order = append(r.order, m)
	r.running.Add(1)
	go func() {
		defer r.running.Done()
		m.Run(r.ctx)
		<-m.Saved()
	}()
	r.log.Infof("match created: %s code=%s mode=%s seed=%d", id, m.Code, mode.Name, seed)
	return m, nil
}

// FindAvailableMatch 按创建顺序找第一个仍在大厅、有空位的公开对局
func (r *Registry) FindAvailableMatch(mode string) *Match {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.order {
		if m.Mode.Name == mode && m.Mode.Public && m.Status() == Lobby && m.HasCapacity() {
			return m
		}
	}
	return nil
}

// Get 按 id 查找
func (r *Registry) Get(id string) *Match {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.matches[id]
}

// FindByCode 按房间码查找
func (r *Registry) FindByCode(code string) *Match {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.codes[code]
}

// List 按创建顺序返回所有对局
func (r *Registry) List() []*Match {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Match, len(r.order))
	copy(out, r.order)
	return out
}

// Len 对局数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matches)
}

// RemoveMatch 结束对局并移除；不存在时返回 false
func (r *Registry) RemoveMatch(id string) bool {
	m := r.Get(id)
	if m == nil {
		return false
	}
	// End 会触发 forget，不能持锁调用
	m.End()
	r.forget(m)
	return true
}

// Close 结束所有对局，等待结果写完或 ctx 到期
func (r *Registry) Close(ctx context.Context) error {
	for _, m := range r.List() {
		r.RemoveMatch(m.ID)
	}
	done := make(chan struct{})
	go func() {
		r.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// forget 从索引中删除；对局结束时由对局协程回调
func (r *Registry) forget(m *Match) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.matches[m.ID]; !ok || cur != m {
		return
	}
	delete(r.matches, m.ID)
	delete(r.codes, m.Code)
	for i, x := range r.order {
		if x == m {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

const codeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func generateCode(n int) string {
	b := make([]byte, n)
	max := big.NewInt(int64(len(codeChars)))
	for i := range b {
		idx, _ := rand.Int(rand.Reader, max)
		b[i] = codeChars[idx.Int64()]
	}
	return string(b)
}

// RandomSeed 新对局的世界种子
func RandomSeed() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return uint32(uuid.New().ID())
	}
	return binary.LittleEndian.Uint32(b[:])
}

// Package session 管理会话级别的邮件存储。
//
// 每个会话在创建时构造一个独立的 MessageStore 并显式交给调用方，
// 会话外访问统一返回 ErrSessionNotFound。
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"inbox/backend/internal/domain"
	"inbox/backend/internal/storage/memory"
)

var (
	// ErrSessionNotFound 会话不存在或已过期
	ErrSessionNotFound = errors.New("session not found")
	// ErrTooManySessions 会话数量已达上限
	ErrTooManySessions = errors.New("too many active sessions")
)

// SeedFunc 生成会话初始邮件数据
type SeedFunc func() []domain.Message

// ExpireFunc 会话因空闲过期被移除后的回调
type ExpireFunc func(sessionID string)

// Session 一个活跃会话及其独占的邮件存储
type Session struct {
	ID        string
	CreatedAt time.Time
	Store     *memory.MessageStore

	mu       sync.Mutex
	lastSeen time.Time

	// writeMu 串行化同一会话的“变更 + 发布快照”
	writeMu sync.Mutex
}

// Exclusive 在会话写锁内执行 fn，保证变更与其快照按顺序发布
func (s *Session) Exclusive(fn func()) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	fn()
}

// LastSeen 最近一次访问时间
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// Registry 会话注册表
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	seed        SeedFunc
	ttl         time.Duration
	maxSessions int
	now         func() time.Time
	onExpire    ExpireFunc
}

// Option 注册表配置项
type Option func(*Registry)

// WithClock 替换时间源，用于测试
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithMaxSessions 限制同时存在的会话数量，0 表示不限制
func WithMaxSessions(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxSessions = n
		}
	}
}

// NewRegistry 创建会话注册表
//
// 参数:
//   - seed: 新会话的初始数据
//   - ttl: 会话空闲过期时间，0 表示永不过期
func NewRegistry(seed SeedFunc, ttl time.Duration, opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		seed:     seed,
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnExpire 设置过期回调，懒过期与批量清理都会触发
func (r *Registry) OnExpire(fn ExpireFunc) {
	r.mu.Lock()
	r.onExpire = fn
	r.mu.Unlock()
}

// Open 创建新会话，存储以初始数据填充
func (r *Registry) Open() (*Session, error) {
	store, err := memory.NewMessageStore(r.seed())
	if err != nil {
		return nil, fmt.Errorf("seed message store: %w", err)
	}

	now := r.now()
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		Store:     store,
		lastSeen:  now,
	}

	r.mu.Lock()
	expired := r.pruneExpiredLocked(now)
	full := r.maxSessions > 0 && len(r.sessions) >= r.maxSessions
	if !full {
		r.sessions[sess.ID] = sess
	}
	onExpire := r.onExpire
	r.mu.Unlock()

	notifyExpired(onExpire, expired)
	if full {
		return nil, ErrTooManySessions
	}
	return sess, nil
}

// Get 获取会话并刷新访问时间
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	sess, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	now := r.now()
	if r.expired(sess, now) {
		r.mu.Lock()
		_, present := r.sessions[id]
		delete(r.sessions, id)
		onExpire := r.onExpire
		r.mu.Unlock()

		if present {
			notifyExpired(onExpire, []string{id})
		}
		return nil, ErrSessionNotFound
	}

	sess.touch(now)
	return sess, nil
}

// Reset 将会话邮件恢复为初始数据
func (r *Registry) Reset(id string) (*Session, error) {
	sess, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if err := sess.Store.Replace(r.seed()); err != nil {
		return nil, fmt.Errorf("reset message store: %w", err)
	}
	return sess, nil
}

// Close 结束会话，其邮件数据随之丢弃
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

// PruneExpired 删除所有过期会话，返回删除数量
func (r *Registry) PruneExpired() int {
	r.mu.Lock()
	expired := r.pruneExpiredLocked(r.now())
	onExpire := r.onExpire
	r.mu.Unlock()

	notifyExpired(onExpire, expired)
	return len(expired)
}

// Count 当前会话数量
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) pruneExpiredLocked(now time.Time) []string {
	var expired []string
	for id, sess := range r.sessions {
		if r.expired(sess, now) {
			delete(r.sessions, id)
			expired = append(expired, id)
		}
	}
	return expired
}

func notifyExpired(fn ExpireFunc, ids []string) {
	if fn == nil {
		return
	}
	for _, id := range ids {
		fn(id)
	}
}

func (r *Registry) expired(sess *Session, now time.Time) bool {
	if r.ttl <= 0 {
		return false
	}
	return now.Sub(sess.LastSeen()) > r.ttl
}

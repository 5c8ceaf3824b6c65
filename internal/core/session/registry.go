package session

import (
	"context"
	"sync"
	"time"

	"recipe-content-studio/internal/infrastructure/metrics"
	"recipe-content-studio/internal/pkg/common"

	"go.uber.org/zap"
)

// Config 工作階段容量與存活設定
type Config struct {
	MaxSize         int
	TTL             time.Duration
	CleanupInterval time.Duration
}

// Registry 工作階段管理器
type Registry struct {
	cfg  Config
	deps Deps

	mu    sync.Mutex
	store map[string]*entry
	stats registryStats
	now   func() time.Time

	stop      chan struct{}
	closeOnce sync.Once
}

// entry 工作階段條目
type entry struct {
	session     *Session
	expiresAt   time.Time
	lastAccess  time.Time
	accessCount int
}

// registryStats 工作階段統計
type registryStats struct {
	created   int64
	hits      int64
	misses    int64
	evictions int64
	rejected  int64
}

// NewRegistry 創建工作階段管理器，並在設定清理間隔時啟動清理協程
func NewRegistry(cfg Config, deps Deps) *Registry {
	r := &Registry{
		cfg:   cfg,
		deps:  deps,
		store: make(map[string]*entry),
		now:   time.Now,
		stop:  make(chan struct{}),
	}

	if cfg.CleanupInterval > 0 {
		go r.startCleanup()
	}

	common.LogInfo("工作階段管理員已初始化",
		zap.Int("最大容量", cfg.MaxSize),
		zap.Duration("存活時間", cfg.TTL),
		zap.Duration("清理間隔", cfg.CleanupInterval),
	)
	return r
}

// Create 建立新的工作階段；已滿時先清除過期項目，再淘汰最久未使用者
func (r *Registry) Create(ctx context.Context) (*Session, error) {
	r.mu.Lock()

	var released []*Session
	if r.cfg.MaxSize > 0 && len(r.store) >= r.cfg.MaxSize {
		released = append(released, r.cleanup()...)

		if len(r.store) >= r.cfg.MaxSize {
			if s := r.evictLRU(); s != nil {
				released = append(released, s)
			}
		}

		if len(r.store) >= r.cfg.MaxSize {
			r.stats.rejected++
			r.mu.Unlock()
			r.release(released)
			common.LogWarn("工作階段已滿", zap.Int("目前容量", len(r.store)))
			return nil, common.ErrSessionsFull
		}
	}

	now := r.now()
	s, err := newSession(common.GenerateUUID(), r.deps, now)
	if err != nil {
		r.mu.Unlock()
		r.release(released)
		return nil, err
	}

	r.store[s.ID] = &entry{
		session:    s,
		expiresAt:  now.Add(r.cfg.TTL),
		lastAccess: now,
	}
	r.stats.created++
	metrics.ActiveSessions.Set(float64(len(r.store)))
	r.mu.Unlock()

	r.release(released)
	common.LogInfo("工作階段已建立", zap.String("session_id", s.ID))
	return s, nil
}

// Get 取得工作階段並延長存活時間
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()

	e, ok := r.store[id]
	if !ok {
		r.stats.misses++
		r.mu.Unlock()
		return nil, common.ErrSessionNotFound
	}

	now := r.now()
	if r.cfg.TTL > 0 && now.After(e.expiresAt) {
		delete(r.store, id)
		r.stats.misses++
		r.stats.evictions++
		metrics.RecordEviction("expired")
		metrics.ActiveSessions.Set(float64(len(r.store)))
		r.mu.Unlock()

		r.release([]*Session{e.session})
		common.LogInfo("工作階段已過期", zap.String("session_id", id))
		return nil, common.ErrSessionNotFound
	}

	e.lastAccess = now
	e.accessCount++
	e.expiresAt = now.Add(r.cfg.TTL)
	r.stats.hits++
	r.mu.Unlock()
	return e.session, nil
}

// Delete 移除工作階段
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	e, ok := r.store[id]
	if !ok {
		r.mu.Unlock()
		return common.ErrSessionNotFound
	}
	delete(r.store, id)
	metrics.RecordEviction("deleted")
	metrics.ActiveSessions.Set(float64(len(r.store)))
	r.mu.Unlock()

	common.LogInfo("工作階段已移除", zap.String("session_id", id))
	return e.session.release(ctx)
}

// Len 目前工作階段數量
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.store)
}

// startCleanup 啟動清理過期工作階段的協程
func (r *Registry) startCleanup() {
	ticker := time.NewTicker(r.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Sweep()
		case <-r.stop:
			return
		}
	}
}

// Sweep 清除所有過期的工作階段，回傳清除數量
func (r *Registry) Sweep() int {
	r.mu.Lock()
	released := r.cleanup()
	r.mu.Unlock()

	r.release(released)
	return len(released)
}

// cleanup 移除過期項目；需持有鎖
func (r *Registry) cleanup() []*Session {
	if r.cfg.TTL <= 0 {
		return nil
	}

	now := r.now()
	var removed []*Session
	for id, e := range r.store {
		if now.After(e.expiresAt) {
			delete(r.store, id)
			removed = append(removed, e.session)
			r.stats.evictions++
			metrics.RecordEviction("expired")
		}
	}

	if len(removed) > 0 {
		metrics.ActiveSessions.Set(float64(len(r.store)))
		common.LogInfo("已清除過期工作階段",
			zap.Int("count", len(removed)),
			zap.Int64("total_evictions", r.stats.evictions),
			zap.Int("remaining_size", len(r.store)),
		)
	}
	return removed
}

// evictLRU 淘汰最久未使用的工作階段；需持有鎖
func (r *Registry) evictLRU() *Session {
	var oldestID string
	var oldest *entry

	for id, e := range r.store {
		if oldest == nil || e.lastAccess.Before(oldest.lastAccess) ||
			(e.lastAccess.Equal(oldest.lastAccess) && e.accessCount < oldest.accessCount) {
			oldestID, oldest = id, e
		}
	}
	if oldest == nil {
		return nil
	}

	delete(r.store, oldestID)
	r.stats.evictions++
	metrics.RecordEviction("lru")
	metrics.ActiveSessions.Set(float64(len(r.store)))
	common.LogInfo("工作階段已淘汰(LRU)", zap.String("session_id", oldestID))
	return oldest.session
}

// release 在鎖外清除被移除工作階段的憑證
func (r *Registry) release(sessions []*Session) {
	for _, s := range sessions {
		if err := s.release(context.Background()); err != nil {
			common.LogWarn("清除工作階段憑證失敗", zap.String("session_id", s.ID), zap.Error(err))
		}
	}
}

// GetStats 取得統計資訊
func (r *Registry) GetStats() map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	return map[string]interface{}{
		"size":      len(r.store),
		"max_size":  r.cfg.MaxSize,
		"created":   r.stats.created,
		"hits":      r.stats.hits,
		"misses":    r.stats.misses,
		"evictions": r.stats.evictions,
		"rejected":  r.stats.rejected,
	}
}

// Close 停止清理協程並清空所有工作階段
func (r *Registry) Close() error {
	r.closeOnce.Do(func() { close(r.stop) })

	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.store))
	for _, e := range r.store {
		sessions = append(sessions, e.session)
	}
	r.store = make(map[string]*entry)
	metrics.ActiveSessions.Set(0)
	stats := r.stats
	r.mu.Unlock()

	r.release(sessions)
	common.LogInfo("工作階段管理員已關閉",
		zap.Int64("建立數", stats.created),
		zap.Int64("命中次數", stats.hits),
		zap.Int64("淘汰次數", stats.evictions),
	)
	return nil
}

package queue

import (
	"context"
	"sync"
	"sync/atomic"

	"recipe-content-studio/internal/infrastructure/metrics"
	"recipe-content-studio/internal/pkg/common"

	"go.uber.org/zap"
)

// Status 隊列狀態
type Status struct {
	Active         int `json:"active"`
	Waiting        int `json:"waiting"`
	ProcessedCount int `json:"processed_count"`
	RejectedCount  int `json:"rejected_count"`
	MaxQueueSize   int `json:"max_queue_size"`
	Workers        int `json:"workers"`
}

// Manager 限制同時進行的遠端生成呼叫，超過 workers 的請求排隊等待
type Manager struct {
	workers int
	maxSize int

	slots     chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	waiting   int64
	processed int64
	rejected  int64
}

// NewManager 創建新的隊列管理器
func NewManager(workers, maxSize int) *Manager {
	if workers <= 0 {
		workers = 1
	}
	if maxSize < 0 {
		maxSize = 0
	}
	return &Manager{
		workers: workers,
		maxSize: maxSize,
		slots:   make(chan struct{}, workers),
		done:    make(chan struct{}),
	}
}

// Do 取得執行名額後呼叫 fn；隊列已滿時回傳 ErrQueueFull
func (m *Manager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case <-m.done:
		return common.ErrQueueClosed
	default:
	}

	// 有空位時直接執行
	select {
	case m.slots <- struct{}{}:
		return m.run(ctx, fn)
	default:
	}

	if atomic.AddInt64(&m.waiting, 1) > int64(m.maxSize) {
		atomic.AddInt64(&m.waiting, -1)
		atomic.AddInt64(&m.rejected, 1)
		metrics.QueueRejected.Inc()
		common.LogWarn("Queue is full",
			zap.Int("workers", m.workers),
			zap.Int("max_queue_size", m.maxSize),
		)
		return common.ErrQueueFull
	}
	metrics.QueueWaiting.Inc()

	common.LogDebug("Request enqueued",
		zap.Int64("queue_length", atomic.LoadInt64(&m.waiting)),
		zap.Int("max_queue_size", m.maxSize),
	)

	select {
	case m.slots <- struct{}{}:
		m.leave()
		return m.run(ctx, fn)
	case <-ctx.Done():
		m.leave()
		return common.NewTransportError("請求已取消", ctx.Err())
	case <-m.done:
		m.leave()
		return common.ErrQueueClosed
	}
}

func (m *Manager) leave() {
	atomic.AddInt64(&m.waiting, -1)
	metrics.QueueWaiting.Dec()
}

func (m *Manager) run(ctx context.Context, fn func(ctx context.Context) error) error {
	defer func() { <-m.slots }()
	err := fn(ctx)
	atomic.AddInt64(&m.processed, 1)
	return err
}

// GetQueueStatus 獲取隊列狀態
func (m *Manager) GetQueueStatus() *Status {
	return &Status{
		Active:         len(m.slots),
		Waiting:        int(atomic.LoadInt64(&m.waiting)),
		ProcessedCount: int(atomic.LoadInt64(&m.processed)),
		RejectedCount:  int(atomic.LoadInt64(&m.rejected)),
		MaxQueueSize:   m.maxSize,
		Workers:        m.workers,
	}
}

// GetStats 以 map 形式回傳狀態，供健康檢查使用
func (m *Manager) GetStats() map[string]interface{} {
	s := m.GetQueueStatus()
	return map[string]interface{}{
		"active":          s.Active,
		"waiting":         s.Waiting,
		"processed_count": s.ProcessedCount,
		"rejected_count":  s.RejectedCount,
		"max_queue_size":  s.MaxQueueSize,
		"workers":         s.Workers,
	}
}

// Close 關閉隊列管理器；等待中的請求會收到 ErrQueueClosed
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
	})
}

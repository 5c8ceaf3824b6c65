package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"recipe-content-studio/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger 可做連線檢查的外部依賴（例如 Redis）
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatsSource 提供統計資料（工作階段、生成隊列）
type StatsSource interface {
	GetStats() map[string]interface{}
}

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime"`
	Sessions  map[string]interface{} `json:"sessions,omitempty"`
	Queue     map[string]interface{} `json:"queue,omitempty"`
	Providers map[string]string      `json:"providers,omitempty"`
}

// Handler 健康檢查處理程序
type Handler struct {
	version   string
	stats     StatsSource
	queue     StatsSource
	pingers   map[string]Pinger
	providers map[string]string
}

// NewHandler 創建健康檢查處理程序
func NewHandler(version string, stats StatsSource, pingers map[string]Pinger, providers map[string]string) *Handler {
	return &Handler{
		version:   version,
		stats:     stats,
		pingers:   pingers,
		providers: providers,
	}
}

// WithQueue 在健康檢查中附上生成隊列狀態
func (h *Handler) WithQueue(queue StatsSource) *Handler {
	h.queue = queue
	return h
}

// HealthCheck 健康檢查處理器
func (h *Handler) HealthCheck(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   h.version,
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
		Providers: h.providers,
	}
	if h.stats != nil {
		response.Sessions = h.stats.GetStats()
	}
	if h.queue != nil {
		response.Queue = h.queue.GetStats()
	}

	common.LogDebug("Health check request",
		zap.String("client_ip", c.ClientIP()),
		zap.String("path", c.Request.URL.Path),
	)

	c.JSON(http.StatusOK, response)
}

// ReadinessCheck 就緒檢查處理器：所有外部依賴都要能連線
func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.pingers))
	ready := true
	for name, p := range h.pingers {
		if err := p.Ping(ctx); err != nil {
			common.LogWarn("依賴檢查失敗", zap.String("dependency", name), zap.Error(err))
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"checks": checks,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"checks": checks,
	})
}

// LivenessCheck 存活檢查處理器
func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

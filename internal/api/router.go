package api

import (
	"context"
	"time"

	"recipe-content-studio/internal/api/handlers/health"
	"recipe-content-studio/internal/api/handlers/studio"
	"recipe-content-studio/internal/api/middleware"
	"recipe-content-studio/internal/core/image"
	"recipe-content-studio/internal/infrastructure/config"
	"recipe-content-studio/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	// 請求體大小限制 (1MB)
	maxBodySize = 1 << 20
	// 預設請求超時
	defaultTimeout = 180 * time.Second
)

// Dependencies 路由所需的元件
type Dependencies struct {
	Sessions  studio.Sessions
	Stats     health.StatsSource
	Queue     health.StatsSource
	Images    *image.Service
	Pingers   map[string]health.Pinger
	Providers map[string]string
}

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	// 設置 gin 模式
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.NoRoute(func(c *gin.Context) { common.WriteError(c, common.ErrNotFound, nil) })
	router.NoMethod(func(c *gin.Context) { common.WriteError(c, common.ErrMethodNotAllowed, nil) })

	// 註冊基礎中間件
	router.Use(middleware.Recovery())
	router.Use(requestid.New()) // 自動生成請求 ID
	router.Use(middleware.Logger())

	// CORS 設置
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.Use(middleware.BodySizeLimit(maxBodySize))

	// 健康檢查與指標
	hh := health.NewHandler(cfg.App.Version, deps.Stats, deps.Pingers, deps.Providers)
	if deps.Queue != nil {
		hh.WithQueue(deps.Queue)
	}
	router.GET("/health", hh.HealthCheck)
	router.GET("/ready", hh.ReadinessCheck)
	router.GET("/live", hh.LivenessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	timeout := cfg.Server.WriteTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	api := router.Group("/api/v1")
	api.Use(requestTimeout(timeout))
	if cfg.RateLimit.Enabled {
		api.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}

	studio.NewHandler(deps.Sessions, deps.Images).Register(api, middleware.Deduplication(cfg.DedupWindow))

	common.LogInfo("Router setup completed successfully",
		zap.Duration("timeout", timeout),
		zap.Int64("max_body_size", maxBodySize),
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
	)

	return router
}

// requestTimeout 為每個請求設定超時；生成流程的遠端呼叫會跟著取消
func requestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if ctx.Err() == context.DeadlineExceeded {
			common.LogError("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", requestid.Get(c)),
				zap.Duration("timeout", timeout),
			)
			if !c.Writer.Written() {
				common.WriteError(c, common.ErrGatewayTimeout, nil)
			}
		}
	}
}

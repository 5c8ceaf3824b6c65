package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recipe-content-studio/internal/api"
	"recipe-content-studio/internal/api/handlers/health"
	"recipe-content-studio/internal/core/ai/gemini"
	"recipe-content-studio/internal/core/ai/openrouter"
	"recipe-content-studio/internal/core/ai/queue"
	"recipe-content-studio/internal/core/credential"
	"recipe-content-studio/internal/core/image"
	"recipe-content-studio/internal/core/session"
	"recipe-content-studio/internal/core/thumbnail"
	"recipe-content-studio/internal/core/workflow"
	"recipe-content-studio/internal/infrastructure/config"
	"recipe-content-studio/internal/pkg/common"

	"go.uber.org/zap"
)

func main() {
	// 載入設定
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("gemini_api_key", config.MaskAPIKey(cfg.Gemini.APIKey)),
		zap.String("text_provider", cfg.Text.Provider),
		zap.String("text_model", cfg.Gemini.TextModel),
		zap.String("image_model", cfg.Gemini.ImageModel),
		zap.String("credential_store", cfg.Credential.Store),
	)

	// 初始化憑證儲存
	keys, pingers, closeKeys, err := newKeyStore(cfg)
	if err != nil {
		common.LogFatal("Failed to initialize credential store", zap.Error(err))
	}
	defer closeKeys()

	// 初始化生成客戶端
	geminiClient := gemini.NewClient(gemini.Config{
		APIKey:     cfg.Gemini.APIKey,
		TextModel:  cfg.Gemini.TextModel,
		ImageModel: cfg.Gemini.ImageModel,
		ImageSize:  cfg.Gemini.ImageSize,
		MaxRetries: cfg.Gemini.MaxRetries,
		Timeout:    cfg.Gemini.Timeout,
	}, nil)

	var provider workflow.TextGenerator = geminiClient
	if cfg.Text.Provider == "openrouter" {
		provider = openrouter.NewClient(openrouter.Config{
			APIKey:     cfg.OpenRouter.APIKey,
			Model:      cfg.OpenRouter.Model,
			MaxTokens:  cfg.OpenRouter.MaxTokens,
			Timeout:    cfg.OpenRouter.Timeout,
			MaxRetries: cfg.OpenRouter.MaxRetries,
		})
	}

	// 遠端呼叫共用同一組執行名額
	queueManager := queue.NewManager(cfg.Queue.Workers, cfg.Queue.MaxSize)
	defer queueManager.Close()
	text := queue.WrapText(queueManager, provider)

	renderer, err := thumbnail.NewRenderer()
	if err != nil {
		common.LogFatal("Failed to initialize thumbnail renderer", zap.Error(err))
	}

	imageMode, err := workflow.ParseImageMode(cfg.Image.DefaultMode)
	if err != nil {
		common.LogFatal("Invalid image mode", zap.Error(err))
	}

	// 伺服器沒有金鑰時一定要使用者選擇
	requiresCredential := cfg.Credential.RequireSelection || !geminiClient.HasServerKey()

	// 初始化工作階段管理
	registry := session.NewRegistry(session.Config{
		MaxSize:         cfg.Session.MaxSize,
		TTL:             cfg.Session.TTL,
		CleanupInterval: cfg.Session.CleanupInterval,
	}, session.Deps{
		Text: text,
		RemoteImage: func(port *credential.SessionPort) workflow.ImageGenerator {
			return queue.WrapImage(queueManager, gemini.NewImageGenerator(geminiClient, port))
		},
		LocalImage:         renderer,
		Keys:               keys,
		RequiresCredential: requiresCredential,
		ImageMode:          imageMode,
		StartIndex:         cfg.Carousel.StartIndex,
		DefaultWidth:       cfg.Carousel.DefaultWidth,
	})
	defer registry.Close()

	// 設置路由
	router := api.SetupRouter(cfg, api.Dependencies{
		Sessions: registry,
		Stats:    registry,
		Queue:    queueManager,
		Images:   image.NewService(cfg.Image.MaxSizeBytes),
		Pingers:  pingers,
		Providers: map[string]string{
			"text":             cfg.Text.Provider,
			"image":            string(imageMode),
			"credential_store": cfg.Credential.Store,
		},
	})

	// 設置 HTTP 服務器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 啟動服務器
	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Bool("debug", cfg.App.Debug),
			zap.Int("port", cfg.Server.Port),
			zap.Bool("requires_credential", requiresCredential),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.LogFatal("Failed to start server", zap.Error(err))
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")

	// 設置關閉超時
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		common.LogError("Server forced to shutdown", zap.Error(err))
	}

	common.LogInfo("Server exited")
}

// newKeyStore 依設定建立 API key 儲存，Redis 另外加入就緒檢查
func newKeyStore(cfg *config.Config) (credential.KeyStore, map[string]health.Pinger, func(), error) {
	if cfg.Credential.Store != "redis" {
		common.LogInfo("使用記憶體憑證儲存", zap.Duration("ttl", cfg.Credential.TTL))
		return credential.NewMemoryKeyStore(cfg.Credential.TTL), nil, func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := credential.NewRedisKeyStore(ctx, cfg.Credential.RedisAddr, cfg.Credential.RedisDB, cfg.Credential.TTL)
	if err != nil {
		return nil, nil, nil, err
	}
	common.LogInfo("使用 Redis 憑證儲存",
		zap.String("addr", cfg.Credential.RedisAddr),
		zap.Int("db", cfg.Credential.RedisDB),
	)

	closeFn := func() {
		if err := store.Close(); err != nil {
			common.LogError("Failed to close redis", zap.Error(err))
		}
	}
	return store, map[string]health.Pinger{"redis": store}, closeFn, nil
}

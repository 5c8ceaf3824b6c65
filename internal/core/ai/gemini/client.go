package gemini

import (
	"context"
	"fmt"
	"sync"
	"time"

	"recipe-content-studio/internal/pkg/common"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const providerName = "gemini"

// Config Gemini 客戶端設定
type Config struct {
	APIKey     string // 伺服器預設金鑰，使用者未選擇金鑰時使用
	TextModel  string
	ImageModel string
	ImageSize  string
	MaxRetries int
	Timeout    time.Duration
	Backoff    time.Duration // 第一次重試的等待時間，之後倍增
}

// ModelsAPI genai.Models 的最小介面，方便測試替換
type ModelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Connector 依 API key 建立模型存取端
type Connector func(ctx context.Context, apiKey string) (ModelsAPI, error)

// DefaultConnector 使用 genai SDK 連線 Gemini API
func DefaultConnector(ctx context.Context, apiKey string) (ModelsAPI, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client.Models, nil
}

// Client Gemini 文字與圖片生成客戶端
type Client struct {
	cfg     Config
	connect Connector

	mu      sync.Mutex
	clients map[string]ModelsAPI
}

// NewClient 創建 Gemini 客戶端；connect 為 nil 時使用 DefaultConnector
func NewClient(cfg Config, connect Connector) *Client {
	if connect == nil {
		connect = DefaultConnector
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.ImageSize == "" {
		cfg.ImageSize = "1K"
	}
	return &Client{
		cfg:     cfg,
		connect: connect,
		clients: make(map[string]ModelsAPI),
	}
}

// HasServerKey 是否設定了伺服器預設金鑰
func (c *Client) HasServerKey() bool {
	return c.cfg.APIKey != ""
}

// models 取得指定金鑰的連線，空金鑰時退回伺服器金鑰
func (c *Client) models(ctx context.Context, apiKey string) (ModelsAPI, error) {
	if apiKey == "" {
		apiKey = c.cfg.APIKey
	}
	if apiKey == "" {
		return nil, common.NewPermissionError("尚未設定 Gemini API key", nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.clients[apiKey]; ok {
		return m, nil
	}
	m, err := c.connect(ctx, apiKey)
	if err != nil {
		return nil, common.NewTransportError("無法建立 Gemini 連線", err)
	}
	c.clients[apiKey] = m
	return m, nil
}

// retryWithBackoff 以指數退避重試暫時性錯誤；權限、欄位缺漏等錯誤不重試
func retryWithBackoff[T any](ctx context.Context, c *Client, kind string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := c.cfg.Backoff * time.Duration(1<<uint(attempt-1))
			common.LogWarn("Gemini 請求重試",
				zap.String("kind", kind),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", c.cfg.MaxRetries),
				zap.Duration("wait", wait),
				zap.Error(lastErr),
			)
			recordRetry(kind)

			select {
			case <-ctx.Done():
				return zero, common.NewTransportError("請求已取消", ctx.Err())
			case <-time.After(wait):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		result, err := op(callCtx)
		cancel()
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !shouldRetry(ctx, err) {
			return zero, err
		}
	}

	return zero, lastErr
}

package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"recipe-content-studio/internal/core/content"
	"recipe-content-studio/internal/infrastructure/metrics"
	"recipe-content-studio/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	providerName   = "openrouter"
)

// Config OpenRouter 文字生成設定
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	MaxTokens  int
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
}

// Client OpenRouter 文字生成客戶端（JSON 模式）
type Client struct {
	config Config
	client *resty.Client
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []message         `json:"messages"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// NewClient 創建 OpenRouter 客戶端
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.APIKey)).
		SetHeader("HTTP-Referer", "https://recipe-content-studio.local").
		SetHeader("X-Title", "Recipe Content Studio").
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(cfg.Backoff).
		SetRetryMaxWaitTime(cfg.Backoff * 8).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return r == nil || r.Request == nil || r.Request.Context().Err() == nil
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		}).
		AddRetryHook(func(r *resty.Response, err error) {
			metrics.RecordAIRetry(providerName, "text")
		})

	return &Client{
		config: cfg,
		client: client,
	}
}

// GenerateText 生成食譜發布素材；OpenRouter 不支援 responseSchema，結構改由提示詞描述
func (c *Client) GenerateText(ctx context.Context, recipeName string, mode content.Mode, fields []content.Field) (*content.GeneratedContent, error) {
	start := time.Now()
	result, err := c.generate(ctx, recipeName, mode, fields)
	elapsed := time.Since(start)

	common.LogAICall(providerName, "text", c.config.Model, elapsed, err)
	metrics.RecordAICall(providerName, "text", err, elapsed.Seconds())
	return result, err
}

func (c *Client) generate(ctx context.Context, recipeName string, mode content.Mode, fields []content.Field) (*content.GeneratedContent, error) {
	specs, err := content.Specs(fields)
	if err != nil {
		return nil, common.NewValidationError(err.Error())
	}

	prompt := content.BuildPrompt(recipeName, mode, specs) +
		"\nВерни ТОЛЬКО JSON-объект следующей структуры, без пояснений:\n" + content.JSONShape(specs)

	req := chatRequest{
		Model: c.config.Model,
		Messages: []message{
			{Role: "user", Content: prompt},
		},
		MaxTokens:      c.config.MaxTokens,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	common.LogDebug("OpenRouter 請求",
		zap.String("model", c.config.Model),
		zap.String("mode", string(mode)),
		zap.Int("fields", len(specs)),
	)

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		Post("/chat/completions")
	if err != nil {
		return nil, common.NewTransportError("無法連線 OpenRouter", err)
	}

	switch {
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return nil, common.NewPermissionError("OpenRouter 權限不足", fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()))
	case resp.StatusCode() != http.StatusOK:
		return nil, common.NewTransportError("OpenRouter 回傳錯誤", fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()))
	}

	var result chatResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, common.NewEmptyResponseError("無法解析 OpenRouter 回應", err)
	}
	if result.Error != nil {
		return nil, common.NewTransportError("OpenRouter 回傳錯誤", fmt.Errorf("code %d: %s", result.Error.Code, result.Error.Message))
	}
	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return nil, common.NewEmptyResponseError("OpenRouter 沒有回傳內容", nil)
	}

	return content.Decode(result.Choices[0].Message.Content, fields)
}

package gemini

import (
	"context"
	"encoding/base64"
	"time"

	"recipe-content-studio/internal/core/content"
	"recipe-content-studio/internal/infrastructure/metrics"
	"recipe-content-studio/internal/pkg/common"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// KeySource 提供工作階段所選擇的 API key
type KeySource interface {
	SelectedKey(ctx context.Context) (string, error)
}

// GenerateImageWithKey 以指定金鑰生成封面；回傳 data URI
func (c *Client) GenerateImageWithKey(ctx context.Context, apiKey, prompt, recipeName string, ratio content.AspectRatio) (string, error) {
	full := content.ThumbnailPrompt(prompt, recipeName, ratio)
	config := &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{
			AspectRatio: string(ratio),
			ImageSize:   c.cfg.ImageSize,
		},
	}

	common.LogInfo("開始生成封面圖片",
		zap.String("recipe", recipeName),
		zap.String("ratio", string(ratio)),
	)

	start := time.Now()
	uri, err := retryWithBackoff(ctx, c, "image", func(ctx context.Context) (string, error) {
		models, err := c.models(ctx, apiKey)
		if err != nil {
			return "", err
		}
		resp, err := models.GenerateContent(ctx, c.cfg.ImageModel, genai.Text(full), config)
		if err != nil {
			return "", classify("圖片生成", err)
		}
		return extractImage(resp)
	})

	elapsed := time.Since(start)
	common.LogAICall(providerName, "image", c.cfg.ImageModel, elapsed, err)
	metrics.RecordAICall(providerName, "image", err, elapsed.Seconds())
	return uri, err
}

// extractImage 取出第一個 inline 圖片
func extractImage(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", common.NewTransportError("Gemini 沒有回傳圖片", nil)
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", common.NewTransportError("圖片生成被安全過濾器阻擋", nil)
	}
	for _, part := range candidate.Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		mimeType := part.InlineData.MIMEType
		if mimeType == "" {
			mimeType = "image/png"
		}
		return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(part.InlineData.Data), nil
	}
	return "", common.NewTransportError("Gemini 回應中沒有圖片資料", nil)
}

// ImageGenerator 綁定工作階段金鑰來源的圖片生成器
type ImageGenerator struct {
	client *Client
	keys   KeySource
}

// NewImageGenerator 創建綁定金鑰來源的圖片生成器；keys 為 nil 時使用伺服器金鑰
func NewImageGenerator(client *Client, keys KeySource) *ImageGenerator {
	return &ImageGenerator{client: client, keys: keys}
}

// GenerateImage 使用工作階段選擇的金鑰生成封面
func (g *ImageGenerator) GenerateImage(ctx context.Context, prompt, recipeName string, ratio content.AspectRatio) (string, error) {
	var key string
	if g.keys != nil {
		k, err := g.keys.SelectedKey(ctx)
		if err != nil {
			return "", common.NewTransportError("讀取 API key 失敗", err)
		}
		key = k
	}
	return g.client.GenerateImageWithKey(ctx, key, prompt, recipeName, ratio)
}

package gemini

import (
	"context"
	"time"

	"recipe-content-studio/internal/core/content"
	"recipe-content-studio/internal/infrastructure/metrics"
	"recipe-content-studio/internal/pkg/common"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// BuildSchema 由欄位目錄產生 responseSchema，所有請求欄位皆為必填
func BuildSchema(specs []content.FieldSpec) *genai.Schema {
	props := make(map[string]*genai.Schema, len(specs))
	required := make([]string, 0, len(specs))
	ordering := make([]string, 0, len(specs))
	for _, s := range specs {
		key := string(s.Field)
		props[key] = kindSchema(s.Kind)
		required = append(required, key)
		ordering = append(ordering, key)
	}
	return &genai.Schema{
		Type:             genai.TypeObject,
		Properties:       props,
		Required:         required,
		PropertyOrdering: ordering,
	}
}

func kindSchema(k content.Kind) *genai.Schema {
	str := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: desc}
	}
	switch k {
	case content.KindStringList:
		return &genai.Schema{Type: genai.TypeArray, Items: str("")}
	case content.KindPostList:
		return &genai.Schema{
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"platform": str("Platform (e.g., VK, Telegram, Instagram, TikTok)"),
					"type":     str("Type of post (e.g., Full Publication, Post, Reels Caption)"),
					"text":     str("The post content"),
				},
				Required: []string{"platform", "type", "text"},
			},
		}
	case content.KindIngredientList:
		return &genai.Schema{
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"name":     str(""),
					"quantity": str(""),
					"unit":     str(""),
				},
				Required: []string{"name", "quantity", "unit"},
			},
		}
	default:
		return str("")
	}
}

// GenerateText 生成食譜發布素材；fields 為空代表全部欄位
func (c *Client) GenerateText(ctx context.Context, recipeName string, mode content.Mode, fields []content.Field) (*content.GeneratedContent, error) {
	specs, err := content.Specs(fields)
	if err != nil {
		return nil, common.NewValidationError(err.Error())
	}

	prompt := content.BuildPrompt(recipeName, mode, specs)
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   BuildSchema(specs),
	}

	common.LogInfo("開始生成文字內容",
		zap.String("recipe", recipeName),
		zap.String("mode", string(mode)),
		zap.Int("fields", len(specs)),
	)

	start := time.Now()
	result, err := retryWithBackoff(ctx, c, "text", func(ctx context.Context) (*content.GeneratedContent, error) {
		models, err := c.models(ctx, "")
		if err != nil {
			return nil, err
		}
		resp, err := models.GenerateContent(ctx, c.cfg.TextModel, genai.Text(prompt), config)
		if err != nil {
			return nil, classify("文字生成", err)
		}
		if resp == nil {
			return nil, common.NewEmptyResponseError("Gemini 沒有回傳內容", nil)
		}
		return content.Decode(resp.Text(), fields)
	})

	elapsed := time.Since(start)
	common.LogAICall(providerName, "text", c.cfg.TextModel, elapsed, err)
	metrics.RecordAICall(providerName, "text", err, elapsed.Seconds())
	return result, err
}

package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"recipe-content-studio/internal/pkg/common"
)

var jsonNull = []byte("null")

// Decode 解析模型回應並逐欄驗證。
// 只會填入請求的欄位；空回應或無法解析回傳 EmptyResponseError，
// 缺少欄位、欄位為 null 或型別不符回傳 SchemaError。
func Decode(raw string, fields []Field) (*GeneratedContent, error) {
	specs, err := Specs(fields)
	if err != nil {
		return nil, common.NewValidationError(err.Error())
	}

	body := strings.TrimSpace(raw)
	if body == "" {
		return nil, common.NewEmptyResponseError("模型沒有回傳內容", nil)
	}

	var obj map[string]json.RawMessage
	extracted := common.ExtractJSONObject(body)
	if err := common.ParseJSON(extracted, &obj); err != nil {
		// 模型偶爾輸出未加引號的鍵
		obj = nil
		if common.ParseJSON(common.QuoteJSONKeys(extracted), &obj) != nil {
			return nil, common.NewEmptyResponseError("模型回傳的 JSON 無法解析", err)
		}
	}
	if obj == nil {
		return nil, common.NewEmptyResponseError("模型回傳空物件", nil)
	}

	out := &GeneratedContent{}
	for _, s := range specs {
		val, ok := obj[string(s.Field)]
		if !ok || bytes.Equal(bytes.TrimSpace(val), jsonNull) {
			return nil, common.NewSchemaError(fmt.Sprintf("回應缺少必要欄位: %s", s.Field))
		}
		if err := assign(out, s.Field, val); err != nil {
			return nil, common.NewSchemaError(fmt.Sprintf("欄位 %s 格式錯誤: %v", s.Field, err))
		}
	}
	return out, nil
}

func assign(c *GeneratedContent, f Field, val json.RawMessage) error {
	var target interface{}
	switch f {
	case FieldYoutubeTitle:
		target = &c.YoutubeTitle
	case FieldYoutubeDescription:
		target = &c.YoutubeDescription
	case FieldYoutubeTags:
		target = &c.YoutubeTags
	case FieldSocialMediaPosts:
		target = &c.SocialMediaPosts
	case FieldIngredients:
		target = &c.Ingredients
	case FieldInstructions:
		target = &c.Instructions
	case FieldThumbnailDescription:
		target = &c.ThumbnailDescription
	case FieldOptimalPublishingSchedule:
		target = &c.OptimalPublishingSchedule
	case FieldPromotionTips:
		target = &c.PromotionTips
	default:
		return fmt.Errorf("unknown field %q", f)
	}
	return json.Unmarshal(val, target)
}

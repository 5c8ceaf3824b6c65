package content

import (
	"strings"

	"recipe-content-studio/internal/pkg/common"
)

// Mode 內容模式
type Mode string

const (
	ModeStandard Mode = "standard" // 一般長影片
	ModeShort    Mode = "short"    // Shorts / Reels / TikTok
)

// ParseMode 解析內容模式，空字串視為 standard
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.TrimSpace(s)) {
	case "", ModeStandard:
		return ModeStandard, nil
	case ModeShort:
		return ModeShort, nil
	}
	return "", common.NewValidationError("未知的內容模式: " + s)
}

// AspectRatio 圖片長寬比
type AspectRatio string

const (
	Ratio16x9 AspectRatio = "16:9"
	Ratio9x16 AspectRatio = "9:16"
	Ratio1x1  AspectRatio = "1:1"
)

// RatioFor 依內容模式決定封面比例
func RatioFor(mode Mode) AspectRatio {
	if mode == ModeShort {
		return Ratio9x16
	}
	return Ratio16x9
}

// Valid 是否為支援的比例
func (r AspectRatio) Valid() bool {
	switch r {
	case Ratio16x9, Ratio9x16, Ratio1x1:
		return true
	}
	return false
}

// NormalizeRecipeName 去除前後空白，空名稱回傳驗證錯誤
func NormalizeRecipeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", common.NewValidationError("請輸入食譜名稱")
	}
	return trimmed, nil
}

// Ingredient 食材
type Ingredient struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
	Unit     string `json:"unit"`
}

// SocialMediaPost 社群貼文
type SocialMediaPost struct {
	Platform string `json:"platform"` // VK, Telegram, Instagram, TikTok
	Type     string `json:"type"`     // Full Publication, Post, Reels Caption...
	Text     string `json:"text"`
}

// GeneratedContent 一次生成的完整發布素材
type GeneratedContent struct {
	YoutubeTitle              []string          `json:"youtubeTitle"`
	YoutubeDescription        string            `json:"youtubeDescription"`
	YoutubeTags               []string          `json:"youtubeTags"`
	SocialMediaPosts          []SocialMediaPost `json:"socialMediaPosts"`
	Ingredients               []Ingredient      `json:"ingredients"`
	Instructions              []string          `json:"instructions"`
	ThumbnailDescription      string            `json:"thumbnailDescription"`
	ThumbnailImageURL         string            `json:"thumbnailImageUrl,omitempty"`
	OptimalPublishingSchedule string            `json:"optimalPublishingSchedule,omitempty"`
	PromotionTips             string            `json:"promotionTips,omitempty"`
}

// Clone 深拷貝，快照不與內部狀態共用切片
func (c *GeneratedContent) Clone() *GeneratedContent {
	if c == nil {
		return nil
	}
	out := *c
	out.YoutubeTitle = append([]string(nil), c.YoutubeTitle...)
	out.YoutubeTags = append([]string(nil), c.YoutubeTags...)
	out.SocialMediaPosts = append([]SocialMediaPost(nil), c.SocialMediaPosts...)
	out.Ingredients = append([]Ingredient(nil), c.Ingredients...)
	out.Instructions = append([]string(nil), c.Instructions...)
	return &out
}

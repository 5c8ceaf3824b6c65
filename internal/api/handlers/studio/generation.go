package studio

import (
	"net/http"
	"net/url"

	"recipe-content-studio/internal/core/content"
	"recipe-content-studio/internal/core/image"
	"recipe-content-studio/internal/core/workflow"
	"recipe-content-studio/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GenerateRequest 產生內容
type GenerateRequest struct {
	RecipeName string `json:"recipe_name"`
	Mode       string `json:"mode,omitempty"` // standard | short
}

// ThumbnailRequest 重新產生封面
type ThumbnailRequest struct {
	UseCustomPrompt bool `json:"use_custom_prompt"`
}

// DescriptionRequest 編輯描述
type DescriptionRequest struct {
	Text string `json:"text"`
}

// PromptRequest 自訂封面提示詞
type PromptRequest struct {
	Prompt string `json:"prompt"`
}

// ImageModeRequest 封面產生方式
type ImageModeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// CredentialRequest 選擇 API key
type CredentialRequest struct {
	APIKey string `json:"api_key"`
}

// Generate 產生完整內容與封面
func (h *Handler) Generate(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req GenerateRequest
	if !bind(c, &req) {
		return
	}
	mode, err := content.ParseMode(req.Mode)
	if err != nil {
		common.WriteError(c, err, nil)
		return
	}

	common.LogInfo("開始處理內容生成請求",
		zap.String("session_id", s.ID),
		zap.String("request_id", requestid.Get(c)),
		zap.String("mode", string(mode)),
	)

	respond(c, s, s.Workflow.Generate(c.Request.Context(), req.RecipeName, mode))
}

// RegenerateThumbnail 只重新產生封面
func (h *Handler) RegenerateThumbnail(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req ThumbnailRequest
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}

	respond(c, s, s.Workflow.RegenerateThumbnail(c.Request.Context(), req.UseCustomPrompt))
}

// RegenerateDescription 只重新產生影片描述
func (h *Handler) RegenerateDescription(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req GenerateRequest
	if !bind(c, &req) {
		return
	}
	mode, err := content.ParseMode(req.Mode)
	if err != nil {
		common.WriteError(c, err, nil)
		return
	}

	respond(c, s, s.Workflow.RegenerateDescription(c.Request.Context(), req.RecipeName, mode))
}

// EditDescription 使用者編輯描述
func (h *Handler) EditDescription(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req DescriptionRequest
	if !bind(c, &req) {
		return
	}
	respond(c, s, s.Workflow.EditDescription(req.Text))
}

// DescriptionPreview 以 HTML 預覽可編輯描述
func (h *Handler) DescriptionPreview(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	snap := s.Workflow.Snapshot()
	if snap.Content == nil {
		common.WriteError(c, common.NewPreconditionError("尚未產生內容"), nil)
		return
	}

	html, err := content.RenderMarkdown(snap.EditableDescription)
	if err != nil {
		common.WriteError(c, err, nil)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// SetThumbnailPrompt 設定自訂封面提示詞
func (h *Handler) SetThumbnailPrompt(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req PromptRequest
	if !bind(c, &req) {
		return
	}
	s.Workflow.SetCustomPrompt(req.Prompt)
	respond(c, s, nil)
}

// SetImageMode 切換遠端 / 本地封面
func (h *Handler) SetImageMode(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req ImageModeRequest
	if !bind(c, &req) {
		return
	}
	mode, err := workflow.ParseImageMode(req.Mode)
	if err != nil {
		common.WriteError(c, err, nil)
		return
	}
	s.Workflow.SetImageMode(mode)
	respond(c, s, nil)
}

// SelectCredential 選擇 API key，成功時恢復暫停的封面步驟
func (h *Handler) SelectCredential(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req CredentialRequest
	if !bind(c, &req) {
		return
	}
	respond(c, s, s.Workflow.ResolveCredential(c.Request.Context(), req.APIKey))
}

// AbandonCredential 放棄選擇 API key
func (h *Handler) AbandonCredential(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.Workflow.AbandonCredential()
	respond(c, s, nil)
}

// DownloadThumbnail 下載 PNG 封面
func (h *Handler) DownloadThumbnail(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	snap := s.Workflow.Snapshot()
	if snap.Content == nil || snap.Content.ThumbnailImageURL == "" {
		common.WriteError(c, common.ErrNoThumbnail, nil)
		return
	}

	data, err := h.images.ToPNG(snap.Content.ThumbnailImageURL)
	if err != nil {
		common.LogError("封面轉換失敗", zap.String("session_id", s.ID), zap.Error(err))
		common.WriteError(c, err, nil)
		return
	}

	name := image.DownloadName(snap.RecipeName)
	c.Header("Content-Disposition", `attachment; filename="thumbnail.png"; filename*=UTF-8''`+url.PathEscape(name))
	c.Data(http.StatusOK, "image/png", data)
}

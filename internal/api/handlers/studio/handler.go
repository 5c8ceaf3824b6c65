package studio

import (
	"context"
	"errors"
	"net/http"

	"recipe-content-studio/internal/core/image"
	"recipe-content-studio/internal/core/session"
	"recipe-content-studio/internal/core/workflow"
	"recipe-content-studio/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Sessions 工作階段管理
type Sessions interface {
	Create(ctx context.Context) (*session.Session, error)
	Get(id string) (*session.Session, error)
	Delete(ctx context.Context, id string) error
}

// Handler 內容工作室處理程序
type Handler struct {
	sessions Sessions
	images   *image.Service
}

// NewHandler 創建處理程序
func NewHandler(sessions Sessions, images *image.Service) *Handler {
	return &Handler{sessions: sessions, images: images}
}

// Register 註冊路由；generation 套用在會呼叫遠端生成的路由上
func (h *Handler) Register(rg *gin.RouterGroup, generation ...gin.HandlerFunc) {
	gen := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, generation...), handler)
	}

	rg.POST("/sessions", h.CreateSession)

	s := rg.Group("/sessions/:id")
	{
		s.GET("", h.GetSession)
		s.DELETE("", h.DeleteSession)

		s.POST("/generate", gen(h.Generate)...)
		s.POST("/thumbnail", gen(h.RegenerateThumbnail)...)
		s.GET("/thumbnail.png", h.DownloadThumbnail)
		s.PUT("/thumbnail-prompt", h.SetThumbnailPrompt)
		s.PUT("/image-mode", h.SetImageMode)

		s.POST("/description/regenerate", gen(h.RegenerateDescription)...)
		s.PUT("/description", h.EditDescription)
		s.GET("/description.html", h.DescriptionPreview)

		s.POST("/credential", gen(h.SelectCredential)...)
		s.DELETE("/credential", h.AbandonCredential)

		s.GET("/carousel", h.GetCarousel)
		s.POST("/carousel/drag/start", h.DragStart)
		s.POST("/carousel/drag/move", h.DragMove)
		s.POST("/carousel/drag/end", h.DragEnd)
		s.POST("/carousel/drag/cancel", h.DragCancel)
		s.POST("/carousel/drag/leave", h.DragLeave)
		s.POST("/carousel/jump", h.Jump)
		s.POST("/carousel/resize", h.Resize)
	}
}

// session 取得路徑中的工作階段；找不到時已寫入錯誤響應
func (h *Handler) session(c *gin.Context) (*session.Session, bool) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		common.WriteError(c, err, nil)
		return nil, false
	}
	return s, true
}

// bind 解析 JSON 請求體；失敗時已寫入錯誤響應
func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		if limit, ok := common.RequestBodyLimit(err); ok {
			common.WriteError(c, common.NewRequestTooLargeError(limit, err), gin.H{"max_size": limit})
			return false
		}
		common.LogWarn("請求格式無效",
			zap.Error(err),
			zap.String("request_id", requestid.Get(c)),
		)
		common.WriteError(c, common.NewError(common.ErrCodeInvalidRequest, "請求格式無效", http.StatusBadRequest, err), nil)
		return false
	}
	return true
}

// respond 成功時回傳快照；失敗時回傳錯誤與快照
func respond(c *gin.Context, s *session.Session, err error) {
	if err == nil {
		c.JSON(http.StatusOK, s.Snapshot())
		return
	}

	if errors.Is(err, workflow.ErrSuperseded) {
		c.JSON(http.StatusConflict, gin.H{
			"code":    "SUPERSEDED",
			"message": err.Error(),
			"session": s.Snapshot(),
		})
		return
	}

	common.LogWarn("操作失敗",
		zap.String("session_id", s.ID),
		zap.String("request_id", requestid.Get(c)),
		zap.Error(err),
	)
	common.WriteError(c, err, gin.H{"session": s.Snapshot()})
}

// CreateSession 建立工作階段
func (h *Handler) CreateSession(c *gin.Context) {
	s, err := h.sessions.Create(c.Request.Context())
	if err != nil {
		common.WriteError(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, s.Snapshot())
}

// GetSession 取得工作階段快照
func (h *Handler) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

// DeleteSession 結束工作階段
func (h *Handler) DeleteSession(c *gin.Context) {
	if err := h.sessions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		common.WriteError(c, err, nil)
		return
	}
	c.Status(http.StatusNoContent)
}

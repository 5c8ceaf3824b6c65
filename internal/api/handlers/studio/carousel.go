package studio

import (
	"net/http"

	"recipe-content-studio/internal/core/carousel"
	"recipe-content-studio/internal/core/session"
	"recipe-content-studio/internal/pkg/common"

	"github.com/gin-gonic/gin"
)

// DragRequest 拖曳事件
type DragRequest struct {
	Source      string  `json:"source" binding:"required"` // mouse | touch
	X           float64 `json:"x"`
	Interactive bool    `json:"interactive,omitempty"`
}

// JumpRequest 指示點跳頁
type JumpRequest struct {
	Index *int `json:"index" binding:"required"`
}

// ResizeRequest 視窗尺寸變更
type ResizeRequest struct {
	Width float64 `json:"width"`
}

// CarouselResponse 輪播狀態；Handled 表示前端應阻止預設行為
type CarouselResponse struct {
	Handled  bool           `json:"handled"`
	Carousel carousel.State `json:"carousel"`
}

func carouselJSON(c *gin.Context, s *session.Session, handled bool) {
	c.JSON(http.StatusOK, CarouselResponse{Handled: handled, Carousel: s.Carousel.Snapshot()})
}

// GetCarousel 取得輪播狀態
func (h *Handler) GetCarousel(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	carouselJSON(c, s, false)
}

func (h *Handler) drag(c *gin.Context, apply func(*carousel.Carousel, carousel.Source, DragRequest) bool) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req DragRequest
	if !bind(c, &req) {
		return
	}
	source, err := carousel.ParseSource(req.Source)
	if err != nil {
		common.WriteError(c, err, nil)
		return
	}
	carouselJSON(c, s, apply(s.Carousel, source, req))
}

// DragStart 開始拖曳
func (h *Handler) DragStart(c *gin.Context) {
	h.drag(c, func(cr *carousel.Carousel, src carousel.Source, req DragRequest) bool {
		return cr.DragStart(src, req.X, req.Interactive)
	})
}

// DragMove 拖曳移動
func (h *Handler) DragMove(c *gin.Context) {
	h.drag(c, func(cr *carousel.Carousel, src carousel.Source, req DragRequest) bool {
		return cr.DragMove(src, req.X)
	})
}

func (h *Handler) finish(c *gin.Context, end func(*carousel.Carousel)) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	end(s.Carousel)
	carouselJSON(c, s, false)
}

// DragEnd 放開指標
func (h *Handler) DragEnd(c *gin.Context) { h.finish(c, (*carousel.Carousel).DragEnd) }

// DragCancel 觸控取消
func (h *Handler) DragCancel(c *gin.Context) { h.finish(c, (*carousel.Carousel).Cancel) }

// DragLeave 指標離開
func (h *Handler) DragLeave(c *gin.Context) { h.finish(c, (*carousel.Carousel).Leave) }

// Jump 點擊指示點跳頁
func (h *Handler) Jump(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req JumpRequest
	if !bind(c, &req) {
		return
	}
	if err := s.Indicator.Activate(*req.Index); err != nil {
		common.WriteError(c, err, gin.H{"carousel": s.Carousel.Snapshot()})
		return
	}
	carouselJSON(c, s, false)
}

// Resize 更新頁寬
func (h *Handler) Resize(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req ResizeRequest
	if !bind(c, &req) {
		return
	}
	if err := s.SetWidth(req.Width); err != nil {
		common.WriteError(c, err, nil)
		return
	}
	carouselJSON(c, s, false)
}

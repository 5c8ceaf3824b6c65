package session

import (
	"context"
	"sync"
	"time"

	"recipe-content-studio/internal/core/carousel"
	"recipe-content-studio/internal/core/credential"
	"recipe-content-studio/internal/core/workflow"
	"recipe-content-studio/internal/pkg/common"
)

// RemoteImageFactory 以工作階段的憑證 port 建立遠端封面生成端
type RemoteImageFactory func(port *credential.SessionPort) workflow.ImageGenerator

// Deps 建立工作階段所需的共用元件
type Deps struct {
	Text        workflow.TextGenerator
	RemoteImage RemoteImageFactory // nil 表示沒有遠端封面
	LocalImage  workflow.ImageGenerator
	Keys        credential.KeyStore

	// RequiresCredential 遠端封面是否需要使用者選擇的 API key
	RequiresCredential bool
	ImageMode          workflow.ImageMode

	Pages        []carousel.Page
	StartIndex   int
	DefaultWidth float64
}

// Session 單一瀏覽器分頁的工作階段
type Session struct {
	ID        string
	CreatedAt time.Time

	Workflow  *workflow.Workflow
	Carousel  *carousel.Carousel
	Indicator *carousel.Indicator
	Port      *credential.SessionPort

	mu    sync.RWMutex
	width float64
}

func newSession(id string, deps Deps, now time.Time) (*Session, error) {
	s := &Session{
		ID:        id,
		CreatedAt: now,
		Port:      credential.NewSessionPort(deps.Keys, id),
		width:     deps.DefaultWidth,
	}

	pages := deps.Pages
	if len(pages) == 0 {
		pages = carousel.DefaultPages()
	}
	c, err := carousel.New(pages, deps.StartIndex, s.Width)
	if err != nil {
		return nil, err
	}
	s.Carousel = c
	s.Indicator = carousel.NewIndicator(c)

	var remote workflow.ImageGenerator
	if deps.RemoteImage != nil {
		remote = deps.RemoteImage(s.Port)
	}
	s.Workflow = workflow.New(workflow.Options{
		Text:               deps.Text,
		Image:              remote,
		Local:              deps.LocalImage,
		Gate:               credential.NewGate(s.Port),
		RequiresCredential: deps.RequiresCredential,
		ImageMode:          deps.ImageMode,
	})
	return s, nil
}

// Width 目前頁寬
func (s *Session) Width() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.width
}

// SetWidth 視窗尺寸變更
func (s *Session) SetWidth(width float64) error {
	if width <= 0 {
		return common.NewValidationError("頁寬必須大於 0")
	}
	s.mu.Lock()
	s.width = width
	s.mu.Unlock()
	return nil
}

// Snapshot 工作階段快照
type Snapshot struct {
	ID       string            `json:"id"`
	Workflow workflow.Snapshot `json:"workflow"`
	Carousel carousel.State    `json:"carousel"`
}

// Snapshot 取得工作階段快照
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ID:       s.ID,
		Workflow: s.Workflow.Snapshot(),
		Carousel: s.Carousel.Snapshot(),
	}
}

// release 移除工作階段時清掉已選擇的 API key
func (s *Session) release(ctx context.Context) error {
	s.Workflow.AbandonCredential()
	return s.Port.Clear(ctx)
}

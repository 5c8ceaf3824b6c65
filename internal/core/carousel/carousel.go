package carousel

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"recipe-content-studio/internal/infrastructure/metrics"
	"recipe-content-studio/internal/pkg/common"

	"go.uber.org/zap"
)

// SwipeThreshold 換頁所需的拖曳距離（頁寬比例）
const SwipeThreshold = 0.2

// Source 拖曳輸入來源
type Source string

const (
	SourceMouse Source = "mouse"
	SourceTouch Source = "touch"
)

// ParseSource 解析輸入來源
func ParseSource(s string) (Source, error) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case SourceMouse:
		return SourceMouse, nil
	case SourceTouch:
		return SourceTouch, nil
	}
	return "", common.NewValidationError("未知的輸入來源: " + s)
}

// Page 輪播中的一頁；Component 為前端路由鍵
type Page struct {
	Name      string `json:"name"`
	Component string `json:"component"`
}

// DefaultPages 預設頁面，起始頁為 DefaultStartIndex
func DefaultPages() []Page {
	return []Page{
		{Name: "Главная", Component: "home"},
		{Name: "Генератор Рецептов", Component: "generator"},
		{Name: "О нас", Component: "about"},
	}
}

// DefaultStartIndex 預設起始頁（生成器）
const DefaultStartIndex = 1

// Measure 提供目前頁寬，每次需要時重新讀取
type Measure func() float64

// ChangeFunc 頁面切換通知
type ChangeFunc func(index int)

// Carousel 拖曳換頁狀態機，滑鼠與觸控共用
type Carousel struct {
	pages   []Page
	measure Measure

	mu        sync.Mutex
	index     int
	dragging  bool
	source    Source
	anchorX   float64
	liveX     float64
	listeners []ChangeFunc
}

// New 創建輪播；頁面為空或起始頁越界時回傳 ConfigError
func New(pages []Page, startIndex int, measure Measure) (*Carousel, error) {
	if len(pages) == 0 {
		return nil, common.NewConfigError("輪播至少需要一頁")
	}
	if startIndex < 0 || startIndex >= len(pages) {
		return nil, common.NewConfigError(fmt.Sprintf("起始頁 %d 超出範圍 [0, %d)", startIndex, len(pages)))
	}
	if measure == nil {
		return nil, common.NewConfigError("缺少頁寬來源")
	}

	ps := make([]Page, len(pages))
	copy(ps, pages)
	return &Carousel{
		pages:   ps,
		measure: measure,
		index:   startIndex,
	}, nil
}

// Pages 頁面列表副本
func (c *Carousel) Pages() []Page {
	ps := make([]Page, len(c.pages))
	copy(ps, c.pages)
	return ps
}

// ActiveIndex 目前頁索引
func (c *Carousel) ActiveIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// OnChange 註冊頁面切換通知，只在索引改變時觸發
func (c *Carousel) OnChange(fn ChangeFunc) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// DragStart 開始拖曳。目標為互動元素或已在拖曳中時忽略並回傳 false；
// 回傳 true 表示呼叫端應阻止預設行為。
func (c *Carousel) DragStart(source Source, x float64, interactiveTarget bool) bool {
	if interactiveTarget {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dragging {
		common.LogDebug("拖曳進行中，忽略重複的開始事件",
			zap.String("source", string(source)),
			zap.String("active_source", string(c.source)),
		)
		return false
	}
	c.dragging = true
	c.source = source
	c.anchorX = x
	c.liveX = x
	return true
}

// DragMove 更新拖曳位置，不觸發換頁通知
func (c *Carousel) DragMove(source Source, x float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dragging || source != c.source {
		return false
	}
	c.liveX = x
	return true
}

// DragEnd 結束拖曳並依位移決定是否換頁；Cancel 與 Leave 走同一路徑
func (c *Carousel) DragEnd() {
	c.mu.Lock()
	if !c.dragging {
		c.mu.Unlock()
		return
	}

	diff := c.liveX - c.anchorX
	threshold := c.measure() * SwipeThreshold
	prev := c.index
	switch {
	case diff > threshold && c.index > 0:
		c.index--
	case diff < -threshold && c.index < len(c.pages)-1:
		c.index++
	}
	c.dragging = false
	c.source = ""
	c.anchorX, c.liveX = 0, 0

	index := c.index
	listeners := c.changedListeners(prev)
	c.mu.Unlock()

	if prev != index {
		metrics.RecordNavigation("swipe")
	}
	notify(listeners, index)
}

// Cancel 觸控取消
func (c *Carousel) Cancel() { c.DragEnd() }

// Leave 指標離開輪播區域
func (c *Carousel) Leave() { c.DragEnd() }

// JumpTo 直接切換到指定頁，越界時回傳 RangeError
func (c *Carousel) JumpTo(index int) error {
	c.mu.Lock()
	if index < 0 || index >= len(c.pages) {
		c.mu.Unlock()
		return common.NewRangeError(fmt.Sprintf("頁索引 %d 超出範圍 [0, %d)", index, len(c.pages)))
	}
	prev := c.index
	c.index = index
	listeners := c.changedListeners(prev)
	c.mu.Unlock()

	if prev != index {
		metrics.RecordNavigation("jump")
	}
	notify(listeners, index)
	return nil
}

// changedListeners 索引有變時回傳需通知的監聽者；需持有鎖
func (c *Carousel) changedListeners(prev int) []ChangeFunc {
	if prev == c.index || len(c.listeners) == 0 {
		return nil
	}
	ls := make([]ChangeFunc, len(c.listeners))
	copy(ls, c.listeners)
	return ls
}

func notify(listeners []ChangeFunc, index int) {
	for _, fn := range listeners {
		fn(index)
	}
}

// offset 需持有鎖
func (c *Carousel) offset() float64 {
	off := float64(c.index) * -c.measure()
	if c.dragging {
		off += c.liveX - c.anchorX
	}
	if off == 0 {
		// 避免 -0
		return 0
	}
	return off
}

// Offset 目前水平位移（px）
func (c *Carousel) Offset() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset()
}

// Transform CSS 位移字串，以及是否套用吸附動畫（只在靜止時）
func (c *Carousel) Transform() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return translateX(c.offset()), !c.dragging
}

func translateX(offset float64) string {
	return "translateX(" + strconv.FormatFloat(offset, 'f', -1, 64) + "px)"
}

// State 輪播快照
type State struct {
	ActiveIndex int     `json:"active_index"`
	Pages       []Page  `json:"pages"`
	Width       float64 `json:"width"`
	Dragging    bool    `json:"dragging"`
	Source      Source  `json:"source,omitempty"`
	AnchorX     float64 `json:"anchor_x,omitempty"`
	LiveX       float64 `json:"live_x,omitempty"`
	Offset      float64 `json:"offset"`
	Transform   string  `json:"transform"`
	Eased       bool    `json:"eased"`
	Dots        []Dot   `json:"dots"`
}

// Snapshot 取得目前狀態
func (c *Carousel) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	off := c.offset()
	return State{
		ActiveIndex: c.index,
		Pages:       c.Pages(),
		Width:       c.measure(),
		Dragging:    c.dragging,
		Source:      c.source,
		AnchorX:     c.anchorX,
		LiveX:       c.liveX,
		Offset:      off,
		Transform:   translateX(off),
		Eased:       !c.dragging,
		Dots:        dots(len(c.pages), c.index),
	}
}

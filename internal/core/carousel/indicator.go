package carousel

import "fmt"

// Dot 頁面指示點
type Dot struct {
	Index  int    `json:"index"`
	Active bool   `json:"active"`
	Label  string `json:"label"`
}

// Indicator 頁面指示器，點擊後跳頁
type Indicator struct {
	carousel *Carousel
}

// NewIndicator 創建指示器
func NewIndicator(c *Carousel) *Indicator {
	return &Indicator{carousel: c}
}

// Dots 每頁一個指示點
func (i *Indicator) Dots() []Dot {
	return dots(len(i.carousel.pages), i.carousel.ActiveIndex())
}

// Activate 跳到指定頁
func (i *Indicator) Activate(index int) error {
	return i.carousel.JumpTo(index)
}

func dots(n, active int) []Dot {
	ds := make([]Dot, n)
	for idx := range ds {
		ds[idx] = Dot{
			Index:  idx,
			Active: idx == active,
			Label:  fmt.Sprintf("Перейти на страницу %d", idx+1),
		}
	}
	return ds
}

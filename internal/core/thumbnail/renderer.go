package thumbnail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	"recipe-content-studio/internal/core/content"
	"recipe-content-studio/internal/pkg/common"

	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

var (
	gradientFrom = color.RGBA{0xfb, 0xcf, 0xe8, 0xff} // 淺粉
	gradientTo   = color.RGBA{0xa7, 0x8b, 0xfa, 0xff} // 淺紫
	textFill     = color.RGBA{0xff, 0xff, 0xff, 0xff}
	textStroke   = color.RGBA{0x33, 0x33, 0x33, 0xff}
)

const (
	maxLineRatio = 0.8 // 文字最大寬度佔畫布寬度比例
	lineSpacing  = 1.2
	strokeWidth  = 2
)

// Layout 封面排版結果
type Layout struct {
	Width      int
	Height     int
	FontSize   float64
	LineHeight float64
	Lines      []string
}

// Renderer 本地封面產生器，不需要任何憑證
type Renderer struct {
	font *sfnt.Font
}

// NewRenderer 創建本地封面產生器
func NewRenderer() (*Renderer, error) {
	f, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse thumbnail font: %w", err)
	}
	return &Renderer{font: f}, nil
}

// Dimensions 依比例回傳畫布尺寸
func Dimensions(ratio content.AspectRatio) (int, int, error) {
	switch ratio {
	case content.Ratio16x9:
		return 1280, 720, nil
	case content.Ratio9x16:
		return 720, 1280, nil
	case content.Ratio1x1:
		return 1000, 1000, nil
	}
	return 0, 0, common.NewValidationError(fmt.Sprintf("不支援的圖片比例: %s", ratio))
}

func (r *Renderer) newFace(size float64) (font.Face, error) {
	return opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

// Layout 計算換行與字級，同樣輸入必得相同結果
func (r *Renderer) Layout(recipeName string, ratio content.AspectRatio) (*Layout, error) {
	w, h, err := Dimensions(ratio)
	if err != nil {
		return nil, err
	}
	size := float64(min(w, h)) / 10
	face, err := r.newFace(size)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	return &Layout{
		Width:      w,
		Height:     h,
		FontSize:   size,
		LineHeight: size * lineSpacing,
		Lines:      wrap(face, recipeName, float64(w)*maxLineRatio),
	}, nil
}

// wrap 依單字換行；單一過長的單字仍獨立成一行
func wrap(face font.Face, text string, maxWidth float64) []string {
	words := strings.Split(text, " ")
	var lines []string
	line := ""
	for n, word := range words {
		test := line + word + " "
		if toFloat(font.MeasureString(face, test)) > maxWidth && n > 0 {
			lines = append(lines, strings.TrimSpace(line))
			line = word + " "
		} else {
			line = test
		}
	}
	return append(lines, strings.TrimSpace(line))
}

// Render 產生 PNG 位元組
func (r *Renderer) Render(recipeName string, ratio content.AspectRatio) ([]byte, *Layout, error) {
	layout, err := r.Layout(recipeName, ratio)
	if err != nil {
		return nil, nil, err
	}
	face, err := r.newFace(layout.FontSize)
	if err != nil {
		return nil, nil, err
	}
	defer face.Close()

	img := image.NewRGBA(image.Rect(0, 0, layout.Width, layout.Height))
	fillGradient(img)

	// 以行中線為基準，整體垂直置中
	m := face.Metrics()
	midToBaseline := toFloat(m.Ascent-m.Descent) / 2
	startY := float64(layout.Height)/2 - float64(len(layout.Lines)-1)*layout.LineHeight/2

	for i, line := range layout.Lines {
		y := startY + float64(i)*layout.LineHeight + midToBaseline
		x := (float64(layout.Width) - toFloat(font.MeasureString(face, line))) / 2

		// 先畫外框再畫填色
		for dx := -strokeWidth; dx <= strokeWidth; dx++ {
			for dy := -strokeWidth; dy <= strokeWidth; dy++ {
				if dx == 0 && dy == 0 {
					continue
				}
				drawText(img, face, line, x+float64(dx), y+float64(dy), textStroke)
			}
		}
		drawText(img, face, line, x, y, textFill)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), layout, nil
}

// GenerateImage 以本地方式產生封面，回傳 PNG data URI；提示詞不影響本地輸出
func (r *Renderer) GenerateImage(ctx context.Context, prompt, recipeName string, ratio content.AspectRatio) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", common.NewTransportError("請求已取消", err)
	}
	data, layout, err := r.Render(recipeName, ratio)
	if err != nil {
		return "", err
	}
	common.LogDebug("本地封面產生完成",
		zap.String("ratio", string(ratio)),
		zap.Int("lines", len(layout.Lines)),
		zap.Int("bytes", len(data)),
	)
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

func fillGradient(img *image.RGBA) {
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	denom := w*w + h*h
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			// 對角線 (0,0) → (w,h) 上的投影位置
			t := (float64(x)*w + float64(y)*h) / denom
			img.SetRGBA(x, y, lerp(gradientFrom, gradientTo, t))
		}
	}
}

func lerp(a, b color.RGBA, t float64) color.RGBA {
	mix := func(p, q uint8) uint8 {
		return uint8(float64(p) + (float64(q)-float64(p))*t + 0.5)
	}
	return color.RGBA{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B), 0xff}
}

func drawText(dst draw.Image, face font.Face, text string, x, y float64, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.Int26_6(x * 64), Y: fixed.Int26_6(y * 64)},
	}
	d.DrawString(text)
}

func toFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

package queue

import (
	"context"

	"recipe-content-studio/internal/core/content"
	"recipe-content-studio/internal/core/workflow"
)

// Text 經過隊列的文字生成端
type Text struct {
	m    *Manager
	next workflow.TextGenerator
}

// WrapText 讓文字生成呼叫受隊列名額限制
func WrapText(m *Manager, next workflow.TextGenerator) *Text {
	return &Text{m: m, next: next}
}

// GenerateText 實作 workflow.TextGenerator
func (t *Text) GenerateText(ctx context.Context, recipeName string, mode content.Mode, fields []content.Field) (*content.GeneratedContent, error) {
	var out *content.GeneratedContent
	err := t.m.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = t.next.GenerateText(ctx, recipeName, mode, fields)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Image 經過隊列的封面生成端
type Image struct {
	m    *Manager
	next workflow.ImageGenerator
}

// WrapImage 讓封面生成呼叫受隊列名額限制
func WrapImage(m *Manager, next workflow.ImageGenerator) *Image {
	return &Image{m: m, next: next}
}

// GenerateImage 實作 workflow.ImageGenerator
func (i *Image) GenerateImage(ctx context.Context, prompt, recipeName string, ratio content.AspectRatio) (string, error) {
	var uri string
	err := i.m.Do(ctx, func(ctx context.Context) error {
		var err error
		uri, err = i.next.GenerateImage(ctx, prompt, recipeName, ratio)
		return err
	})
	return uri, err
}

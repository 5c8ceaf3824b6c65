package image

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"strings"
	"unicode"

	_ "image/gif"  // 支援 GIF
	_ "image/jpeg" // 支援 JPEG

	"recipe-content-studio/internal/pkg/common"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp" // 支援 WebP
)

// allowedMIMEs 允許的封面格式
var allowedMIMEs = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// Service 封面圖片處理服務
type Service struct {
	maxSizeBytes int64
}

// NewService 創建新的圖片處理服務
func NewService(maxSizeBytes int64) *Service {
	return &Service{maxSizeBytes: maxSizeBytes}
}

// Decoded 解析後的封面
type Decoded struct {
	Data     []byte
	MIMEType string
}

func invalid(message string, err error) error {
	return common.NewError(common.ErrInvalidImageData.Code, message, http.StatusUnprocessableEntity, err)
}

// Decode 解析 data URI 形式的封面 handle，並以內容判斷實際格式
func (s *Service) Decode(handle string) (*Decoded, error) {
	if !strings.HasPrefix(handle, "data:image/") {
		return nil, invalid("invalid image data format", nil)
	}

	// 解析 base64 數據
	parts := strings.SplitN(handle, ",", 2)
	if len(parts) != 2 || !strings.HasSuffix(parts[0], ";base64") {
		return nil, invalid("invalid base64 data format", nil)
	}

	data, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, invalid("failed to decode base64 data", err)
	}
	if len(data) == 0 {
		return nil, invalid("image is empty", nil)
	}

	// 檢查文件大小
	if s.maxSizeBytes > 0 && int64(len(data)) > s.maxSizeBytes {
		return nil, invalid(fmt.Sprintf("image size exceeds maximum limit of %d bytes", s.maxSizeBytes), nil)
	}

	mimeType := mimetype.Detect(data).String()
	if !allowedMIMEs[mimeType] {
		return nil, invalid("unsupported mime type "+mimeType, nil)
	}

	return &Decoded{Data: data, MIMEType: mimeType}, nil
}

// ToPNG 轉成下載用的 PNG；本身已是 PNG 時直接回傳
func (s *Service) ToPNG(handle string) ([]byte, error) {
	d, err := s.Decode(handle)
	if err != nil {
		return nil, err
	}
	if d.MIMEType == "image/png" {
		return d.Data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(d.Data))
	if err != nil {
		return nil, invalid("failed to decode image", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image as PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// DownloadName 以食譜名稱產生下載檔名
func DownloadName(recipeName string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.TrimSpace(recipeName) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastUnderscore = false
		case r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	name := strings.TrimRight(b.String(), "_")
	if name == "" {
		return "thumbnail.png"
	}
	return name + "_thumbnail.png"
}

package middleware

import (
	"net/http"

	"recipe-content-studio/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BodySizeLimit 限制請求體大小。
// 宣告的 Content-Length 超過上限時直接回 413；未宣告長度的請求在讀取時截斷，
// 由 handler 透過 common.RequestBodyLimit 轉成相同的 413。
func BodySizeLimit(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := c.Request.Body
		if body == nil || body == http.NoBody {
			c.Next()
			return
		}

		if declared := c.Request.ContentLength; declared > maxSize {
			common.LogWarn("請求內容過大",
				zap.Int64("content_length", declared),
				zap.Int64("max_size", maxSize),
				zap.String("route", c.FullPath()),
				zap.String("request_id", requestid.Get(c)),
			)
			common.WriteError(c, common.NewRequestTooLargeError(maxSize, nil), gin.H{"max_size": maxSize})
			c.Abort()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, body, maxSize)
		c.Next()
	}
}

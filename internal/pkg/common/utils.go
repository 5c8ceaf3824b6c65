package common

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GenerateUUID 生成 UUID
func GenerateUUID() string {
	return uuid.New().String()
}

// WriteError 將錯誤轉為統一的 JSON 錯誤響應
func WriteError(c *gin.Context, err error, extra gin.H) {
	ce := AsCustomError(err)
	body := gin.H{
		"code":    ce.Code,
		"message": ce.Error(),
	}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(ce.Status, body)
}

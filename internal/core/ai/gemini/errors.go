package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"recipe-content-studio/internal/infrastructure/metrics"
	"recipe-content-studio/internal/pkg/common"

	"google.golang.org/genai"
)

// classify 將 SDK 錯誤轉成錯誤分類；已分類的錯誤原樣回傳
func classify(action string, err error) error {
	if err == nil {
		return nil
	}
	var ce *common.CustomError
	if errors.As(err, &ce) {
		return err
	}
	if isPermission(err) {
		return common.NewPermissionError(action+"：權限不足", err)
	}
	return common.NewTransportError(action+"失敗", err)
}

// isPermission 判斷是否為權限 / 金鑰類錯誤
func isPermission(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden {
			return true
		}
		if strings.Contains(apiErr.Status, "PERMISSION_DENIED") || strings.Contains(apiErr.Status, "UNAUTHENTICATED") {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "permission") ||
		strings.Contains(msg, "api key not valid") ||
		strings.Contains(msg, "api_key_invalid")
}

// shouldRetry 只重試暫時性傳輸錯誤
func shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if common.IsPermissionError(err) || common.IsSchemaError(err) || common.IsValidationError(err) {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return common.IsTransportError(err) || common.IsEmptyResponseError(err)
}

func recordRetry(kind string) {
	metrics.RecordAIRetry(providerName, kind)
}

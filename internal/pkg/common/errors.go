package common

import (
	"errors"
	"fmt"
	"net/http"
)

// CustomError 定義自定義錯誤類型
type CustomError struct {
	Code    string // 錯誤代碼
	Message string // 錯誤信息
	Err     error  // 原始錯誤
	Status  int    // HTTP 狀態碼
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		if e.Message == "" {
			return e.Err.Error()
		}
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap 讓 errors.Is / errors.As 可以穿透到原始錯誤
func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewError 創建新的自定義錯誤
func NewError(code string, message string, status int, err error) *CustomError {
	return &CustomError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// 預定義錯誤代碼
const (
	// 客戶端錯誤 (4xx)
	ErrCodeInvalidRequest   = "INVALID_REQUEST"    // 400
	ErrCodeNotFound         = "NOT_FOUND"          // 404
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED" // 405
	ErrCodeRequestTooLarge  = "REQUEST_TOO_LARGE"  // 413
	ErrCodeTooManyRequests  = "TOO_MANY_REQUESTS"  // 429

	// 服務器錯誤 (5xx)
	ErrCodeInternalError  = "INTERNAL_ERROR"  // 500
	ErrCodeGatewayTimeout = "GATEWAY_TIMEOUT" // 504

	// 生成流程錯誤
	ErrCodeValidation    = "VALIDATION_ERROR"    // 使用者輸入錯誤
	ErrCodeTransport     = "TRANSPORT_ERROR"     // 網路 / API 失敗
	ErrCodePermission    = "PERMISSION_DENIED"   // 權限類失敗（屬於 transport 的子類）
	ErrCodeSchema        = "SCHEMA_ERROR"        // 回應缺少必要欄位
	ErrCodeEmptyResponse = "EMPTY_RESPONSE"      // 回應沒有可解析內容
	ErrCodePrecondition  = "PRECONDITION_FAILED" // 缺少前置狀態
	ErrCodeConfig        = "CONFIG_ERROR"        // 元件設定錯誤
	ErrCodeRange         = "RANGE_ERROR"         // 索引越界
	ErrCodeSelection     = "SELECTION_ERROR"     // 憑證選擇失敗
)

// 預定義錯誤
var (
	// 客戶端錯誤
	ErrNotFound         = NewError(ErrCodeNotFound, "資源不存在", http.StatusNotFound, nil)
	ErrMethodNotAllowed = NewError(ErrCodeMethodNotAllowed, "不支持的請求方法", http.StatusMethodNotAllowed, nil)
	ErrTooManyRequests  = NewError(ErrCodeTooManyRequests, "請求過於頻繁", http.StatusTooManyRequests, nil)

	// 服務器錯誤
	ErrInternalError  = NewError(ErrCodeInternalError, "服務器內部錯誤", http.StatusInternalServerError, nil)
	ErrGatewayTimeout = NewError(ErrCodeGatewayTimeout, "網關超時", http.StatusGatewayTimeout, nil)

	// 業務錯誤
	ErrSessionNotFound  = NewError("SESSION_NOT_FOUND", "工作階段不存在或已過期", http.StatusNotFound, nil)
	ErrSessionsFull     = NewError("SESSIONS_FULL", "工作階段數量已達上限", http.StatusServiceUnavailable, nil)
	ErrNoThumbnail      = NewError("NO_THUMBNAIL", "尚未產生封面圖片", http.StatusNotFound, nil)
	ErrInvalidImageData = NewError("INVALID_IMAGE_DATA", "無效的圖片資料", http.StatusUnprocessableEntity, nil)
	ErrQueueFull        = NewError("QUEUE_FULL", "生成請求過多，請稍後再試", http.StatusServiceUnavailable, nil)
	ErrQueueClosed      = NewError("QUEUE_CLOSED", "生成隊列已關閉", http.StatusServiceUnavailable, nil)
)

// NewValidationError 創建新的驗證錯誤
func NewValidationError(message string) error {
	return NewError(ErrCodeValidation, message, http.StatusBadRequest, nil)
}

// NewTransportError 網路或遠端 API 失敗
func NewTransportError(message string, err error) error {
	return NewError(ErrCodeTransport, message, http.StatusBadGateway, err)
}

// NewPermissionError 權限 / 授權類失敗，會導向憑證選擇流程
func NewPermissionError(message string, err error) error {
	return NewError(ErrCodePermission, message, http.StatusForbidden, err)
}

// NewSchemaError 回應缺少請求的欄位
func NewSchemaError(message string) error {
	return NewError(ErrCodeSchema, message, http.StatusBadGateway, nil)
}

// NewEmptyResponseError 遠端沒有回傳可解析的內容
func NewEmptyResponseError(message string, err error) error {
	return NewError(ErrCodeEmptyResponse, message, http.StatusBadGateway, err)
}

// NewPreconditionError 操作缺少必要的前置狀態
func NewPreconditionError(message string) error {
	return NewError(ErrCodePrecondition, message, http.StatusConflict, nil)
}

// NewConfigError 元件設定錯誤（程式錯誤）
func NewConfigError(message string) error {
	return NewError(ErrCodeConfig, message, http.StatusInternalServerError, nil)
}

// NewRangeError 索引越界（程式錯誤）
func NewRangeError(message string) error {
	return NewError(ErrCodeRange, message, http.StatusBadRequest, nil)
}

// NewSelectionError 憑證選擇流程失敗
func NewSelectionError(message string, err error) error {
	return NewError(ErrCodeSelection, message, http.StatusBadRequest, err)
}

// HasCode 檢查錯誤鏈中是否有指定代碼的 CustomError
func HasCode(err error, code string) bool {
	var ce *CustomError
	for err != nil {
		if !errors.As(err, &ce) {
			return false
		}
		if ce.Code == code {
			return true
		}
		err = ce.Err
	}
	return false
}

// IsValidationError 檢查是否為驗證錯誤
func IsValidationError(err error) bool {
	return HasCode(err, ErrCodeValidation)
}

// IsPermissionError 檢查是否為權限錯誤
func IsPermissionError(err error) bool {
	return HasCode(err, ErrCodePermission)
}

// IsTransportError 權限錯誤也視為 transport 錯誤
func IsTransportError(err error) bool {
	return HasCode(err, ErrCodeTransport) || HasCode(err, ErrCodePermission)
}

// IsSchemaError 檢查是否為欄位缺漏錯誤
func IsSchemaError(err error) bool {
	return HasCode(err, ErrCodeSchema)
}

// IsEmptyResponseError 檢查是否為空回應錯誤
func IsEmptyResponseError(err error) bool {
	return HasCode(err, ErrCodeEmptyResponse)
}

// IsPreconditionError 檢查是否為前置狀態錯誤
func IsPreconditionError(err error) bool {
	return HasCode(err, ErrCodePrecondition)
}

// IsConfigError 檢查是否為設定錯誤
func IsConfigError(err error) bool {
	return HasCode(err, ErrCodeConfig)
}

// IsRangeError 檢查是否為越界錯誤
func IsRangeError(err error) bool {
	return HasCode(err, ErrCodeRange)
}

// IsSelectionError 檢查是否為憑證選擇錯誤
func IsSelectionError(err error) bool {
	return HasCode(err, ErrCodeSelection)
}

// NewRequestTooLargeError 請求體超過上限
func NewRequestTooLargeError(limit int64, err error) error {
	return NewError(ErrCodeRequestTooLarge, fmt.Sprintf("請求內容過大，上限 %d bytes", limit), http.StatusRequestEntityTooLarge, err)
}

// RequestBodyLimit 錯誤來自 http.MaxBytesReader 截斷時回傳其上限
func RequestBodyLimit(err error) (int64, bool) {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return mbe.Limit, true
	}
	return 0, false
}

// AsCustomError 取出錯誤鏈最外層的 CustomError，找不到時包成內部錯誤
func AsCustomError(err error) *CustomError {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce
	}
	return NewError(ErrCodeInternalError, "服務器內部錯誤", http.StatusInternalServerError, err)
}

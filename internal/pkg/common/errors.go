package common

import (
	"errors"
	"net/http"
)

// ErrorResponse 定義 API 錯誤響應結構
type ErrorResponse struct {
	Code    string `json:"code"`              // 錯誤代碼
	Message string `json:"message"`           // 錯誤信息
	Details string `json:"details,omitempty"` // 詳細信息（僅在開發模式顯示）
}

// CustomError 定義自定義錯誤類型
type CustomError struct {
	Code    string // 錯誤代碼
	Message string // 錯誤信息
	Err     error  // 原始錯誤
	Status  int    // HTTP 狀態碼
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

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

// ValidationError 表示驗證錯誤
type ValidationError struct {
	message string
}

// Error 實現 error 介面
func (e *ValidationError) Error() string {
	return e.message
}

// NewValidationError 創建新的驗證錯誤
func NewValidationError(message string) error {
	return &ValidationError{
		message: message,
	}
}

// IsValidationError 檢查是否為驗證錯誤
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// 預定義錯誤代碼：匯入管線錯誤分類
const (
	// 來源錯誤：暫時性（網路/限流），可退避重試
	ErrCodeSourceError = "SOURCE_ERROR"
	// 候選食譜被拒絕：記錄到場次計數器，不向上拋出
	ErrCodeCandidateRejected = "CANDIDATE_REJECTED"
	// 持久化錯誤：批次寫入失敗，對場次致命
	ErrCodePersistenceError = "PERSISTENCE_ERROR"
	// 設定錯誤：建構期缺少必要參數，場次開始前即失敗
	ErrCodeConfigError = "CONFIG_ERROR"

	// 客戶端錯誤 (4xx)
	ErrCodeInvalidRequest  = "INVALID_REQUEST"   // 400
	ErrCodeNotFound        = "NOT_FOUND"         // 404
	ErrCodeConflict        = "CONFLICT"          // 409
	ErrCodeTooManyRequests = "TOO_MANY_REQUESTS" // 429

	// 服務器錯誤 (5xx)
	ErrCodeInternalError      = "INTERNAL_ERROR"      // 500
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE" // 503
)

// 預定義錯誤
var (
	// 匯入管線錯誤
	ErrSourceUnavailable = NewError(ErrCodeSourceError, "來源服務暫時不可用", http.StatusServiceUnavailable, nil)
	ErrPersistenceFailed = NewError(ErrCodePersistenceError, "批次寫入失敗", http.StatusInternalServerError, nil)
	ErrInvalidConfig     = NewError(ErrCodeConfigError, "匯入設定不完整", http.StatusInternalServerError, nil)

	// 客戶端錯誤
	ErrInvalidRequest  = NewError(ErrCodeInvalidRequest, "無效的請求", http.StatusBadRequest, nil)
	ErrNotFound        = NewError(ErrCodeNotFound, "資源不存在", http.StatusNotFound, nil)
	ErrConflict        = NewError(ErrCodeConflict, "資源衝突", http.StatusConflict, nil)
	ErrTooManyRequests = NewError(ErrCodeTooManyRequests, "請求過於頻繁", http.StatusTooManyRequests, nil)

	// 服務器錯誤
	ErrInternalError = NewError(ErrCodeInternalError, "服務器內部錯誤", http.StatusInternalServerError, nil)
	ErrImportRunning = NewError(ErrCodeConflict, "已有匯入場次執行中", http.StatusConflict, nil)
)

// IsSourceError 檢查是否為可重試的來源錯誤
func IsSourceError(err error) bool {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeSourceError
	}
	return false
}

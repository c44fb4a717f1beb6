package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/countdown/internal/middleware"
	"github.com/hitoshi/countdown/internal/model"
	"github.com/hitoshi/countdown/internal/timer"
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// writeInvalidRequest はリクエスト解析失敗のレスポンスを書き込む。
func writeInvalidRequest(w http.ResponseWriter, message string) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     model.ErrCodeInvalidRequest,
		Message:  message,
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// timerIDはエラーメッセージに含めるタイマーID。
func handleServiceError(w http.ResponseWriter, err error, timerID string) {
	apiErr := toAPIError(err, timerID)
	if apiErr == nil {
		// 想定外のエラーは内部サーバーエラーとして扱う
		slog.Error("internal server error", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	statusCode := mapAPIErrorToHTTPStatus(apiErr)
	if statusCode >= http.StatusInternalServerError {
		slog.Error("service error", slog.String("error", err.Error()))
	}
	writeAPIErrorResponse(w, statusCode, apiErr)
}

// toAPIError はドメインエラーをAPIErrorに変換する。未知のエラーはnilを返す。
func toAPIError(err error, timerID string) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var validationErr *timer.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return model.NewValidationError(validationErr.Reasons)
	case errors.Is(err, model.ErrTimerNotFound):
		return model.NewTimerNotFoundError(timerID)
	case errors.Is(err, model.ErrDuplicateTimer):
		return model.NewDuplicateTimerError(timerID)
	case errors.Is(err, model.ErrTimerCompleted):
		return model.NewTimerCompletedError(timerID)
	case errors.Is(err, model.ErrEncodeFailure):
		return model.NewEncodeFailedError()
	case errors.Is(err, model.ErrDecodeFailure):
		return model.NewDecodeFailedError()
	default:
		return nil
	}
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidRequest, model.ErrCodeValidation, model.ErrCodeInvalidShareURL:
		return http.StatusBadRequest
	case model.ErrCodeTimerNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicateTimer, model.ErrCodeTimerCompleted:
		return http.StatusConflict
	case model.ErrCodeDecodeFailed, model.ErrCodeInvalidData:
		return http.StatusUnprocessableEntity
	case model.ErrCodeEncodeFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

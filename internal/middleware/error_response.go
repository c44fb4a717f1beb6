package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/countdown/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。共有URL解決の失敗ではerror_typeも含む。
type ErrorResponseBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Category  string `json:"category"`
	Action    string `json:"action"`
	ErrorType string `json:"error_type,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeErrorBody(w, statusCode, ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteResolutionErrorResponse は共有URL解決失敗のレスポンスを書き込む。
// invalid_urlは400、それ以外は422を返す。
func WriteResolutionErrorResponse(w http.ResponseWriter, resErr *model.ResolutionError) {
	statusCode := http.StatusUnprocessableEntity
	if resErr.Type == model.ResolutionInvalidURL {
		statusCode = http.StatusBadRequest
	}

	apiErr := model.NewResolutionAPIError(resErr)
	writeErrorBody(w, statusCode, ErrorResponseBody{
		Code:      apiErr.Code,
		Message:   apiErr.Message,
		Category:  apiErr.Category,
		Action:    apiErr.Action,
		ErrorType: string(resErr.Type),
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

func writeErrorBody(w http.ResponseWriter, statusCode int, body ErrorResponseBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

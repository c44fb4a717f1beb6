package handler

import "net/http"

// healthResponse はヘルスチェックのレスポンス。
type healthResponse struct {
	Status string `json:"status"`
}

// HandleHealth はプロセスの生存確認に応答する。
// サーバー側に永続化層を持たないため、依存先の疎通確認は行わない。
// GET /health
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/countdown/internal/model"
	"github.com/hitoshi/countdown/internal/timer"
)

// TimerStore はタイマー一覧の永続化インターフェース。
type TimerStore interface {
	Save(w http.ResponseWriter, timers []model.Timer)
	Load(r *http.Request) []model.Timer
	Clear(w http.ResponseWriter)
}

// TimerService はタイマー一覧操作のインターフェース。
type TimerService interface {
	Create(list []model.Timer, form timer.FormData, now time.Time) ([]model.Timer, model.Timer, error)
	Pause(list []model.Timer, id string, now time.Time) ([]model.Timer, error)
	Resume(list []model.Timer, id string, now time.Time) ([]model.Timer, error)
	Remove(list []model.Timer, id string) ([]model.Timer, error)
	Import(list []model.Timer, shared model.Timer) ([]model.Timer, error)
}

// ShareLinkBuilder は共有リンク生成のインターフェース。
type ShareLinkBuilder interface {
	BuildShareLink(t model.Timer, baseURL string) (string, error)
}

// TimerHandler はタイマー関連のHTTPハンドラー。
type TimerHandler struct {
	store   TimerStore
	service TimerService
	links   ShareLinkBuilder
	baseURL string
	now     func() time.Time
}

// NewTimerHandler はTimerHandlerの新しいインスタンスを生成する。
func NewTimerHandler(store TimerStore, service TimerService, links ShareLinkBuilder, baseURL string) *TimerHandler {
	return &TimerHandler{
		store:   store,
		service: service,
		links:   links,
		baseURL: baseURL,
		now:     time.Now,
	}
}

// createTimerRequest はタイマー作成リクエストのボディ。
type createTimerRequest struct {
	Name       string `json:"name"`
	TargetDate string `json:"target_date"`
}

// HandleList はタイマー一覧を返す。
// GET /api/timers?q={query}
// qが指定された場合はタイマー名のあいまい検索結果を一致度順に返す。
func (h *TimerHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list := h.store.Load(r)
	now := h.now()

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeJSON(w, http.StatusOK, toTimerResponses(list, now))
		return
	}
	writeJSON(w, http.StatusOK, toSearchResponses(timer.Search(list, query), now))
}

// HandleCreate はタイマーを作成して保存する。
// POST /api/timers
func (h *TimerHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createTimerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w, "リクエストボディが不正です。")
		return
	}

	form := timer.FormData{Name: req.Name}
	if strings.TrimSpace(req.TargetDate) != "" {
		target, err := model.ParseTimestamp(req.TargetDate)
		if err != nil {
			writeInvalidRequest(w, "target_dateの形式が不正です。")
			return
		}
		form.TargetDate = target
	}

	now := h.now()
	list, created, err := h.service.Create(h.store.Load(r), form, now)
	if err != nil {
		handleServiceError(w, err, "")
		return
	}

	h.store.Save(w, list)
	writeJSON(w, http.StatusCreated, toTimerResponse(created, now))
}

// HandleClear は全タイマーを削除する。
// DELETE /api/timers
func (h *TimerHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	h.store.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandleStats はタイマーの状態別件数を返す。
// GET /api/timers/stats
func (h *TimerHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats := timer.CalculateStats(h.store.Load(r), h.now())
	writeJSON(w, http.StatusOK, toStatsResponse(stats))
}

// HandlePause はタイマーを一時停止する。
// POST /api/timers/{id}/pause
func (h *TimerHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	h.updateStatus(w, r, h.service.Pause)
}

// HandleResume は一時停止中のタイマーを再開する。
// POST /api/timers/{id}/resume
func (h *TimerHandler) HandleResume(w http.ResponseWriter, r *http.Request) {
	h.updateStatus(w, r, h.service.Resume)
}

func (h *TimerHandler) updateStatus(
	w http.ResponseWriter,
	r *http.Request,
	transition func([]model.Timer, string, time.Time) ([]model.Timer, error),
) {
	id := chi.URLParam(r, "id")
	now := h.now()

	list, err := transition(h.store.Load(r), id, now)
	if err != nil {
		handleServiceError(w, err, id)
		return
	}
	h.store.Save(w, list)

	updated, _ := timer.Find(list, id)
	writeJSON(w, http.StatusOK, toTimerResponse(updated, now))
}

// HandleDelete はタイマーを削除する。
// DELETE /api/timers/{id}
func (h *TimerHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	list, err := h.service.Remove(h.store.Load(r), id)
	if err != nil {
		handleServiceError(w, err, id)
		return
	}

	h.store.Save(w, list)
	w.WriteHeader(http.StatusNoContent)
}

// HandleShare はタイマーの共有リンクを生成する。
// POST /api/timers/{id}/share
func (h *TimerHandler) HandleShare(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, ok := timer.Find(h.store.Load(r), id)
	if !ok {
		handleServiceError(w, model.ErrTimerNotFound, id)
		return
	}

	link, err := h.links.BuildShareLink(t, h.baseURL)
	if err != nil {
		handleServiceError(w, err, id)
		return
	}

	writeJSON(w, http.StatusOK, shareLinkResponse{URL: link, TimerID: t.ID})
}
